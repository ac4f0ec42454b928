package converter

import (
	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	Descriptor_Collection = "collection"
	Descriptor_Find       = "find"
	Descriptor_Projection = "projection"
	Descriptor_Sort       = "sort"
	Descriptor_Limit      = "limit"
	Descriptor_Skip       = "skip"
	Descriptor_Group      = "group"
	Descriptor_Pipeline   = "pipeline"
)

// 结构化查询描述渲染器，只支持读查询，输出JSON对象：
// {"collection": "users", "find": {...}, "projection": {...}, "sort": [["age", -1]], "limit": 10, "skip": 5}
// 分组查询使用 "group": {"$group": {...}}，表连接使用 "pipeline": [...]
type DescriptorRenderer struct{}

func NewDescriptorRenderer() *DescriptorRenderer {
	return &DescriptorRenderer{}
}

func (r *DescriptorRenderer) Render(q *ir.Query) (text string, err error) {
	var doc bson.D
	doc, err = QueryToDescriptor(q)
	if err != nil {
		return
	}
	var out []byte
	out, err = bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		err = ir.Validationf("marshal descriptor failed,err=[%v]", err)
		return
	}
	text = string(out)
	log.Debugf("render descriptor,collection=%v,text=[%v]", q.Collection, text)
	return
}

func QueryToDescriptor(q *ir.Query) (doc bson.D, err error) {
	err = q.Validate()
	if err != nil {
		return
	}
	if q.Operation != ir.Read {
		err = ir.Validationf("descriptor only describes read queries,got %v", q.Operation)
		return
	}

	doc = bson.D{{Key: Descriptor_Collection, Value: q.Collection}}
	if q.Join != nil {
		doc = append(doc, bson.E{Key: Descriptor_Pipeline, Value: LookupPipeline(q)})
		return
	}

	doc = append(doc, bson.E{Key: Descriptor_Find, Value: filter.ToBSON(q.Filter)})
	if q.Group != nil {
		doc = append(doc, bson.E{Key: Descriptor_Group, Value: bson.D{{Key: Mongo_Stage_Group, Value: GroupToBSON(q.Group)}}})
	} else if q.Projection != nil {
		doc = append(doc, bson.E{Key: Descriptor_Projection, Value: ProjectionToBSON(q.Projection)})
	}
	if len(q.Sort) > 0 {
		pairs := bson.A{}
		for _, key := range q.Sort {
			pairs = append(pairs, bson.A{key.Field, int(key.Direction)})
		}
		doc = append(doc, bson.E{Key: Descriptor_Sort, Value: pairs})
	}
	if q.Limit != nil {
		doc = append(doc, bson.E{Key: Descriptor_Limit, Value: *q.Limit})
	}
	if q.Skip != nil {
		doc = append(doc, bson.E{Key: Descriptor_Skip, Value: *q.Skip})
	}
	return
}

// DescriptorToQuery 解析结构化查询描述，未知的key返回ValidationError
func DescriptorToQuery(doc bson.D) (q *ir.Query, err error) {
	fields := map[string]any{}
	for _, elem := range doc {
		switch elem.Key {
		case Descriptor_Collection, Descriptor_Find, Descriptor_Projection, Descriptor_Sort,
			Descriptor_Limit, Descriptor_Skip, Descriptor_Group, Descriptor_Pipeline:
		default:
			err = ir.Validationf("unknown descriptor key [%v]", elem.Key)
			return
		}
		if _, ok := fields[elem.Key]; ok {
			err = ir.Validationf("duplicate descriptor key [%v]", elem.Key)
			return
		}
		fields[elem.Key] = elem.Value
	}

	collection, ok := fields[Descriptor_Collection].(string)
	if !ok || collection == "" {
		err = ir.Validationf("descriptor requires a non-empty %v", Descriptor_Collection)
		return
	}

	if val, ok := fields[Descriptor_Pipeline]; ok {
		if len(fields) != 2 {
			err = ir.Validationf("%v can't be combined with other descriptor keys", Descriptor_Pipeline)
			return
		}
		pipeline, isArray := filter.AsArray(val)
		if !isArray || len(pipeline) == 0 {
			err = ir.Validationf("%v must be a non-empty array", Descriptor_Pipeline)
			return
		}
		q, err = PipelineToQuery(collection, pipeline)
		return
	}

	// 其余形式等价于 [$match] [$group|$project] [$sort] [$skip] [$limit]
	pipeline := bson.A{}
	if val, ok := fields[Descriptor_Find]; ok {
		find, isDoc := filter.AsDocument(val)
		if !isDoc {
			err = ir.Validationf("%v must be a document,got %T", Descriptor_Find, val)
			return
		}
		if len(find) > 0 {
			pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Match, Value: find}})
		}
	}
	if val, ok := fields[Descriptor_Group]; ok {
		if _, hasProjection := fields[Descriptor_Projection]; hasProjection {
			err = ir.Validationf("%v can't be combined with %v", Descriptor_Group, Descriptor_Projection)
			return
		}
		group, isDoc := filter.AsDocument(val)
		if !isDoc || len(group) != 1 || group[0].Key != Mongo_Stage_Group {
			err = ir.Validationf("%v must be {%v: {...}}", Descriptor_Group, Mongo_Stage_Group)
			return
		}
		pipeline = append(pipeline, group)
	}
	if val, ok := fields[Descriptor_Projection]; ok {
		projection, isDoc := filter.AsDocument(val)
		if !isDoc {
			err = ir.Validationf("%v must be a document mapping fields to 0 or 1", Descriptor_Projection)
			return
		}
		if len(projection) > 0 {
			pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Project, Value: projection}})
		}
	}
	if val, ok := fields[Descriptor_Sort]; ok {
		var sort bson.D
		sort, err = descriptorSort(val)
		if err != nil {
			return
		}
		if len(sort) > 0 {
			pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Sort, Value: sort}})
		}
	}
	for _, key := range []string{Descriptor_Skip, Descriptor_Limit} {
		val, ok := fields[key]
		if !ok || val == nil {
			continue
		}
		if _, isInt := asInt64(val); !isInt {
			err = ir.Validationf("%v must be an integer,got %v", key, val)
			return
		}
		pipeline = append(pipeline, bson.D{{Key: "$" + key, Value: val}})
	}

	q, err = PipelineToQuery(collection, pipeline)
	return
}

// 排序为[字段, 1或-1]的数组
func descriptorSort(val any) (sort bson.D, err error) {
	pairs, ok := filter.AsArray(val)
	if !ok {
		err = ir.Validationf("%v must be a list of [field, 1 or -1] pairs", Descriptor_Sort)
		return
	}
	sort = bson.D{}
	for _, item := range pairs {
		pair, isArray := filter.AsArray(item)
		if !isArray || len(pair) != 2 {
			err = ir.Validationf("%v must be a list of [field, 1 or -1] pairs", Descriptor_Sort)
			return
		}
		field, isString := pair[0].(string)
		if !isString || field == "" {
			err = ir.Validationf("%v field must be a non-empty string,got %v", Descriptor_Sort, pair[0])
			return
		}
		_, err = SortDirection(field, pair[1])
		if err != nil {
			return
		}
		sort = append(sort, bson.E{Key: field, Value: pair[1]})
	}
	return
}
