package converter

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
)

const groupKeyPrefix = Mongo_Arg_Id + "."

// GroupPipeline 分组查询输出 [$match],$group,[$sort],[$skip],[$limit]，分组结果固定带count计数
func GroupPipeline(q *ir.Query) (pipeline bson.A) {
	pipeline = bson.A{}
	if q.Filter != nil {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Match, Value: filter.ToBSON(q.Filter)}})
	}
	pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Group, Value: GroupToBSON(q.Group)}})

	keys := map[string]bool{}
	for _, key := range q.Group.Keys {
		keys[key] = true
	}
	// 分组字段在结果的_id中
	pipeline = appendPaging(pipeline, q, func(field string) string {
		if keys[field] {
			return groupKeyPrefix + field
		}
		return field
	})
	return
}

func GroupToBSON(group *ir.Group) bson.D {
	id := bson.D{}
	for _, key := range group.Keys {
		id = append(id, bson.E{Key: key, Value: fmt.Sprintf("$%v", key)})
	}
	return bson.D{
		{Key: Mongo_Arg_Id, Value: id},
		{Key: ir.CountField, Value: bson.D{{Key: Mongo_Operator_Sum, Value: 1}}},
	}
}

func foldGroup(q *ir.Query, stages []stage) (err error) {
	folder := &pipelineFolder{query: q}
	for _, s := range stages {
		switch s.name {
		case Mongo_Stage_Group:
			if folder.grouped {
				err = ir.Unsupportedf("only one %v stage is supported", Mongo_Stage_Group)
				return
			}
			if len(folder.seen) > 0 && !(len(folder.seen) == 1 && folder.seen[Mongo_Stage_Match]) {
				err = ir.Unsupportedf("only %v may appear before %v", Mongo_Stage_Match, Mongo_Stage_Group)
				return
			}
			q.Group, err = GroupFromBSON(s.value)
			if err != nil {
				return
			}
			folder.grouped = true
			folder.sortField = func(field string) string {
				return strings.TrimPrefix(field, groupKeyPrefix)
			}
		case Mongo_Stage_Lookup:
			err = ir.Unsupportedf("%v must be the first stage", Mongo_Stage_Lookup)
		default:
			err = folder.fold(s)
		}
		if err != nil {
			return
		}
	}
	return
}

// GroupFromBSON _id必须是非空的字段引用对象或单个字段引用，累加器只支持{$sum: 1}
func GroupFromBSON(val any) (group *ir.Group, err error) {
	doc, ok := filter.AsDocument(val)
	if !ok {
		err = ir.Validationf("%v requires a document,got %T", Mongo_Stage_Group, val)
		return
	}

	group = &ir.Group{}
	hasId := false
	for _, elem := range doc {
		if elem.Key == Mongo_Arg_Id {
			hasId = true
			group.Keys, err = groupKeys(elem.Value)
			if err != nil {
				return
			}
			continue
		}
		if !isCountAccumulator(elem.Value) {
			err = ir.Unsupportedf("accumulator [%v] is not supported,only {%v: 1}", elem.Key, Mongo_Operator_Sum)
			return
		}
		if elem.Key != ir.CountField {
			log.Debugf("count accumulator [%v] renamed to %v", elem.Key, ir.CountField)
		}
	}
	if !hasId {
		err = ir.Validationf("%v requires %v", Mongo_Stage_Group, Mongo_Arg_Id)
	}
	return
}

func groupKeys(val any) (keys []string, err error) {
	if ref, ok := val.(string); ok {
		var key string
		key, err = fieldRef(ref)
		keys = []string{key}
		return
	}
	doc, ok := filter.AsDocument(val)
	if !ok || len(doc) == 0 {
		err = ir.Validationf("%v.%v must be a non-empty document", Mongo_Stage_Group, Mongo_Arg_Id)
		return
	}
	for _, elem := range doc {
		ref, isString := elem.Value.(string)
		if !isString {
			err = ir.Unsupportedf("group key [%v] must be a field reference", elem.Key)
			return
		}
		var key string
		key, err = fieldRef(ref)
		if err != nil {
			return
		}
		if key != elem.Key {
			err = ir.Unsupportedf("group key [%v] renames field [%v]", elem.Key, key)
			return
		}
		keys = append(keys, key)
	}
	return
}

func fieldRef(ref string) (field string, err error) {
	if !strings.HasPrefix(ref, "$") || len(ref) == 1 || strings.HasPrefix(ref, "$$") {
		err = ir.Validationf("[%v] is not a field reference", ref)
		return
	}
	field = ref[1:]
	return
}

func isCountAccumulator(val any) bool {
	doc, ok := filter.AsDocument(val)
	if !ok || len(doc) != 1 || doc[0].Key != Mongo_Operator_Sum {
		return false
	}
	n, ok := asInt64(doc[0].Value)
	return ok && n == 1
}
