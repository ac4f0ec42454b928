package converter

import (
	"math"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
)

// 管道中的一个阶段，只有一个key
type stage struct {
	name  string
	value any
}

// QueryToPipeline 将读查询转为聚合管道，表连接和分组分别由lookup和group处理
func QueryToPipeline(q *ir.Query) (pipeline bson.A) {
	if q.Join != nil {
		return LookupPipeline(q)
	}
	if q.Group != nil {
		return GroupPipeline(q)
	}
	pipeline = bson.A{}
	if q.Filter != nil {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Match, Value: filter.ToBSON(q.Filter)}})
	}
	pipeline = appendPaging(pipeline, q, nil)
	if q.Projection != nil {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Project, Value: ProjectionToBSON(q.Projection)}})
	}
	return
}

// 依次追加sort、skip、limit阶段
func appendPaging(pipeline bson.A, q *ir.Query, sortField func(string) string) bson.A {
	if len(q.Sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Sort, Value: SortToBSON(q.Sort, sortField)}})
	}
	if q.Skip != nil {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Skip, Value: *q.Skip}})
	}
	if q.Limit != nil {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Limit, Value: *q.Limit}})
	}
	return pipeline
}

// PipelineToQuery 将聚合管道转为读查询：第一个阶段是$lookup时按表连接处理，包含$group时按分组处理
func PipelineToQuery(collection string, pipeline bson.A) (q *ir.Query, err error) {
	var stages []stage
	stages, err = splitStages(pipeline)
	if err != nil {
		return
	}

	q = &ir.Query{Operation: ir.Read, Collection: collection}
	switch {
	case len(stages) > 0 && stages[0].name == Mongo_Stage_Lookup:
		err = foldLookup(q, stages)
	case hasStage(stages, Mongo_Stage_Group):
		err = foldGroup(q, stages)
	default:
		folder := &pipelineFolder{query: q}
		for _, s := range stages {
			err = folder.fold(s)
			if err != nil {
				break
			}
		}
	}
	if err != nil {
		q = nil
		return
	}

	err = q.Validate()
	if err != nil {
		q = nil
	}
	return
}

func splitStages(pipeline bson.A) (stages []stage, err error) {
	for idx, item := range pipeline {
		doc, ok := filter.AsDocument(item)
		if !ok || len(doc) != 1 {
			err = ir.Validationf("pipeline stage %v must be a document with exactly one key", idx)
			return
		}
		stages = append(stages, stage{name: doc[0].Key, value: doc[0].Value})
	}
	return
}

func hasStage(stages []stage, name string) bool {
	for _, s := range stages {
		if s.name == name {
			return true
		}
	}
	return false
}

// 将$match/$project/$sort/$skip/$limit依次合并到查询中
type pipelineFolder struct {
	query *ir.Query
	// 分组之后字段需要转换，例如_id.dept -> dept
	sortField func(string) string
	// 分组之后不能再过滤或投影
	grouped bool
	seen    map[string]bool
}

func (f *pipelineFolder) fold(s stage) (err error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	q := f.query
	paged := f.seen[Mongo_Stage_Skip] || f.seen[Mongo_Stage_Limit]

	switch s.name {
	case Mongo_Stage_Match:
		if f.grouped {
			err = ir.Unsupportedf("%v after %v is not supported", Mongo_Stage_Match, Mongo_Stage_Group)
			return
		}
		if paged {
			err = ir.Unsupportedf("%v after %v/%v is not supported", Mongo_Stage_Match, Mongo_Stage_Skip, Mongo_Stage_Limit)
			return
		}
		// $project之后的$match只能看到投影后的字段
		if f.seen[Mongo_Stage_Project] {
			err = ir.Unsupportedf("%v after %v is not supported", Mongo_Stage_Match, Mongo_Stage_Project)
			return
		}
		doc, ok := filter.AsDocument(s.value)
		if !ok {
			err = ir.Validationf("%v requires a document,got %T", s.name, s.value)
			return
		}
		var e ir.Expr
		e, err = filter.FromBSON(doc)
		if err != nil {
			return
		}
		q.Filter = ir.AllOf(q.Filter, e)
	case Mongo_Stage_Project:
		if f.grouped || f.seen[s.name] {
			err = ir.Unsupportedf("only one %v before any %v is supported", s.name, Mongo_Stage_Group)
			return
		}
		doc, ok := filter.AsDocument(s.value)
		if !ok {
			err = ir.Validationf("%v requires a document,got %T", s.name, s.value)
			return
		}
		q.Projection, err = ProjectionFromBSON(doc)
	case Mongo_Stage_Sort:
		if f.seen[s.name] || paged {
			err = ir.Unsupportedf("%v must appear once before %v/%v", s.name, Mongo_Stage_Skip, Mongo_Stage_Limit)
			return
		}
		doc, ok := filter.AsDocument(s.value)
		if !ok {
			err = ir.Validationf("%v requires a document,got %T", s.name, s.value)
			return
		}
		q.Sort, err = SortFromBSON(doc)
		if err == nil && f.sortField != nil {
			for idx := range q.Sort {
				q.Sort[idx].Field = f.sortField(q.Sort[idx].Field)
			}
		}
	case Mongo_Stage_Skip:
		var n int64
		n, err = NonNegative(s.name, s.value)
		if err != nil {
			return
		}
		// 先limit再skip时，剩余条数相应减少
		if q.Limit != nil {
			q.Limit = ir.Int64(max(*q.Limit-n, 0))
		}
		if q.Skip != nil {
			n += *q.Skip
		}
		q.Skip = ir.Int64(n)
	case Mongo_Stage_Limit:
		var n int64
		n, err = NonNegative(s.name, s.value)
		if err != nil {
			return
		}
		if q.Limit != nil {
			n = min(n, *q.Limit)
		}
		q.Limit = ir.Int64(n)
	default:
		err = ir.Unsupportedf("pipeline stage %v is not supported here", s.name)
		return
	}
	f.seen[s.name] = true
	return
}

// NonNegative 解析skip/limit等非负整数参数
func NonNegative(name string, val any) (n int64, err error) {
	n, ok := asInt64(val)
	if !ok || n < 0 {
		err = ir.Validationf("%v requires a non-negative integer,got %v", name, val)
	}
	return
}

func asInt64(val any) (n int64, ok bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
			return int64(v), true
		}
	}
	return 0, false
}

func ProjectionToBSON(fields []string) (doc bson.D) {
	doc = bson.D{}
	for _, field := range fields {
		doc = append(doc, bson.E{Key: field, Value: 1})
	}
	return
}

// ProjectionFromBSON 只支持包含式投影，值必须是0或1，_id允许排除
func ProjectionFromBSON(doc bson.D) (fields []string, err error) {
	if len(doc) == 0 {
		return
	}
	excluded := false
	for _, elem := range doc {
		include, ok := projectionFlag(elem.Value)
		if !ok {
			err = ir.Validationf("projection value of field=%v must be 0 or 1,got %v", elem.Key, elem.Value)
			return
		}
		if include {
			fields = append(fields, elem.Key)
			continue
		}
		if elem.Key != Mongo_Arg_Id {
			err = ir.Unsupportedf("exclusion projection on field=%v is not supported", elem.Key)
			return
		}
		excluded = true
		log.Debugf("projection excludes %v,ignored", elem.Key)
	}
	if len(fields) == 0 && excluded {
		err = ir.Unsupportedf("exclusion-only projection is not supported")
	}
	return
}

func projectionFlag(val any) (include bool, ok bool) {
	if b, isBool := val.(bool); isBool {
		return b, true
	}
	n, isInt := asInt64(val)
	if !isInt || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}

// SortToBSON field为nil时直接使用字段名
func SortToBSON(keys []ir.SortKey, field func(string) string) (doc bson.D) {
	doc = bson.D{}
	for _, key := range keys {
		name := key.Field
		if field != nil {
			name = field(name)
		}
		doc = append(doc, bson.E{Key: name, Value: int(key.Direction)})
	}
	return
}

func SortFromBSON(doc bson.D) (keys []ir.SortKey, err error) {
	for _, elem := range doc {
		var dir ir.Direction
		dir, err = SortDirection(elem.Key, elem.Value)
		if err != nil {
			return
		}
		keys = append(keys, ir.SortKey{Field: elem.Key, Direction: dir})
	}
	return
}

// SortDirection 排序方向只能是1或-1
func SortDirection(field string, val any) (dir ir.Direction, err error) {
	n, ok := asInt64(val)
	if !ok || (n != 1 && n != -1) {
		err = ir.Validationf("sort direction of field=%v must be 1 or -1,got %v", field, val)
		return
	}
	dir = ir.Direction(n)
	return
}
