package converter

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
)

// LookupPipeline 表连接查询固定输出 $lookup,$unwind,[$match],[$sort],[$skip],[$limit],[$project]
func LookupPipeline(q *ir.Query) (pipeline bson.A) {
	join := q.Join
	unwindPath := fmt.Sprintf("$%v", join.Alias)
	var unwind any = unwindPath
	if join.Kind == ir.LeftJoin {
		// 左连接保留没有匹配的记录
		unwind = bson.D{
			{Key: Mongo_Arg_Path, Value: unwindPath},
			{Key: Mongo_Arg_Preserve, Value: true},
		}
	}
	pipeline = bson.A{
		bson.D{{Key: Mongo_Stage_Lookup, Value: bson.D{
			{Key: Mongo_Arg_From, Value: join.Collection},
			{Key: Mongo_Arg_LocalField, Value: join.LocalField},
			{Key: Mongo_Arg_ForeignField, Value: join.ForeignField},
			{Key: Mongo_Arg_As, Value: join.Alias},
		}}},
		bson.D{{Key: Mongo_Stage_Unwind, Value: unwind}},
	}
	if q.Filter != nil {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Match, Value: filter.ToBSON(q.Filter)}})
	}
	pipeline = appendPaging(pipeline, q, nil)
	if q.Projection != nil {
		pipeline = append(pipeline, bson.D{{Key: Mongo_Stage_Project, Value: ProjectionToBSON(q.Projection)}})
	}
	return
}

func foldLookup(q *ir.Query, stages []stage) (err error) {
	q.Join, err = parseLookup(stages[0].value)
	if err != nil {
		return
	}

	rest := stages[1:]
	if len(rest) > 0 && rest[0].name == Mongo_Stage_Unwind {
		err = parseUnwind(q.Join, rest[0].value)
		if err != nil {
			return
		}
		rest = rest[1:]
	} else {
		log.Debugf("%v without %v,treated as inner join", Mongo_Stage_Lookup, Mongo_Stage_Unwind)
	}

	folder := &pipelineFolder{query: q}
	for _, s := range rest {
		switch s.name {
		case Mongo_Stage_Lookup:
			err = ir.Unsupportedf("only one %v is supported,multi-level join is out of scope", Mongo_Stage_Lookup)
		case Mongo_Stage_Group:
			err = ir.Unsupportedf("%v together with %v is not supported", Mongo_Stage_Group, Mongo_Stage_Lookup)
		default:
			err = folder.fold(s)
		}
		if err != nil {
			return
		}
	}
	return
}

func parseLookup(val any) (join *ir.Join, err error) {
	doc, ok := filter.AsDocument(val)
	if !ok {
		err = ir.Validationf("%v requires a document,got %T", Mongo_Stage_Lookup, val)
		return
	}
	join = &ir.Join{Kind: ir.InnerJoin}
	for _, elem := range doc {
		var target *string
		switch elem.Key {
		case Mongo_Arg_From:
			target = &join.Collection
		case Mongo_Arg_LocalField:
			target = &join.LocalField
		case Mongo_Arg_ForeignField:
			target = &join.ForeignField
		case Mongo_Arg_As:
			target = &join.Alias
		case Mongo_Arg_Let, Mongo_Arg_Pipeline:
			err = ir.Unsupportedf("%v with %v is not supported", Mongo_Stage_Lookup, elem.Key)
			return
		default:
			err = ir.Validationf("unknown %v argument [%v]", Mongo_Stage_Lookup, elem.Key)
			return
		}
		s, isString := elem.Value.(string)
		if !isString || s == "" {
			err = ir.Validationf("%v.%v must be a non-empty string", Mongo_Stage_Lookup, elem.Key)
			return
		}
		*target = s
	}
	if join.Collection == "" || join.LocalField == "" || join.ForeignField == "" || join.Alias == "" {
		err = ir.Validationf("%v requires from,localField,foreignField and as", Mongo_Stage_Lookup)
	}
	return
}

func parseUnwind(join *ir.Join, val any) (err error) {
	path, isString := val.(string)
	if !isString {
		doc, ok := filter.AsDocument(val)
		if !ok {
			err = ir.Validationf("%v requires a path,got %T", Mongo_Stage_Unwind, val)
			return
		}
		for _, elem := range doc {
			switch elem.Key {
			case Mongo_Arg_Path:
				path, _ = elem.Value.(string)
			case Mongo_Arg_Preserve:
				if preserve, _ := elem.Value.(bool); preserve {
					join.Kind = ir.LeftJoin
				}
			default:
				err = ir.Unsupportedf("%v option [%v] is not supported", Mongo_Stage_Unwind, elem.Key)
				return
			}
		}
	}
	if strings.TrimPrefix(path, "$") != join.Alias || !strings.HasPrefix(path, "$") {
		err = ir.Validationf("%v path [%v] must reference the lookup alias $%v", Mongo_Stage_Unwind, path, join.Alias)
	}
	return
}
