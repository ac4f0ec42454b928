package converter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	Mongo_Stage_Lookup  = "$lookup"
	Mongo_Stage_Group   = "$group"
	Mongo_Stage_Unwind  = "$unwind"
	Mongo_Stage_Match   = "$match"
	Mongo_Stage_Project = "$project"
	Mongo_Stage_Sort    = "$sort"
	Mongo_Stage_Skip    = "$skip"
	Mongo_Stage_Limit   = "$limit"

	Mongo_Operator_Sum = "$sum"
	Mongo_Operator_Set = "$set"

	Mongo_Arg_From         = "from"
	Mongo_Arg_LocalField   = "localField"
	Mongo_Arg_ForeignField = "foreignField"
	Mongo_Arg_As           = "as"
	Mongo_Arg_Path         = "path"
	Mongo_Arg_Preserve     = "preserveNullAndEmptyArrays"
	Mongo_Arg_Let          = "let"
	Mongo_Arg_Pipeline     = "pipeline"
	Mongo_Arg_Id           = "_id"

	Mongo_Method_Find       = "find"
	Mongo_Method_FindOne    = "findOne"
	Mongo_Method_InsertOne  = "insertOne"
	Mongo_Method_InsertMany = "insertMany"
	Mongo_Method_UpdateOne  = "updateOne"
	Mongo_Method_UpdateMany = "updateMany"
	Mongo_Method_DeleteOne  = "deleteOne"
	Mongo_Method_DeleteMany = "deleteMany"
	Mongo_Method_Aggregate  = "aggregate"
	Mongo_Method_Sort       = "sort"
	Mongo_Method_Limit      = "limit"
	Mongo_Method_Skip       = "skip"
)

var (
	// 默认作为记录唯一标识的字段
	Default_Identity_Fields = []string{"_id", "id"}

	// 集合名可以直接用作属性访问
	collectionAccessor = regexp.MustCompile(`^[$_a-zA-Z][$_a-zA-Z0-9]*$`)
)

// mongo shell语句渲染器
type MongoRenderer struct {
	// 集合访问前缀，为空时输出 users.find(...)，为db时输出 db.users.find(...)
	Accessor string
	// deleteOne只用于这些字段的等值删除
	IdentityFields []string
}

func NewMongoRenderer() *MongoRenderer {
	return &MongoRenderer{IdentityFields: Default_Identity_Fields}
}

func (r *MongoRenderer) Render(q *ir.Query) (text string, err error) {
	err = q.Validate()
	if err != nil {
		return
	}

	coll := r.collection(q.Collection)
	switch q.Operation {
	case ir.Read:
		text = r.renderRead(coll, q)
	case ir.Insert:
		text = renderInsert(coll, q)
	case ir.Update:
		text = renderUpdate(coll, q)
	case ir.Delete:
		method := Mongo_Method_DeleteMany
		if r.isIdentityMatch(q.Filter) {
			method = Mongo_Method_DeleteOne
		}
		text = fmt.Sprintf("%v.%v(%v)", coll, method, FormatShell(filter.ToBSON(q.Filter)))
	}
	log.Debugf("render mongo,collection=%v,operation=%v,text=[%v]", q.Collection, q.Operation, text)

	return
}

// IsCollectionAccessor 名称可以直接用作属性访问
func IsCollectionAccessor(name string) bool {
	return collectionAccessor.MatchString(name)
}

func (r *MongoRenderer) collection(name string) string {
	if !IsCollectionAccessor(name) {
		return fmt.Sprintf("db.getCollection(%v)", quoteShellString(name))
	}
	if r.Accessor == "" {
		return name
	}
	return r.Accessor + "." + name
}

func (r *MongoRenderer) renderRead(coll string, q *ir.Query) string {
	if q.Group != nil || q.Join != nil {
		return fmt.Sprintf("%v.%v(%v)", coll, Mongo_Method_Aggregate, FormatShell(QueryToPipeline(q)))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%v.%v(%v", coll, Mongo_Method_Find, FormatShell(filter.ToBSON(q.Filter))))
	if q.Projection != nil {
		b.WriteString(", " + FormatShell(ProjectionToBSON(q.Projection)))
	}
	b.WriteString(")")
	if len(q.Sort) > 0 {
		b.WriteString(fmt.Sprintf(".%v(%v)", Mongo_Method_Sort, FormatShell(SortToBSON(q.Sort, nil))))
	}
	if q.Limit != nil {
		b.WriteString(fmt.Sprintf(".%v(%v)", Mongo_Method_Limit, *q.Limit))
	}
	if q.Skip != nil {
		b.WriteString(fmt.Sprintf(".%v(%v)", Mongo_Method_Skip, *q.Skip))
	}
	return b.String()
}

func renderInsert(coll string, q *ir.Query) string {
	if len(q.Documents) == 1 {
		return fmt.Sprintf("%v.%v(%v)", coll, Mongo_Method_InsertOne, FormatShell(DocumentToBSON(q.Documents[0])))
	}
	docs := bson.A{}
	for _, doc := range q.Documents {
		docs = append(docs, DocumentToBSON(doc))
	}
	return fmt.Sprintf("%v.%v(%v)", coll, Mongo_Method_InsertMany, FormatShell(docs))
}

// 更新统一输出updateMany，影响条数以过滤条件为准
func renderUpdate(coll string, q *ir.Query) string {
	set := bson.D{}
	for _, assign := range q.Assignments {
		set = append(set, bson.E{Key: assign.Field, Value: assign.Value.Value()})
	}
	update := bson.D{{Key: Mongo_Operator_Set, Value: set}}
	return fmt.Sprintf("%v.%v(%v, %v)", coll, Mongo_Method_UpdateMany, FormatShell(filter.ToBSON(q.Filter)), FormatShell(update))
}

// 过滤条件恰好是唯一标识字段的等值比较
func (r *MongoRenderer) isIdentityMatch(e ir.Expr) bool {
	cmp, ok := e.(*ir.Comparison)
	if !ok || cmp.Op != ir.OpEq || cmp.Value.IsNull() {
		return false
	}
	fields := r.IdentityFields
	if fields == nil {
		fields = Default_Identity_Fields
	}
	return slices.Contains(fields, cmp.Field)
}

func DocumentToBSON(doc ir.Document) (d bson.D) {
	d = make(bson.D, 0, len(doc))
	for _, f := range doc {
		d = append(d, bson.E{Key: f.Name, Value: f.Value.Value()})
	}
	return
}

// DocumentFromBSON 插入文档的字段值只能是标量
func DocumentFromBSON(d bson.D) (doc ir.Document, err error) {
	if len(d) == 0 {
		err = ir.Validationf("document must not be empty")
		return
	}
	for _, elem := range d {
		lit, ok := ir.LiteralOf(elem.Value)
		if !ok {
			err = ir.Unsupportedf("field=%v has non-scalar value of type %T", elem.Key, elem.Value)
			return
		}
		doc = append(doc, ir.Field{Name: elem.Key, Value: lit})
	}
	return
}
