package parser

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/converter"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	Mongo_Accessor_DB          = "db"
	Mongo_Method_GetCollection = "getCollection"
	Mongo_Method_Pretty        = "pretty"
	Mongo_Method_ToArray       = "toArray"
	Mongo_Operator_Prefix      = "$"
)

// mongo shell语句解析器，形如 db.users.find({...}, {...}).sort({...}).limit(10).skip(5)
type MongoParser struct {
	// 是否在末尾补齐未闭合的括号
	RepairBrackets bool
}

func NewMongoParser() *MongoParser {
	return &MongoParser{}
}

// 一次方法调用
type shellCall struct {
	method string
	args   []any
	pos    int
}

func (p *MongoParser) Parse(text string) (q *ir.Query, err error) {
	q, err = p.parse(text)
	if err != nil {
		q = nil
		err = fmt.Errorf("parse mongo shell failed,err=[%w],shell=[%v]", err, text)
		return
	}

	err = q.Validate()
	if err != nil {
		q = nil
		err = fmt.Errorf("validate mongo shell failed,err=[%w],shell=[%v]", err, text)
		return
	}

	return
}

func (p *MongoParser) parse(text string) (q *ir.Query, err error) {
	log.Debugf("original shell is [%v]", text)
	var tokens []token
	tokens, err = tokenize(text)
	if err != nil {
		return
	}
	if len(tokens) == 0 {
		err = ir.Syntaxf("empty shell")
		return
	}
	tokens, err = balanceBrackets(tokens, p.RepairBrackets)
	if err != nil {
		return
	}

	s := &tokenStream{tokens: tokens}
	var collection string
	collection, err = s.parseAccessor()
	if err != nil {
		return
	}
	var calls []shellCall
	for s.isPunct(".") {
		s.next()
		var call shellCall
		call, err = s.parseCall()
		if err != nil {
			return
		}
		calls = append(calls, call)
	}
	if s.isPunct(";") {
		s.next()
	}
	if tok := s.peek(); tok.typ != tokenEOF {
		err = unexpected(tok, "end of statement")
		return
	}
	if len(calls) == 0 {
		err = ir.Syntaxf("no method call found after collection [%v]", collection)
		return
	}

	q, err = callToQuery(collection, calls[0])
	if err != nil {
		return
	}
	err = applyCursorCalls(q, calls[0].method, calls[1:])

	return
}

// 集合访问：db.coll、coll、db.getCollection("coll")、db["coll"]
func (s *tokenStream) parseAccessor() (collection string, err error) {
	collection, err = s.expectIdent()
	if err != nil {
		return
	}
	if collection != Mongo_Accessor_DB {
		return
	}

	if s.isPunct("[") {
		s.next()
		tok := s.next()
		if tok.typ != tokenString {
			err = unexpected(tok, "collection name")
			return
		}
		collection = tok.text
		err = s.expectPunct("]")
		return
	}

	if !s.isPunct(".") {
		return
	}
	// db.find(...) 中db本身就是集合名
	if len(s.tokens) > s.pos+2 && s.tokens[s.pos+2].typ == tokenPunct && s.tokens[s.pos+2].text == "(" &&
		s.tokens[s.pos+1].text != Mongo_Method_GetCollection {
		return
	}
	s.next()
	collection, err = s.expectIdent()
	if err != nil || collection != Mongo_Method_GetCollection {
		return
	}
	err = s.expectPunct("(")
	if err != nil {
		return
	}
	tok := s.next()
	if tok.typ != tokenString {
		err = unexpected(tok, "collection name")
		return
	}
	collection = tok.text
	err = s.expectPunct(")")
	return
}

func (s *tokenStream) parseCall() (call shellCall, err error) {
	call.pos = s.peek().pos
	call.method, err = s.expectIdent()
	if err != nil {
		return
	}
	err = s.expectPunct("(")
	if err != nil {
		return
	}
	// 按顶层逗号切分参数
	for !s.isPunct(")") {
		var arg any
		arg, err = s.parseValue()
		if err != nil {
			return
		}
		call.args = append(call.args, arg)
		if !s.isPunct(",") {
			break
		}
		s.next()
	}
	err = s.expectPunct(")")
	return
}

func callToQuery(collection string, call shellCall) (q *ir.Query, err error) {
	switch call.method {
	case converter.Mongo_Method_Find, converter.Mongo_Method_FindOne:
		q, err = findToQuery(collection, call)
	case converter.Mongo_Method_InsertOne:
		q, err = insertToQuery(collection, call, false)
	case converter.Mongo_Method_InsertMany:
		q, err = insertToQuery(collection, call, true)
	case converter.Mongo_Method_UpdateOne, converter.Mongo_Method_UpdateMany:
		q, err = updateToQuery(collection, call)
	case converter.Mongo_Method_DeleteOne, converter.Mongo_Method_DeleteMany:
		q, err = deleteToQuery(collection, call)
	case converter.Mongo_Method_Aggregate:
		q, err = aggregateToQuery(collection, call)
	default:
		err = ir.Syntaxf("unsupported method [%v] at position %v", call.method, call.pos)
	}
	return
}

func findToQuery(collection string, call shellCall) (q *ir.Query, err error) {
	if len(call.args) > 2 {
		err = ir.Validationf("%v takes at most filter and projection,got %v arguments", call.method, len(call.args))
		return
	}
	q = &ir.Query{Operation: ir.Read, Collection: collection}
	if len(call.args) > 0 {
		q.Filter, err = filterArg(call, 0)
		if err != nil {
			return
		}
	}
	if len(call.args) > 1 {
		var projection bson.D
		projection, err = documentArg(call, 1)
		if err != nil {
			return
		}
		q.Projection, err = converter.ProjectionFromBSON(projection)
		if err != nil {
			return
		}
	}
	if call.method == converter.Mongo_Method_FindOne {
		q.Limit = ir.Int64(1)
	}
	return
}

// find之后的游标调用：sort、limit、skip，pretty和toArray忽略
func applyCursorCalls(q *ir.Query, method string, calls []shellCall) (err error) {
	if len(calls) > 0 && method != converter.Mongo_Method_Find {
		err = ir.Syntaxf("%v can't be chained after %v", calls[0].method, method)
		return
	}
	seen := map[string]bool{}
	for _, call := range calls {
		if seen[call.method] {
			err = ir.Validationf("%v is called more than once", call.method)
			return
		}
		seen[call.method] = true

		switch call.method {
		case converter.Mongo_Method_Sort:
			var doc bson.D
			doc, err = documentArg(call, 0)
			if err != nil {
				return
			}
			q.Sort, err = converter.SortFromBSON(doc)
		case converter.Mongo_Method_Limit, converter.Mongo_Method_Skip:
			if len(call.args) != 1 {
				err = ir.Validationf("%v requires exactly one argument", call.method)
				return
			}
			var n int64
			n, err = converter.NonNegative(call.method, call.args[0])
			if err != nil {
				return
			}
			if call.method == converter.Mongo_Method_Limit {
				q.Limit = ir.Int64(n)
			} else {
				q.Skip = ir.Int64(n)
			}
		case Mongo_Method_Pretty, Mongo_Method_ToArray:
			log.Debugf("ignore cursor method [%v]", call.method)
		default:
			err = ir.Syntaxf("unsupported cursor method [%v] at position %v", call.method, call.pos)
		}
		if err != nil {
			return
		}
	}
	return
}

func insertToQuery(collection string, call shellCall, many bool) (q *ir.Query, err error) {
	if len(call.args) == 0 {
		err = ir.Validationf("%v requires a document argument", call.method)
		return
	}
	if len(call.args) > 1 {
		err = ir.Unsupportedf("%v options are not supported", call.method)
		return
	}
	q = &ir.Query{Operation: ir.Insert, Collection: collection}

	items := bson.A{call.args[0]}
	if many {
		var ok bool
		items, ok = filter.AsArray(call.args[0])
		if !ok || len(items) == 0 {
			err = ir.Validationf("%v requires a non-empty array of documents", call.method)
			return
		}
	}
	for _, item := range items {
		d, ok := filter.AsDocument(item)
		if !ok {
			err = ir.Validationf("%v requires documents,got %T", call.method, item)
			return
		}
		var doc ir.Document
		doc, err = converter.DocumentFromBSON(d)
		if err != nil {
			return
		}
		q.Documents = append(q.Documents, doc)
	}
	return
}

func updateToQuery(collection string, call shellCall) (q *ir.Query, err error) {
	if len(call.args) < 2 {
		err = ir.Validationf("%v requires filter and update arguments", call.method)
		return
	}
	if len(call.args) > 2 {
		err = ir.Unsupportedf("%v options are not supported", call.method)
		return
	}
	q = &ir.Query{Operation: ir.Update, Collection: collection, AffectsOne: call.method == converter.Mongo_Method_UpdateOne}
	q.Filter, err = filterArg(call, 0)
	if err != nil {
		return
	}

	var update bson.D
	update, err = documentArg(call, 1)
	if err != nil {
		return
	}
	// 有操作符时只支持$set，否则整个文档作为赋值
	set := update
	if len(update) > 0 && strings.HasPrefix(update[0].Key, Mongo_Operator_Prefix) {
		set = bson.D{}
		for _, elem := range update {
			if elem.Key != converter.Mongo_Operator_Set {
				err = ir.Unsupportedf("update operator [%v] is not supported", elem.Key)
				return
			}
			sub, ok := filter.AsDocument(elem.Value)
			if !ok {
				err = ir.Validationf("%v requires a document,got %T", elem.Key, elem.Value)
				return
			}
			set = append(set, sub...)
		}
	}

	var doc ir.Document
	doc, err = converter.DocumentFromBSON(set)
	if err != nil {
		return
	}
	seen := map[string]bool{}
	for _, f := range doc {
		if strings.HasPrefix(f.Name, Mongo_Operator_Prefix) {
			err = ir.Unsupportedf("update operator [%v] is not supported", f.Name)
			return
		}
		if seen[f.Name] {
			err = ir.Validationf("field [%v] is assigned twice", f.Name)
			return
		}
		seen[f.Name] = true
		q.Assignments = append(q.Assignments, ir.Assignment{Field: f.Name, Value: f.Value})
	}
	return
}

func deleteToQuery(collection string, call shellCall) (q *ir.Query, err error) {
	if len(call.args) > 1 {
		err = ir.Unsupportedf("%v options are not supported", call.method)
		return
	}
	q = &ir.Query{Operation: ir.Delete, Collection: collection, AffectsOne: call.method == converter.Mongo_Method_DeleteOne}
	if len(call.args) > 0 {
		q.Filter, err = filterArg(call, 0)
	}
	return
}

func aggregateToQuery(collection string, call shellCall) (q *ir.Query, err error) {
	if len(call.args) == 0 {
		err = ir.Validationf("%v requires a pipeline argument", call.method)
		return
	}
	if len(call.args) > 1 {
		err = ir.Unsupportedf("%v options are not supported", call.method)
		return
	}
	pipeline, ok := filter.AsArray(call.args[0])
	if !ok {
		err = ir.Validationf("%v requires an array of stages,got %T", call.method, call.args[0])
		return
	}
	q, err = converter.PipelineToQuery(collection, pipeline)
	return
}

func documentArg(call shellCall, idx int) (doc bson.D, err error) {
	if idx >= len(call.args) {
		err = ir.Validationf("%v requires a document argument", call.method)
		return
	}
	doc, ok := filter.AsDocument(call.args[idx])
	if !ok {
		err = ir.Validationf("argument %v of %v must be a document,got %T", idx+1, call.method, call.args[idx])
	}
	return
}

func filterArg(call shellCall, idx int) (e ir.Expr, err error) {
	var doc bson.D
	doc, err = documentArg(call, idx)
	if err != nil {
		return
	}
	e, err = filter.FromBSON(doc)
	return
}
