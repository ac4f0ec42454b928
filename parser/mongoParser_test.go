package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsfans/query-translator/ir"
)

var (
	FIND_ALL      = "users.find({})"
	FIND_ADULTS   = "db.users.find({ age: { $gt: 30 } }, { name: 1, age: 1 })"
	FIND_BARE_OP  = "db.users.find({age: {gt: 30, lte: 65}})"
	FIND_CURSOR   = `db.getCollection("user-logs").find({'level': 'error'}).sort({ts: -1, _id: 1}).limit(10).skip(5).pretty();`
	FIND_ONE      = `db["users"].findOne({_id: 1})`
	FIND_REGEX    = "users.find({ name: /^jo/i })"
	FIND_OR       = "users.find({$or: [{age: {$lt: 18}}, {age: {$gt: 65}}], status: {$in: ['a', 'b',]}})"
	FIND_EXISTS   = "users.find({email: {$exists: false}, nick: null})"
	FIND_DB       = "db.find({})"
	INSERT_DOC    = `db.users.insertOne({name: "bob", age: 30, score: 4.5, active: true, note: null, big: NumberLong("9007199254740993")})`
	INSERT_DOCS   = `db.users.insertMany([{name: "bob"}, {name: "amy", age: 20}])`
	UPDATE_SET    = "db.users.updateOne({_id: 1}, {$set: {age: 31}})"
	UPDATE_WHOLE  = "db.users.updateMany({active: false}, {age: 0, name: 'x'})"
	DELETE_BY_ID  = `db.users.deleteOne({"_id": 1})`
	DELETE_MANY   = "db.users.deleteMany({})"
	AGGREGATE     = "db.users.aggregate([{$match: {age: {$gte: 18}}}, {$sort: {age: -1}}, {$skip: 20}, {$limit: 10}, {$project: {name: 1}}])"
	AGGREGATE_ALT = "db.users.aggregate([{match: {age: {gte: 18}}}, {limit: 5}])"
)

func TestParseMongo(t *testing.T) {
	cases := map[string]*ir.Query{
		FIND_ALL: {Operation: ir.Read, Collection: "users"},
		FIND_ADULTS: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("age", ir.OpGt, ir.Int(30)),
			Projection: []string{"name", "age"},
		},
		FIND_BARE_OP: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.AllOf(ir.Compare("age", ir.OpGt, ir.Int(30)), ir.Compare("age", ir.OpLte, ir.Int(65))),
		},
		FIND_CURSOR: {
			Operation:  ir.Read,
			Collection: "user-logs",
			Filter:     ir.Compare("level", ir.OpEq, ir.String("error")),
			Sort:       []ir.SortKey{{Field: "ts", Direction: ir.Descending}, {Field: "_id", Direction: ir.Ascending}},
			Limit:      ir.Int64(10),
			Skip:       ir.Int64(5),
		},
		FIND_ONE: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("_id", ir.OpEq, ir.Int(1)),
			Limit:      ir.Int64(1),
		},
		FIND_REGEX: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("name", ir.OpLike, ir.String("jo%")),
		},
		FIND_OR: {
			Operation:  ir.Read,
			Collection: "users",
			Filter: ir.AllOf(
				ir.AnyOf(ir.Compare("age", ir.OpLt, ir.Int(18)), ir.Compare("age", ir.OpGt, ir.Int(65))),
				ir.In("status", ir.String("a"), ir.String("b")),
			),
		},
		FIND_EXISTS: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.AllOf(ir.Compare("email", ir.OpExists, ir.Bool(false)), ir.Compare("nick", ir.OpEq, ir.Null())),
		},
		FIND_DB: {Operation: ir.Read, Collection: "db"},
		INSERT_DOC: {
			Operation:  ir.Insert,
			Collection: "users",
			Documents: []ir.Document{{
				{Name: "name", Value: ir.String("bob")},
				{Name: "age", Value: ir.Int(30)},
				{Name: "score", Value: ir.Float(4.5)},
				{Name: "active", Value: ir.Bool(true)},
				{Name: "note", Value: ir.Null()},
				{Name: "big", Value: ir.Int(9007199254740993)},
			}},
		},
		INSERT_DOCS: {
			Operation:  ir.Insert,
			Collection: "users",
			Documents: []ir.Document{
				{{Name: "name", Value: ir.String("bob")}},
				{{Name: "name", Value: ir.String("amy")}, {Name: "age", Value: ir.Int(20)}},
			},
		},
		UPDATE_SET: {
			Operation:   ir.Update,
			Collection:  "users",
			Filter:      ir.Compare("_id", ir.OpEq, ir.Int(1)),
			Assignments: []ir.Assignment{{Field: "age", Value: ir.Int(31)}},
			AffectsOne:  true,
		},
		UPDATE_WHOLE: {
			Operation:   ir.Update,
			Collection:  "users",
			Filter:      ir.Compare("active", ir.OpEq, ir.Bool(false)),
			Assignments: []ir.Assignment{{Field: "age", Value: ir.Int(0)}, {Field: "name", Value: ir.String("x")}},
		},
		DELETE_BY_ID: {
			Operation:  ir.Delete,
			Collection: "users",
			Filter:     ir.Compare("_id", ir.OpEq, ir.Int(1)),
			AffectsOne: true,
		},
		DELETE_MANY: {Operation: ir.Delete, Collection: "users"},
		AGGREGATE: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("age", ir.OpGte, ir.Int(18)),
			Projection: []string{"name"},
			Sort:       []ir.SortKey{{Field: "age", Direction: ir.Descending}},
			Limit:      ir.Int64(10),
			Skip:       ir.Int64(20),
		},
		AGGREGATE_ALT: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("age", ir.OpGte, ir.Int(18)),
			Limit:      ir.Int64(5),
		},
	}

	p := NewMongoParser()
	for shell, want := range cases {
		t.Run(shell, func(t *testing.T) {
			q, err := p.Parse(shell)
			require.NoError(t, err)
			assert.Equal(t, want, q)
		})
	}
}

func TestParseMongoErrors(t *testing.T) {
	cases := map[string]error{
		"":                                       ir.ErrSyntax,
		"db.users":                               ir.ErrSyntax,
		"db.users.count({})":                     ir.ErrSyntax,
		"db.users.find({age: 1}":                 ir.ErrSyntax,
		"db.users.find({age: 1])":                ir.ErrSyntax,
		"db.users.find({age: 'x)":                ir.ErrSyntax,
		"db.users.find({age 1})":                 ir.ErrSyntax,
		"db.users.find({}).hint({a: 1})":         ir.ErrSyntax,
		"db.users.find({}) db.users.find({})":    ir.ErrSyntax,
		"db.users.insertOne({a: 1}).limit(1)":    ir.ErrSyntax,
		"db.users.find({}, {name: 2})":           ir.ErrValidation,
		"db.users.find({}).sort({age: 2})":       ir.ErrValidation,
		"db.users.find({}).limit(-1)":            ir.ErrValidation,
		"db.users.find({}).limit(1).limit(2)":    ir.ErrValidation,
		"db.users.insertOne({})":                 ir.ErrValidation,
		"db.users.insertMany([])":                ir.ErrValidation,
		"db.users.find({age: [1, 2]})":           ir.ErrValidation,
		"db.users.updateOne({}, {$inc: {a: 1}})": ir.ErrUnsupported,
		"db.users.insertOne({tags: ['a']})":      ir.ErrUnsupported,
		`db.users.find({_id: ObjectId("abc")})`:  ir.ErrUnsupported,
		"db.users.find({a: {$type: 'string'}})":  ir.ErrUnsupported,
		"db.users.find({name: /^jo/m})":          ir.ErrUnsupported,
		"db.users.find({name: {$regex: '^jo', $options: 's'}})": ir.ErrUnsupported,
		"db.users.insertOne({a: 1, a: 2})":       ir.ErrValidation,
		"db.users.aggregate([{$project: {name: 1}}, {$match: {age: 1}}])": ir.ErrUnsupported,
		"db.users.insertMany([{a: 1}, {b: 1, b: 2}])": ir.ErrValidation,
		"db.users.aggregate([{$lookup: {from: 'a', localField: 'x', foreignField: 'y', as: 'a'}}, {$lookup: {from: 'b', localField: 'x', foreignField: 'y', as: 'b'}}])": ir.ErrUnsupported,
		"db.users.aggregate([{$group: {_id: '$dept'}}, {$match: {count: {$gt: 1}}}])":                                                                                 ir.ErrUnsupported,
	}

	p := NewMongoParser()
	for shell, want := range cases {
		t.Run(shell, func(t *testing.T) {
			q, err := p.Parse(shell)
			assert.Nil(t, q)
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestParseMongoRepairBrackets(t *testing.T) {
	p := &MongoParser{RepairBrackets: true}

	q, err := p.Parse("db.users.find({age: {$gt: 30}, name: {$in: ['a'];")
	require.NoError(t, err)
	assert.Equal(t, ir.AllOf(ir.Compare("age", ir.OpGt, ir.Int(30)), ir.In("name", ir.String("a"))), q.Filter)

	// 不匹配的右括号不修复
	_, err = p.Parse("db.users.find({age: 1]")
	assert.ErrorIs(t, err, ir.ErrSyntax)
}
