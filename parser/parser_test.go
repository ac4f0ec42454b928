package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsfans/query-translator/converter"
	"github.com/tsfans/query-translator/ir"
)

var (
	SQL_LIST = []string{
		SELECT_ALL, SELECT_ADULTS, SELECT_PAGED, SELECT_LIMIT, SELECT_SKIP, SELECT_NULLS, SELECT_NOT,
		SELECT_RANGE, SELECT_NESTED, SELECT_GROUP, SELECT_JOIN, SELECT_LEFT, SELECT_RAW, SELECT_CONST, SELECT_TABLES,
		INSERT_COLUMNS, INSERT_ROWS, INSERT_SET, UPDATE_ONE, DELETE_ALL,
		"SELECT * FROM `order` WHERE `key` = 'a\\\\b' AND note = 'it''s'",
	}

	SHELL_LIST = []string{
		FIND_ALL, FIND_ADULTS, FIND_BARE_OP, FIND_CURSOR, FIND_ONE, FIND_REGEX, FIND_OR, FIND_EXISTS,
		INSERT_DOC, INSERT_DOCS, UPDATE_WHOLE, DELETE_BY_ID, DELETE_MANY, AGGREGATE,
		"db.users.aggregate([{$match: {age: {$gt: 30}}}, {$group: {_id: {dept: '$dept'}, count: {$sum: 1}}}, {$sort: {count: -1}}, {$limit: 3}])",
		"db.users.aggregate([{$lookup: {from: 'orders', localField: 'id', foreignField: 'user_id', as: 'orders'}}, {$unwind: {path: '$orders', preserveNullAndEmptyArrays: true}}, {$match: {'orders.total': {$gt: 100}}}])",
	}
)

func TestSQLRoundTrip(t *testing.T) {
	p := NewMySQLParser()
	r := converter.NewSQLRenderer()
	for _, sql := range SQL_LIST {
		t.Run(sql, func(t *testing.T) {
			q, err := p.Parse(sql)
			require.NoError(t, err)
			rendered, err := r.Render(q)
			require.NoError(t, err)
			again, err := p.Parse(rendered)
			require.NoError(t, err, rendered)
			assert.Equal(t, q, again, rendered)
		})
	}
}

func TestMongoRoundTrip(t *testing.T) {
	p := NewMongoParser()
	r := converter.NewMongoRenderer()
	for _, shell := range SHELL_LIST {
		t.Run(shell, func(t *testing.T) {
			q, err := p.Parse(shell)
			require.NoError(t, err)
			rendered, err := r.Render(q)
			require.NoError(t, err)
			again, err := p.Parse(rendered)
			require.NoError(t, err, rendered)
			assert.Equal(t, q, again, rendered)
		})
	}
}

// SQL和shell之间互相转换后语义不变
func TestCrossRoundTrip(t *testing.T) {
	sqlParser, mongoParser := NewMySQLParser(), NewMongoParser()
	sqlRenderer, mongoRenderer := converter.NewSQLRenderer(), converter.NewMongoRenderer()
	for _, sql := range []string{SELECT_ADULTS, SELECT_PAGED, SELECT_NULLS, SELECT_GROUP, SELECT_JOIN, SELECT_LEFT, INSERT_COLUMNS, DELETE_ALL} {
		t.Run(sql, func(t *testing.T) {
			q, err := sqlParser.Parse(sql)
			require.NoError(t, err)
			shell, err := mongoRenderer.Render(q)
			require.NoError(t, err)
			fromShell, err := mongoParser.Parse(shell)
			require.NoError(t, err, shell)
			assert.Equal(t, q, fromShell, shell)

			back, err := sqlRenderer.Render(fromShell)
			require.NoError(t, err)
			fromSQL, err := sqlParser.Parse(back)
			require.NoError(t, err, back)
			assert.Equal(t, q, fromSQL, back)
		})
	}
}

func TestSQLToMongo(t *testing.T) {
	cases := map[string]string{
		SELECT_ALL:    "users.find({})",
		SELECT_ADULTS: "users.find({ age: { $gt: 30 } }, { name: 1, age: 1 })",
		SELECT_SKIP:   "users.find({}).skip(20)",
		DELETE_ALL:    "users.deleteMany({ active: false })",
	}
	p := NewMySQLParser()
	r := converter.NewMongoRenderer()
	for sql, want := range cases {
		q, err := p.Parse(sql)
		require.NoError(t, err)
		shell, err := r.Render(q)
		require.NoError(t, err)
		assert.Equal(t, want, shell, sql)
	}
}

func TestMongoToSQL(t *testing.T) {
	cases := map[string]string{
		DELETE_BY_ID:                               "DELETE FROM users WHERE _id = 1 LIMIT 1;",
		FIND_ADULTS:                                "SELECT name, age FROM users WHERE age > 30;",
		FIND_OR:                                    "SELECT * FROM users WHERE (age < 18 OR age > 65) AND status IN ('a', 'b');",
		"users.find({tag: {$in: []}})":             "SELECT * FROM users WHERE 1 = 0;",
		"users.find({tag: {$nin: []}})":            "SELECT * FROM users WHERE 1 = 1;",
		"users.find({name: 'O\\'Brien'})":          "SELECT * FROM users WHERE name = 'O''Brien';",
		"db.users.updateOne({_id: 1}, {$set: {age: 31}})": "UPDATE users SET age = 31 WHERE _id = 1 LIMIT 1;",
	}
	p, sqlParser := NewMongoParser(), NewMySQLParser()
	r := converter.NewSQLRenderer()
	for shell, want := range cases {
		q, err := p.Parse(shell)
		require.NoError(t, err)
		sql, err := r.Render(q)
		require.NoError(t, err)
		assert.Equal(t, want, sql, shell)

		// 生成的SQL能被再次解析，渲染结果不变
		again, err := sqlParser.Parse(sql)
		require.NoError(t, err, sql)
		rendered, err := r.Render(again)
		require.NoError(t, err)
		assert.Equal(t, want, rendered, sql)
	}
}

func TestLimitSkipRoundTrip(t *testing.T) {
	values := []int64{0, 1, 25, 1 << 40}
	sqlParser, mongoParser := NewMySQLParser(), NewMongoParser()
	sqlRenderer, mongoRenderer := converter.NewSQLRenderer(), converter.NewMongoRenderer()

	var queries []*ir.Query
	for _, l := range values {
		queries = append(queries, &ir.Query{Operation: ir.Read, Collection: "users", Limit: ir.Int64(l)})
		queries = append(queries, &ir.Query{Operation: ir.Read, Collection: "users", Skip: ir.Int64(l)})
		for _, s := range values {
			queries = append(queries, &ir.Query{Operation: ir.Read, Collection: "users", Limit: ir.Int64(l), Skip: ir.Int64(s)})
		}
	}

	for _, q := range queries {
		sql, err := sqlRenderer.Render(q)
		require.NoError(t, err)
		fromSQL, err := sqlParser.Parse(sql)
		require.NoError(t, err, sql)
		assert.Equal(t, q, fromSQL, sql)

		shell, err := mongoRenderer.Render(q)
		require.NoError(t, err)
		fromShell, err := mongoParser.Parse(shell)
		require.NoError(t, err, shell)
		assert.Equal(t, q, fromShell, shell)
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	p := NewMySQLParser()
	r := converter.NewSQLRenderer()
	for _, s := range []string{"O'Brien", "''", `back\slash`, `\'`, "multi\nline"} {
		q := &ir.Query{
			Operation:  ir.Insert,
			Collection: "users",
			Documents:  []ir.Document{{{Name: "name", Value: ir.String(s)}}},
		}
		sql, err := r.Render(q)
		require.NoError(t, err)
		again, err := p.Parse(sql)
		require.NoError(t, err, sql)
		assert.Equal(t, q, again, sql)
	}

	sql, err := r.Render(&ir.Query{
		Operation:  ir.Read,
		Collection: "users",
		Filter:     ir.Compare("name", ir.OpEq, ir.String("O'Brien")),
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE name = 'O''Brien';", sql)
}

func TestJoinPipelineRoundTrip(t *testing.T) {
	q, err := NewMySQLParser().Parse("SELECT * FROM users JOIN orders ON users.id = orders.user_id WHERE orders.total > 100;")
	require.NoError(t, err)
	assert.Len(t, converter.QueryToPipeline(q), 3)

	shell, err := converter.NewMongoRenderer().Render(q)
	require.NoError(t, err)
	again, err := NewMongoParser().Parse(shell)
	require.NoError(t, err, shell)
	assert.Equal(t, q, again)
}

func TestParseDescriptor(t *testing.T) {
	q, err := NewDescriptorParser().Parse(`{"collection": "users", "find": {"age": {"$gt": 30}}, "projection": {"name": 1},
		"sort": [["age", -1]], "limit": 10, "skip": 5}`)
	require.NoError(t, err)
	assert.Equal(t, &ir.Query{
		Operation:  ir.Read,
		Collection: "users",
		Filter:     ir.Compare("age", ir.OpGt, ir.Int(30)),
		Projection: []string{"name"},
		Sort:       []ir.SortKey{{Field: "age", Direction: ir.Descending}},
		Limit:      ir.Int64(10),
		Skip:       ir.Int64(5),
	}, q)
}

func TestDescriptorRoundTrip(t *testing.T) {
	sqlParser := NewMySQLParser()
	p := NewDescriptorParser()
	r := converter.NewDescriptorRenderer()
	for _, sql := range []string{SELECT_ALL, SELECT_ADULTS, SELECT_PAGED, SELECT_SKIP, SELECT_NULLS, SELECT_GROUP, SELECT_JOIN, SELECT_LEFT} {
		t.Run(sql, func(t *testing.T) {
			q, err := sqlParser.Parse(sql)
			require.NoError(t, err)
			text, err := r.Render(q)
			require.NoError(t, err)
			again, err := p.Parse(text)
			require.NoError(t, err, text)
			assert.Equal(t, q, again, text)
		})
	}
}

func TestParseDescriptorErrors(t *testing.T) {
	cases := map[string]error{
		`{"collection": "users"`:                   ir.ErrSyntax,
		`[1, 2]`:                                   ir.ErrValidation,
		`{"find": {}}`:                             ir.ErrValidation,
		`{"collection": "users", "bogus": 1}`:      ir.ErrValidation,
		`{"collection": "users", "limit": "ten"}`:  ir.ErrValidation,
		`{"collection": "users", "sort": [["a"]]}`: ir.ErrValidation,
	}
	p := NewDescriptorParser()
	for text, want := range cases {
		_, err := p.Parse(text)
		assert.ErrorIs(t, err, want, text)
	}
}

func ExampleMySQLParser() {
	q, _ := NewMySQLParser().Parse("SELECT name FROM users WHERE age >= 18 ORDER BY name LIMIT 5")
	shell, _ := converter.NewMongoRenderer().Render(q)
	fmt.Println(shell)
	// Output: users.find({ age: { $gte: 18 } }, { name: 1 }).sort({ name: 1 }).limit(5)
}
