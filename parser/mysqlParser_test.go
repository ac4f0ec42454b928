package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsfans/query-translator/ir"
)

var (
	SELECT_ALL    = "SELECT * FROM users;"
	SELECT_ADULTS = "SELECT name, age FROM users WHERE age > 30;"
	SELECT_PAGED  = "select * from users where age >= 18 and (name = 'bob' or name like 'jo%') order by age desc, name limit 10 offset 5"
	SELECT_LIMIT  = "SELECT * FROM users LIMIT 5, 10"
	SELECT_SKIP   = "SELECT * FROM users LIMIT 9223372036854775807 OFFSET 20"
	SELECT_FLIP   = "SELECT * FROM users WHERE 30 < age"
	SELECT_NULLS  = "SELECT * FROM users WHERE status IN ('a', 'b') AND deleted IS NULL AND email IS NOT NULL"
	SELECT_NOT    = "SELECT * FROM users WHERE NOT (age > 30 OR active = TRUE)"
	SELECT_RANGE  = "SELECT * FROM users WHERE score BETWEEN 1 AND 5 AND balance > -5.5"
	SELECT_NESTED = "SELECT `address.city` FROM users WHERE `address.zip` = '100'"
	SELECT_GROUP  = "SELECT dept, COUNT(*) FROM users WHERE age > 30 GROUP BY dept ORDER BY COUNT(*) DESC, dept LIMIT 3"
	SELECT_JOIN   = "SELECT users.name, orders.total FROM users JOIN orders ON users.id = orders.user_id WHERE orders.total > 100"
	SELECT_LEFT   = "SELECT u.name, o.total FROM users u LEFT JOIN orders o ON o.user_id = u.id ORDER BY o.total DESC"
	SELECT_RAW    = "SELECT * FROM users WHERE status = ACTIVE"
	SELECT_CONST  = "SELECT * FROM users WHERE 1 = 0 OR (age > 1 AND 1 = 1)"
	SELECT_TABLES = "SELECT users.*, o.* FROM users LEFT JOIN orders o ON o.user_id = users.id"

	INSERT_COLUMNS = "INSERT INTO users (name, age) VALUES ('bob', 30)"
	INSERT_ROWS    = "INSERT INTO users VALUES ('bob', 30), ('amy', NULL)"
	INSERT_SET     = "INSERT INTO users SET name = 'bob', active = FALSE"
	UPDATE_ONE     = "UPDATE users SET age = 31, name = 'it''s' WHERE id = 1 LIMIT 1"
	DELETE_ALL     = "DELETE FROM users WHERE active = FALSE"
)

func TestParseMySQL(t *testing.T) {
	cases := map[string]*ir.Query{
		SELECT_ALL: {Operation: ir.Read, Collection: "users"},
		SELECT_ADULTS: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("age", ir.OpGt, ir.Int(30)),
			Projection: []string{"name", "age"},
		},
		SELECT_PAGED: {
			Operation:  ir.Read,
			Collection: "users",
			Filter: ir.AllOf(
				ir.Compare("age", ir.OpGte, ir.Int(18)),
				ir.AnyOf(ir.Compare("name", ir.OpEq, ir.String("bob")), ir.Compare("name", ir.OpLike, ir.String("jo%"))),
			),
			Sort:  []ir.SortKey{{Field: "age", Direction: ir.Descending}, {Field: "name", Direction: ir.Ascending}},
			Limit: ir.Int64(10),
			Skip:  ir.Int64(5),
		},
		SELECT_LIMIT: {Operation: ir.Read, Collection: "users", Limit: ir.Int64(10), Skip: ir.Int64(5)},
		SELECT_SKIP:  {Operation: ir.Read, Collection: "users", Skip: ir.Int64(20)},
		SELECT_FLIP: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("age", ir.OpGt, ir.Int(30)),
		},
		SELECT_NULLS: {
			Operation:  ir.Read,
			Collection: "users",
			Filter: ir.AllOf(
				ir.In("status", ir.String("a"), ir.String("b")),
				ir.Compare("deleted", ir.OpEq, ir.Null()),
				ir.Compare("email", ir.OpNe, ir.Null()),
			),
		},
		SELECT_NOT: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.AllOf(ir.Compare("age", ir.OpLte, ir.Int(30)), ir.Compare("active", ir.OpNe, ir.Bool(true))),
		},
		SELECT_RANGE: {
			Operation:  ir.Read,
			Collection: "users",
			Filter: ir.AllOf(
				ir.Compare("score", ir.OpGte, ir.Int(1)),
				ir.Compare("score", ir.OpLte, ir.Int(5)),
				ir.Compare("balance", ir.OpGt, ir.Float(-5.5)),
			),
		},
		SELECT_NESTED: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("address.zip", ir.OpEq, ir.String("100")),
			Projection: []string{"address.city"},
		},
		SELECT_GROUP: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("age", ir.OpGt, ir.Int(30)),
			Group:      &ir.Group{Keys: []string{"dept"}},
			Sort:       []ir.SortKey{{Field: "count", Direction: ir.Descending}, {Field: "dept", Direction: ir.Ascending}},
			Limit:      ir.Int64(3),
		},
		SELECT_JOIN: {
			Operation:  ir.Read,
			Collection: "users",
			Filter:     ir.Compare("orders.total", ir.OpGt, ir.Int(100)),
			Projection: []string{"name", "orders.total"},
			Join:       &ir.Join{Collection: "orders", LocalField: "id", ForeignField: "user_id", Alias: "orders"},
		},
		SELECT_LEFT: {
			Operation:  ir.Read,
			Collection: "users",
			Projection: []string{"name", "o.total"},
			Sort:       []ir.SortKey{{Field: "o.total", Direction: ir.Descending}},
			Join:       &ir.Join{Collection: "orders", LocalField: "id", ForeignField: "user_id", Alias: "o", Kind: ir.LeftJoin},
		},
		INSERT_COLUMNS: {
			Operation:  ir.Insert,
			Collection: "users",
			Documents:  []ir.Document{{{Name: "name", Value: ir.String("bob")}, {Name: "age", Value: ir.Int(30)}}},
		},
		INSERT_ROWS: {
			Operation:  ir.Insert,
			Collection: "users",
			Documents: []ir.Document{
				{{Name: "field1", Value: ir.String("bob")}, {Name: "field2", Value: ir.Int(30)}},
				{{Name: "field1", Value: ir.String("amy")}, {Name: "field2", Value: ir.Null()}},
			},
		},
		INSERT_SET: {
			Operation:  ir.Insert,
			Collection: "users",
			Documents:  []ir.Document{{{Name: "name", Value: ir.String("bob")}, {Name: "active", Value: ir.Bool(false)}}},
		},
		UPDATE_ONE: {
			Operation:   ir.Update,
			Collection:  "users",
			Filter:      ir.Compare("id", ir.OpEq, ir.Int(1)),
			Assignments: []ir.Assignment{{Field: "age", Value: ir.Int(31)}, {Field: "name", Value: ir.String("it's")}},
			AffectsOne:  true,
		},
		DELETE_ALL: {
			Operation:  ir.Delete,
			Collection: "users",
			Filter:     ir.Compare("active", ir.OpEq, ir.Bool(false)),
		},
	}

	cases[SELECT_RAW] = &ir.Query{
		Operation:  ir.Read,
		Collection: "users",
		Filter:     ir.Compare("status", ir.OpEq, ir.String("ACTIVE")),
	}
	cases[SELECT_TABLES] = &ir.Query{
		Operation:  ir.Read,
		Collection: "users",
		Join:       &ir.Join{Collection: "orders", LocalField: "id", ForeignField: "user_id", Alias: "o", Kind: ir.LeftJoin},
	}
	cases[SELECT_CONST] = &ir.Query{
		Operation:  ir.Read,
		Collection: "users",
		Filter: ir.AnyOf(
			ir.In(Constant_Predicate_Field),
			ir.AllOf(ir.Compare("age", ir.OpGt, ir.Int(1)), ir.NotIn(Constant_Predicate_Field)),
		),
	}

	p := NewMySQLParser()
	for sql, want := range cases {
		t.Run(sql, func(t *testing.T) {
			q, err := p.Parse(sql)
			require.NoError(t, err)
			assert.Equal(t, want, q)
		})
	}
}

func TestParseMySQLErrors(t *testing.T) {
	cases := map[string]error{
		"":                                            ir.ErrSyntax,
		"SELEC * FROM users":                          ir.ErrSyntax,
		"SELECT * FROM users; SELECT * FROM orders;":  ir.ErrSyntax,
		"SELECT name age FROM users":                  ir.ErrSyntax,
		"SELECT name, name FROM users":                ir.ErrValidation,
		"INSERT INTO users (name, age) VALUES ('bob')": ir.ErrValidation,
		"SELECT * FROM users JOIN orders":             ir.ErrValidation,
		"SELECT * FROM users JOIN orders ON users.id > orders.user_id":                                   ir.ErrValidation,
		"SELECT * FROM users JOIN orders ON id = user_id":                                                ir.ErrValidation,
		"SELECT * FROM users WHERE x.age > 1":                                                            ir.ErrValidation,
		"SELECT COUNT(*) FROM users":                                                                     ir.ErrUnsupported,
		"SELECT DISTINCT name FROM users":                                                                ir.ErrUnsupported,
		"SELECT * FROM users WHERE name NOT LIKE 'a%'":                                                   ir.ErrUnsupported,
		"SELECT * FROM users WHERE id IN (SELECT user_id FROM orders)":                                   ir.ErrUnsupported,
		"SELECT * FROM users WHERE age > users.score":                                                    ir.ErrUnsupported,
		"SELECT users.* FROM users JOIN orders ON users.id = orders.user_id":                             ir.ErrUnsupported,
		"SELECT users.*, users.* FROM users":                                                             ir.ErrUnsupported,
		"SELECT x.* FROM users":                                                                          ir.ErrValidation,
		"SELECT * FROM users WHERE 1 < 2":                                                                ir.ErrUnsupported,
		"INSERT INTO users (a, a) VALUES (1, 2)":                                                         ir.ErrValidation,
		"SELECT * FROM (SELECT * FROM users) t":                                                          ir.ErrUnsupported,
		"SELECT * FROM users RIGHT JOIN orders ON users.id = orders.user_id":                             ir.ErrUnsupported,
		"SELECT * FROM users JOIN orders ON users.id = orders.user_id JOIN items ON orders.id = items.oid": ir.ErrUnsupported,
		"SELECT * FROM users UNION SELECT * FROM admins":                                                 ir.ErrUnsupported,
		"CREATE TABLE users (id INT)":                                                                    ir.ErrUnsupported,
		"REPLACE INTO users VALUES (1)":                                                                  ir.ErrUnsupported,
		"INSERT INTO users SELECT * FROM admins":                                                         ir.ErrUnsupported,
		"UPDATE users SET age = 1 LIMIT 2":                                                               ir.ErrUnsupported,
		"UPDATE users SET age = age + 1":                                                                 ir.ErrUnsupported,
		"DELETE FROM users ORDER BY id LIMIT 1":                                                          ir.ErrUnsupported,
	}

	p := NewMySQLParser()
	for sql, want := range cases {
		t.Run(sql, func(t *testing.T) {
			q, err := p.Parse(sql)
			assert.Nil(t, q)
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestParseMySQLLiterals(t *testing.T) {
	cases := map[string]ir.Literal{
		"1":                    ir.Int(1),
		"-7":                   ir.Int(-7),
		"+7":                   ir.Int(7),
		"-9223372036854775808": ir.Int(-9223372036854775808),
		"3.25":                 ir.Float(3.25),
		"-0.5":                 ir.Float(-0.5),
		"1e3":                  ir.Float(1000),
		"TRUE":                 ir.Bool(true),
		"false":                ir.Bool(false),
		"NULL":                 ir.Null(),
		"'O''Brien'":           ir.String("O'Brien"),
		`'a\\b'`:               ir.String(`a\b`),
	}

	p := NewMySQLParser()
	for text, want := range cases {
		t.Run(text, func(t *testing.T) {
			q, err := p.Parse("UPDATE t SET v = " + text)
			require.NoError(t, err)
			require.Len(t, q.Assignments, 1)
			assert.Equal(t, want, q.Assignments[0].Value)
		})
	}
}
