package translator

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsfans/query-translator/ir"
)

func TestDetect(t *testing.T) {
	cases := map[string]Surface{
		"SELECT * FROM users":                SurfaceSQL,
		"  delete from users where id = 1":   SurfaceSQL,
		"insert into users values (1)":       SurfaceSQL,
		"db.users.find({})":                  SurfaceMongo,
		"users.find({})":                     SurfaceMongo,
		`db["users"].find()`:                 SurfaceMongo,
		"select.find({})":                    SurfaceMongo,
		`{"collection": "users"}`:            SurfaceDescriptor,
		"\n{collection: 'users', limit: 1}\n": SurfaceDescriptor,
	}
	for text, want := range cases {
		surface, err := Detect(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, surface, text)
	}

	for _, text := range []string{"", "   ", "hello world", "[1, 2]"} {
		_, err := Detect(text)
		assert.ErrorIs(t, err, ir.ErrSyntax, text)
	}
}

func TestTranslate(t *testing.T) {
	tr, err := New(DefaultOptions())
	require.NoError(t, err)

	cases := []struct {
		text   string
		target Surface
		source Surface
		want   string
	}{
		{"SELECT name, age FROM users WHERE age > 30;", SurfaceUnknown, SurfaceSQL, "users.find({ age: { $gt: 30 } }, { name: 1, age: 1 })"},
		{`db.users.deleteOne({"_id": 1})`, SurfaceUnknown, SurfaceMongo, "DELETE FROM users WHERE _id = 1 LIMIT 1;"},
		{`{"collection": "users", "find": {"age": {"$lt": 18}}, "limit": 5}`, SurfaceUnknown, SurfaceDescriptor, "SELECT * FROM users WHERE age < 18 LIMIT 5;"},
		{"SELECT * FROM users ORDER BY age DESC LIMIT 2", SurfaceDescriptor, SurfaceSQL, `{"collection":"users","find":{},"sort":[["age",-1]],"limit":2}`},
		{"users.find({name: 'bob'})", SurfaceMongo, SurfaceMongo, `users.find({ name: "bob" })`},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			res, err := tr.Translate(c.text, c.target)
			require.NoError(t, err)
			assert.Equal(t, c.source, res.Source)
			assert.Equal(t, c.want, res.Output)
			assert.NotEmpty(t, res.ID)
		})
	}
}

func TestTranslateOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Accessor = "db"
	opts.IdentityFields = []string{"uid"}
	tr, err := New(opts)
	require.NoError(t, err)

	res, err := tr.Translate("DELETE FROM users WHERE uid = 5", SurfaceMongo)
	require.NoError(t, err)
	assert.Equal(t, "db.users.deleteOne({ uid: 5 })", res.Output)

	res, err = tr.Translate("DELETE FROM users WHERE _id = 5", SurfaceMongo)
	require.NoError(t, err)
	assert.Equal(t, "db.users.deleteMany({ _id: 5 })", res.Output)

	_, err = tr.Translate("db.users.find({age: 1", SurfaceSQL)
	assert.ErrorIs(t, err, ir.ErrSyntax)

	opts.RepairBrackets = true
	tr, err = New(opts)
	require.NoError(t, err)
	res, err = tr.Translate("db.users.find({age: 1", SurfaceSQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE age = 1;", res.Output)
}

func TestTranslateErrors(t *testing.T) {
	tr, err := New(DefaultOptions())
	require.NoError(t, err)

	cases := map[string]error{
		"SELECT * FROM users; SELECT 1;":             ir.ErrSyntax,
		"db.users.count({})":                         ir.ErrSyntax,
		"SELECT name, name FROM users":               ir.ErrValidation,
		`{"collection": "users", "skip": -1}`:        ir.ErrValidation,
		"SELECT * FROM a JOIN b ON a.x = b.y JOIN c ON b.x = c.y": ir.ErrUnsupported,
		"db.users.updateMany({}, {$inc: {n: 1}})":    ir.ErrUnsupported,
	}
	for text, want := range cases {
		res, err := tr.Translate(text, SurfaceUnknown)
		assert.Nil(t, res, text)
		assert.ErrorIs(t, err, want, text)
	}

	// 结构化查询描述只描述读查询
	_, err = tr.Translate("DELETE FROM users", SurfaceDescriptor)
	assert.ErrorIs(t, err, ir.ErrValidation)
}

func TestTranslateConcurrently(t *testing.T) {
	tr, err := New(DefaultOptions())
	require.NoError(t, err)

	var wg sync.WaitGroup
	outputs := make([]string, 16)
	for i := range outputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := tr.Translate("SELECT * FROM users WHERE age >= 18 OR vip = TRUE", SurfaceMongo)
			if err == nil {
				outputs[i] = res.Output
			}
		}(i)
	}
	wg.Wait()
	for _, out := range outputs {
		assert.Equal(t, "users.find({ $or: [{ age: { $gte: 18 } }, { vip: true }] })", out)
	}
}

func TestParseSurface(t *testing.T) {
	for _, s := range []Surface{SurfaceSQL, SurfaceMongo, SurfaceDescriptor} {
		got, err := ParseSurface(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseSurface("xml")
	assert.ErrorIs(t, err, ir.ErrValidation)
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accessor: db\nrepair_brackets: true\nlog_level: debug\n"), 0o644))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, Options{
		Accessor:       "db",
		IdentityFields: []string{"_id", "id"},
		RepairBrackets: true,
		LogLevel:       "debug",
	}, opts)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log_level: loud\n"), 0o644))
	_, err = LoadOptions(bad)
	assert.Error(t, err)

	accessor := filepath.Join(dir, "accessor.yaml")
	require.NoError(t, os.WriteFile(accessor, []byte("accessor: \"my db\"\n"), 0o644))
	_, err = LoadOptions(accessor)
	assert.Error(t, err)

	_, err = LoadOptions(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
