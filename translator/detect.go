package translator

import (
	"regexp"
	"strings"

	"github.com/tsfans/query-translator/ir"
)

// 输入的查询语法
type Surface int

const (
	SurfaceUnknown    Surface = 0
	SurfaceSQL        Surface = 1
	SurfaceMongo      Surface = 2
	SurfaceDescriptor Surface = 3
)

func (s Surface) String() string {
	switch s {
	case SurfaceSQL:
		return "sql"
	case SurfaceMongo:
		return "mongo"
	case SurfaceDescriptor:
		return "descriptor"
	}
	return "unknown"
}

func (s Surface) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// 集合访问后紧跟 . 或 [ ，如 db.users.find、users.find、db["users"]
	shellCall = regexp.MustCompile(`^[$_a-zA-Z][$_a-zA-Z0-9]*\s*[.\[]`)

	// SQL语句的第一个关键字
	sqlKeyword = regexp.MustCompile(`^[a-zA-Z]+`)

	SQL_Statement_Keywords = map[string]bool{
		"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "REPLACE": true,
		"WITH": true, "CREATE": true, "DROP": true, "ALTER": true, "TRUNCATE": true,
		"SHOW": true, "SET": true, "EXPLAIN": true,
	}
)

// Detect 判断输入是SQL、mongo shell还是结构化查询描述
func Detect(text string) (surface Surface, err error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		err = ir.Syntaxf("empty input")
	case strings.HasPrefix(text, "{"):
		surface = SurfaceDescriptor
	case shellCall.MatchString(text):
		surface = SurfaceMongo
	case SQL_Statement_Keywords[strings.ToUpper(sqlKeyword.FindString(text))]:
		surface = SurfaceSQL
	default:
		err = ir.Syntaxf("input is neither SQL,mongo shell nor a query descriptor")
	}
	return
}
