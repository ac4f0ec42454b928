package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tsfans/query-translator/ir"
)

var (
	// 无需引号的标识符
	plainIdentifier = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

	// 作为标识符时需要反引号的关键字
	reservedWords = map[string]bool{
		"ADD": true, "ALL": true, "ALTER": true, "AND": true, "AS": true, "ASC": true,
		"BETWEEN": true, "BY": true, "CASE": true, "CHECK": true, "COLUMN": true,
		"CREATE": true, "CROSS": true, "DEFAULT": true, "DELETE": true, "DESC": true,
		"DISTINCT": true, "DROP": true, "ELSE": true, "EXISTS": true, "FALSE": true,
		"FOREIGN": true, "FROM": true, "GROUP": true, "HAVING": true, "IN": true,
		"INDEX": true, "INNER": true, "INSERT": true, "INTO": true, "IS": true,
		"JOIN": true, "KEY": true, "LEFT": true, "LIKE": true, "LIMIT": true,
		"NOT": true, "NULL": true, "OFFSET": true, "ON": true, "OR": true,
		"ORDER": true, "OUTER": true, "PRIMARY": true, "REFERENCES": true,
		"REPLACE": true, "RIGHT": true, "SELECT": true, "SET": true, "TABLE": true,
		"THEN": true, "TRUE": true, "UNION": true, "UNIQUE": true, "UPDATE": true,
		"USING": true, "VALUES": true, "WHEN": true, "WHERE": true, "WITH": true,
	}
)

// QuoteIdentifier 非普通标识符或关键字使用反引号包裹
func QuoteIdentifier(name string) string {
	if plainIdentifier.MatchString(name) && !reservedWords[strings.ToUpper(name)] {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteSQLString 单引号包裹，内部单引号和反斜杠加倍
func QuoteSQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}

func FormatSQLLiteral(lit ir.Literal) string {
	switch lit.Kind {
	case ir.KindBool:
		if lit.Bool {
			return "TRUE"
		}
		return "FALSE"
	case ir.KindInt:
		return strconv.FormatInt(lit.Int, 10)
	case ir.KindFloat:
		s := strconv.FormatFloat(lit.Float, 'g', -1, 64)
		// 浮点数始终带小数点，避免解析回来变成整数
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case ir.KindString:
		return QuoteSQLString(lit.Str)
	}
	return "NULL"
}

// ToSQL 将条件树转为WHERE子句，column负责字段名的限定和引用，nil时使用QuoteIdentifier
func ToSQL(e ir.Expr, column func(string) string) string {
	if column == nil {
		column = QuoteIdentifier
	}
	switch node := e.(type) {
	case *ir.Comparison:
		return comparisonToSQL(node, column)
	case *ir.And:
		return joinSQL(node.Children, " AND ", column)
	case *ir.Or:
		return joinSQL(node.Children, " OR ", column)
	}
	return SQL_True_Predicate
}

func joinSQL(children []ir.Expr, sep string, column func(string) string) string {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		part := ToSQL(child, column)
		if _, ok := child.(*ir.Comparison); !ok {
			part = "(" + part + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, sep)
}

func comparisonToSQL(cmp *ir.Comparison, column func(string) string) string {
	field := column(cmp.Field)
	switch cmp.Op {
	case ir.OpExists:
		if cmp.Value.Bool {
			return field + " IS NOT NULL"
		}
		return field + " IS NULL"
	case ir.OpEq, ir.OpNe:
		if cmp.Value.IsNull() {
			if cmp.Op == ir.OpEq {
				return field + " IS NULL"
			}
			return field + " IS NOT NULL"
		}
	case ir.OpIn, ir.OpNin:
		if len(cmp.Values) == 0 {
			if cmp.Op == ir.OpIn {
				return SQL_False_Predicate
			}
			return SQL_True_Predicate
		}
		values := make([]string, 0, len(cmp.Values))
		for _, v := range cmp.Values {
			values = append(values, FormatSQLLiteral(v))
		}
		return field + " " + SQL_Operator_Mapping[cmp.Op] + " (" + strings.Join(values, ", ") + ")"
	}
	return field + " " + SQL_Operator_Mapping[cmp.Op] + " " + FormatSQLLiteral(cmp.Value)
}
