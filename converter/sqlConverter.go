package converter

import (
	"fmt"
	"math"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
)

const (
	// 只有OFFSET没有LIMIT时使用的最大LIMIT，解析时还原为不限制
	SQL_Max_Limit int64 = math.MaxInt64

	SQL_Count_All = "COUNT(*)"
)

// MySQL方言的SQL语句渲染器
type SQLRenderer struct{}

func NewSQLRenderer() *SQLRenderer {
	return &SQLRenderer{}
}

func (r *SQLRenderer) Render(q *ir.Query) (sql string, err error) {
	err = q.Validate()
	if err != nil {
		return
	}

	table := filter.QuoteIdentifier(q.Collection)
	switch q.Operation {
	case ir.Read:
		sql = renderSelect(table, q)
	case ir.Insert:
		sql = renderInsertSQL(table, q)
	case ir.Update:
		sets := make([]string, 0, len(q.Assignments))
		for _, assign := range q.Assignments {
			sets = append(sets, filter.QuoteIdentifier(assign.Field)+" = "+filter.FormatSQLLiteral(assign.Value))
		}
		sql = "UPDATE " + table + " SET " + strings.Join(sets, ", ") + whereClause(q.Filter, nil) + limitOne(q)
	case ir.Delete:
		sql = "DELETE FROM " + table + whereClause(q.Filter, nil) + limitOne(q)
	}
	sql += ";"
	log.Debugf("render sql,collection=%v,operation=%v,sql=[%v]", q.Collection, q.Operation, sql)

	return
}

func renderSelect(table string, q *ir.Query) string {
	var column func(string) string
	from := table
	if q.Join != nil {
		column = joinColumn(q)
		from += joinClause(q)
	}

	var b strings.Builder
	b.WriteString("SELECT " + selectColumns(q, column) + " FROM " + from)
	b.WriteString(whereClause(q.Filter, column))

	if q.Group != nil {
		keys := make([]string, 0, len(q.Group.Keys))
		for _, key := range q.Group.Keys {
			keys = append(keys, filter.QuoteIdentifier(key))
		}
		b.WriteString(" GROUP BY " + strings.Join(keys, ", "))
	}

	if len(q.Sort) > 0 {
		items := make([]string, 0, len(q.Sort))
		for _, key := range q.Sort {
			item := sortColumn(q, key.Field, column)
			if key.Direction == ir.Descending {
				item += " DESC"
			} else {
				item += " ASC"
			}
			items = append(items, item)
		}
		b.WriteString(" ORDER BY " + strings.Join(items, ", "))
	}

	switch {
	case q.Limit != nil:
		b.WriteString(fmt.Sprintf(" LIMIT %v", *q.Limit))
		if q.Skip != nil {
			b.WriteString(fmt.Sprintf(" OFFSET %v", *q.Skip))
		}
	case q.Skip != nil:
		// 部分方言不支持单独的OFFSET
		b.WriteString(fmt.Sprintf(" LIMIT %v OFFSET %v", SQL_Max_Limit, *q.Skip))
	}
	return b.String()
}

func selectColumns(q *ir.Query, column func(string) string) string {
	if q.Group != nil {
		cols := make([]string, 0, len(q.Group.Keys)+1)
		for _, key := range q.Group.Keys {
			cols = append(cols, filter.QuoteIdentifier(key))
		}
		return strings.Join(append(cols, SQL_Count_All), ", ")
	}
	if q.Projection == nil {
		if q.Join != nil {
			// 两张表同名的列在部分数据库中会冲突，按表分别展开
			return filter.QuoteIdentifier(q.Collection) + ".*, " + filter.QuoteIdentifier(q.Join.Alias) + ".*"
		}
		return "*"
	}
	if column == nil {
		column = filter.QuoteIdentifier
	}
	cols := make([]string, 0, len(q.Projection))
	for _, field := range q.Projection {
		cols = append(cols, column(field))
	}
	return strings.Join(cols, ", ")
}

func sortColumn(q *ir.Query, field string, column func(string) string) string {
	if q.Group != nil && field == ir.CountField {
		return SQL_Count_All
	}
	if column == nil {
		return filter.QuoteIdentifier(field)
	}
	return column(field)
}

func whereClause(e ir.Expr, column func(string) string) string {
	if e == nil {
		return ""
	}
	return " WHERE " + filter.ToSQL(e, column)
}

func limitOne(q *ir.Query) string {
	if q.AffectsOne {
		return " LIMIT 1"
	}
	return ""
}

func joinClause(q *ir.Query) string {
	join := q.Join
	keyword := " JOIN "
	if join.Kind == ir.LeftJoin {
		keyword = " LEFT JOIN "
	}
	clause := keyword + filter.QuoteIdentifier(join.Collection)
	if join.Alias != join.Collection {
		clause += " AS " + filter.QuoteIdentifier(join.Alias)
	}
	return clause + " ON " + filter.QuoteIdentifier(q.Collection) + "." + filter.QuoteIdentifier(join.LocalField) +
		" = " + filter.QuoteIdentifier(join.Alias) + "." + filter.QuoteIdentifier(join.ForeignField)
}

// 被连接表的字段以别名开头，直接输出；其余字段都属于主表
func joinColumn(q *ir.Query) func(string) string {
	table := filter.QuoteIdentifier(q.Collection)
	alias := filter.QuoteIdentifier(q.Join.Alias)
	prefix := q.Join.Alias + "."
	return func(field string) string {
		if rest, ok := strings.CutPrefix(field, prefix); ok && rest != "" {
			return alias + "." + filter.QuoteIdentifier(rest)
		}
		return table + "." + filter.QuoteIdentifier(field)
	}
}

// 多行插入时列为所有文档字段的并集，缺失字段补NULL
func renderInsertSQL(table string, q *ir.Query) string {
	cols := q.Columns()
	quoted := make([]string, 0, len(cols))
	for _, col := range cols {
		quoted = append(quoted, filter.QuoteIdentifier(col))
	}
	rows := make([]string, 0, len(q.Documents))
	for _, doc := range q.Documents {
		values := make([]string, 0, len(cols))
		for _, col := range cols {
			val, ok := doc.Get(col)
			if !ok {
				val = ir.Null()
			}
			values = append(values, filter.FormatSQLLiteral(val))
		}
		rows = append(rows, "("+strings.Join(values, ", ")+")")
	}
	return "INSERT INTO " + table + " (" + strings.Join(quoted, ", ") + ") VALUES " + strings.Join(rows, ", ")
}
