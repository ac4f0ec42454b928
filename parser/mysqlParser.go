package parser

import (
	"fmt"
	"strings"

	tiParser "github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/converter"
	"github.com/tsfans/query-translator/ir"
)

// MySQL语法的SQL解析器，只支持单条SELECT/INSERT/UPDATE/DELETE
type MySQLParser struct{}

func NewMySQLParser() *MySQLParser {
	return &MySQLParser{}
}

func (p *MySQLParser) Parse(sql string) (q *ir.Query, err error) {
	q, err = p.parse(sql)
	if err != nil {
		q = nil
		err = fmt.Errorf("parse sql failed,err=[%w],sql=[%v]", err, sql)
		return
	}

	err = q.Validate()
	if err != nil {
		q = nil
		err = fmt.Errorf("validate sql failed,err=[%w],sql=[%v]", err, sql)
		return
	}

	return
}

func (p *MySQLParser) parse(sql string) (q *ir.Query, err error) {
	log.Debugf("original sql is [%v]", sql)
	if strings.TrimSpace(sql) == "" {
		err = ir.Syntaxf("empty sql")
		return
	}

	// tidb的解析器不能并发使用，每次解析单独创建
	var stmts []ast.StmtNode
	stmts, _, err = tiParser.New().Parse(sql, "", "")
	if err != nil {
		err = ir.Syntaxf("%v", err)
		return
	}
	if len(stmts) == 0 {
		err = ir.Syntaxf("no statement found")
		return
	}
	if len(stmts) > 1 {
		err = ir.Syntaxf("only one statement is supported,got %v", len(stmts))
		return
	}

	switch stmt := stmts[0].(type) {
	case *ast.SelectStmt:
		q, err = parseSelectStmt(stmt)
	case *ast.InsertStmt:
		q, err = parseInsertStmt(stmt)
	case *ast.UpdateStmt:
		q, err = parseUpdateStmt(stmt)
	case *ast.DeleteStmt:
		q, err = parseDeleteStmt(stmt)
	default:
		err = ir.Unsupportedf("unsupported statement type=%T", stmt)
	}

	return
}

func parseSelectStmt(stmt *ast.SelectStmt) (q *ir.Query, err error) {
	if stmt.Distinct {
		err = ir.Unsupportedf("DISTINCT is not supported")
		return
	}
	if stmt.From == nil || stmt.From.TableRefs == nil {
		err = ir.Validationf("table name is required")
		return
	}
	if stmt.Having != nil {
		err = ir.Unsupportedf("HAVING is not supported")
		return
	}

	refs := stmt.From.TableRefs
	if refs.Right != nil {
		// 表连接单独处理
		q, err = parseJoinSelect(stmt, refs)
		return
	}

	var table, alias string
	table, alias, err = tableSource(refs.Left)
	if err != nil {
		return
	}

	q = &ir.Query{Operation: ir.Read, Collection: table}
	resolver := newColumnResolver(table, alias)

	if stmt.GroupBy != nil {
		q.Group, err = parseGroupBy(stmt.GroupBy, resolver)
		if err != nil {
			return
		}
		// 分组时查询字段固定为分组字段和COUNT(*)
		log.Debugf("group by %v,select fields are ignored", q.Group.Keys)
	} else {
		q.Projection, err = parseSelectFields(stmt.Fields, resolver)
		if err != nil {
			return
		}
	}

	err = parseSelectTail(q, stmt, resolver)

	return
}

// 解析WHERE、ORDER BY、LIMIT
func parseSelectTail(q *ir.Query, stmt *ast.SelectStmt, resolver *columnResolver) (err error) {
	if stmt.Where != nil {
		q.Filter, err = resolver.toExpr(stmt.Where)
		if err != nil {
			return
		}
	}

	if stmt.OrderBy != nil {
		for _, item := range stmt.OrderBy.Items {
			var field string
			field, err = sortField(item.Expr, resolver, q.Group != nil)
			if err != nil {
				return
			}
			dir := ir.Ascending
			if item.Desc {
				dir = ir.Descending
			}
			q.Sort = append(q.Sort, ir.SortKey{Field: field, Direction: dir})
		}
	}

	if stmt.Limit != nil {
		var count int64
		count, err = limitValue(stmt.Limit.Count)
		if err != nil {
			return
		}
		// 最大LIMIT表示只有OFFSET
		if count != converter.SQL_Max_Limit {
			q.Limit = ir.Int64(count)
		}
		if stmt.Limit.Offset != nil {
			var offset int64
			offset, err = limitValue(stmt.Limit.Offset)
			if err != nil {
				return
			}
			q.Skip = ir.Int64(offset)
		}
	}
	return
}

func parseSelectFields(fields *ast.FieldList, resolver *columnResolver) (projection []string, err error) {
	if fields == nil || len(fields.Fields) == 0 {
		err = ir.Validationf("column list is required")
		return
	}
	var all bool
	all, err = resolver.allColumns(fields.Fields)
	if err != nil || all {
		return
	}
	seen := map[string]bool{}
	for _, field := range fields.Fields {
		if field.AsName.O != "" {
			err = ir.Syntaxf("column alias [%v] is not supported,columns must be comma-separated identifiers", field.AsName.O)
			return
		}
		col, ok := field.Expr.(*ast.ColumnNameExpr)
		if !ok {
			err = ir.Unsupportedf("only plain columns can be selected,got %T", field.Expr)
			return
		}
		var name string
		name, err = resolver.resolve(col.Name)
		if err != nil {
			return
		}
		if seen[name] {
			err = ir.Validationf("duplicate column [%v]", name)
			return
		}
		seen[name] = true
		projection = append(projection, name)
	}
	return
}

func parseGroupBy(groupBy *ast.GroupByClause, resolver *columnResolver) (group *ir.Group, err error) {
	group = &ir.Group{}
	for _, item := range groupBy.Items {
		col, ok := item.Expr.(*ast.ColumnNameExpr)
		if !ok {
			err = ir.Unsupportedf("GROUP BY only supports columns,got %T", item.Expr)
			return
		}
		var key string
		key, err = resolver.resolve(col.Name)
		if err != nil {
			return
		}
		group.Keys = append(group.Keys, key)
	}
	return
}

func sortField(node ast.ExprNode, resolver *columnResolver, grouped bool) (field string, err error) {
	switch expr := node.(type) {
	case *ast.ColumnNameExpr:
		field, err = resolver.resolve(expr.Name)
	case *ast.AggregateFuncExpr:
		// 分组时可以按COUNT(*)排序
		if grouped && strings.EqualFold(expr.F, ast.AggFuncCount) && isCountAll(expr) {
			field = ir.CountField
			return
		}
		err = ir.Unsupportedf("ORDER BY %v(...) is not supported", expr.F)
	default:
		err = ir.Unsupportedf("ORDER BY only supports columns,got %T", node)
	}
	return
}

func isCountAll(expr *ast.AggregateFuncExpr) bool {
	if expr.Distinct || len(expr.Args) != 1 {
		return false
	}
	_, err := literalOf(expr.Args[0])
	return err == nil
}

func limitValue(node ast.ExprNode) (n int64, err error) {
	var lit ir.Literal
	lit, err = literalOf(node)
	if err != nil {
		return
	}
	if lit.Kind != ir.KindInt || lit.Int < 0 {
		err = ir.Validationf("LIMIT/OFFSET must be a non-negative integer,got %v", lit)
		return
	}
	n = lit.Int
	return
}

func parseInsertStmt(stmt *ast.InsertStmt) (q *ir.Query, err error) {
	if stmt.IsReplace {
		err = ir.Unsupportedf("REPLACE is not supported")
		return
	}
	if len(stmt.OnDuplicate) > 0 {
		err = ir.Unsupportedf("ON DUPLICATE KEY UPDATE is not supported")
		return
	}
	if stmt.Select != nil {
		err = ir.Unsupportedf("INSERT ... SELECT is not supported")
		return
	}

	var table string
	table, err = singleTable(stmt.Table)
	if err != nil {
		return
	}
	q = &ir.Query{Operation: ir.Insert, Collection: table}

	// INSERT INTO t SET a=1,b=2
	if len(stmt.Setlist) > 0 {
		var doc ir.Document
		for _, assign := range stmt.Setlist {
			var lit ir.Literal
			lit, err = literalOf(assign.Expr)
			if err != nil {
				return
			}
			doc = append(doc, ir.Field{Name: assign.Column.Name.O, Value: lit})
		}
		q.Documents = []ir.Document{doc}
		return
	}

	var columns []string
	for _, col := range stmt.Columns {
		columns = append(columns, col.Name.O)
	}
	if len(stmt.Lists) == 0 {
		err = ir.Validationf("VALUES is required")
		return
	}
	for idx, row := range stmt.Lists {
		names := columns
		if len(names) == 0 {
			// 没有列名时按位置命名为field1..fieldN
			for i := range row {
				names = append(names, fmt.Sprintf("field%d", i+1))
			}
		}
		if len(names) != len(row) {
			err = ir.Validationf("row %v has %v values but %v columns", idx+1, len(row), len(names))
			return
		}
		var doc ir.Document
		for i, expr := range row {
			var lit ir.Literal
			lit, err = literalOf(expr)
			if err != nil {
				return
			}
			doc = append(doc, ir.Field{Name: names[i], Value: lit})
		}
		q.Documents = append(q.Documents, doc)
	}

	return
}

func parseUpdateStmt(stmt *ast.UpdateStmt) (q *ir.Query, err error) {
	if stmt.MultipleTable {
		err = ir.Unsupportedf("multi-table UPDATE is not supported")
		return
	}
	if stmt.Order != nil {
		err = ir.Unsupportedf("UPDATE ... ORDER BY is not supported")
		return
	}

	var table string
	table, err = singleTable(stmt.TableRefs)
	if err != nil {
		return
	}
	q = &ir.Query{Operation: ir.Update, Collection: table}
	resolver := newColumnResolver(table, "")

	seen := map[string]bool{}
	for _, assign := range stmt.List {
		var field string
		field, err = resolver.resolve(assign.Column)
		if err != nil {
			return
		}
		if seen[field] {
			err = ir.Validationf("column [%v] is assigned twice", field)
			return
		}
		seen[field] = true
		var lit ir.Literal
		lit, err = literalOf(assign.Expr)
		if err != nil {
			return
		}
		q.Assignments = append(q.Assignments, ir.Assignment{Field: field, Value: lit})
	}

	if stmt.Where != nil {
		q.Filter, err = resolver.toExpr(stmt.Where)
		if err != nil {
			return
		}
	}
	q.AffectsOne, err = affectsOne(stmt.Limit)

	return
}

func parseDeleteStmt(stmt *ast.DeleteStmt) (q *ir.Query, err error) {
	if stmt.IsMultiTable {
		err = ir.Unsupportedf("multi-table DELETE is not supported")
		return
	}
	if stmt.Order != nil {
		err = ir.Unsupportedf("DELETE ... ORDER BY is not supported")
		return
	}

	var table string
	table, err = singleTable(stmt.TableRefs)
	if err != nil {
		return
	}
	q = &ir.Query{Operation: ir.Delete, Collection: table}

	if stmt.Where != nil {
		q.Filter, err = newColumnResolver(table, "").toExpr(stmt.Where)
		if err != nil {
			return
		}
	}
	q.AffectsOne, err = affectsOne(stmt.Limit)

	return
}

// 只支持LIMIT 1，表示最多影响一条记录
func affectsOne(limit *ast.Limit) (one bool, err error) {
	if limit == nil {
		return
	}
	var n int64
	n, err = limitValue(limit.Count)
	if err != nil {
		return
	}
	if n != 1 || limit.Offset != nil {
		err = ir.Unsupportedf("only LIMIT 1 is supported for UPDATE/DELETE")
		return
	}
	one = true
	return
}

func singleTable(refs *ast.TableRefsClause) (table string, err error) {
	if refs == nil || refs.TableRefs == nil {
		err = ir.Validationf("table name is required")
		return
	}
	if refs.TableRefs.Right != nil {
		err = ir.Unsupportedf("multi-table statement is not supported")
		return
	}
	table, _, err = tableSource(refs.TableRefs.Left)
	return
}

// 返回表名和别名
func tableSource(node ast.ResultSetNode) (table, alias string, err error) {
	switch source := node.(type) {
	case *ast.TableSource:
		tableName, ok := source.Source.(*ast.TableName)
		if !ok {
			err = ir.Unsupportedf("subquery in FROM is not supported")
			return
		}
		table = tableName.Name.O
		alias = source.AsName.O
	case *ast.TableName:
		table = source.Name.O
	case *ast.Join:
		err = ir.Unsupportedf("nested join is not supported")
	default:
		err = ir.Validationf("table name is required,got %T", node)
	}
	if err == nil && table == "" {
		err = ir.Validationf("table name is required")
	}
	return
}
