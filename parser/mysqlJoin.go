package parser

import (
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/opcode"
	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/ir"
)

// 只支持单层JOIN/LEFT JOIN，连接条件为两表各一列的等值比较
func parseJoinSelect(stmt *ast.SelectStmt, join *ast.Join) (q *ir.Query, err error) {
	if stmt.GroupBy != nil {
		err = ir.Unsupportedf("GROUP BY with JOIN is not supported")
		return
	}
	var kind ir.JoinKind
	switch join.Tp {
	case ast.CrossJoin:
		kind = ir.InnerJoin
	case ast.LeftJoin:
		kind = ir.LeftJoin
	default:
		err = ir.Unsupportedf("only JOIN and LEFT JOIN are supported")
		return
	}
	if join.NaturalJoin || len(join.Using) > 0 {
		err = ir.Unsupportedf("NATURAL JOIN and USING are not supported")
		return
	}

	var table, alias string
	table, alias, err = tableSource(join.Left)
	if err != nil {
		return
	}
	if _, nested := join.Right.(*ast.Join); nested {
		err = ir.Unsupportedf("nested join is not supported")
		return
	}
	var joinTable, joinAlias string
	joinTable, joinAlias, err = tableSource(join.Right)
	if err != nil {
		return
	}
	if joinAlias == "" {
		joinAlias = joinTable
	}
	if joinAlias == table || joinAlias == alias {
		err = ir.Validationf("joined table [%v] needs a distinct alias", joinTable)
		return
	}

	resolver := newColumnResolver(table, alias)
	resolver.join(joinTable, joinAlias)

	q = &ir.Query{Operation: ir.Read, Collection: table}
	q.Join, err = joinCondition(join.On, resolver)
	if err != nil {
		return
	}
	q.Join.Collection = joinTable
	q.Join.Alias = joinAlias
	q.Join.Kind = kind
	log.Debugf("join collection=%v,alias=%v,kind=%v", joinTable, joinAlias, kind)

	q.Projection, err = parseSelectFields(stmt.Fields, resolver)
	if err != nil {
		return
	}
	err = parseSelectTail(q, stmt, resolver)

	return
}

// ON 主表列 = 被连接表列，两侧可以交换
func joinCondition(on *ast.OnCondition, resolver *columnResolver) (join *ir.Join, err error) {
	if on == nil || on.Expr == nil {
		err = ir.Validationf("missing on condition in table join")
		return
	}
	expr := on.Expr
	for {
		paren, ok := expr.(*ast.ParenthesesExpr)
		if !ok {
			break
		}
		expr = paren.Expr
	}
	bo, ok := expr.(*ast.BinaryOperationExpr)
	if !ok || bo.Op != opcode.EQ {
		err = ir.Validationf("join condition must be an equality between two columns")
		return
	}
	left, lok := bo.L.(*ast.ColumnNameExpr)
	right, rok := bo.R.(*ast.ColumnNameExpr)
	if !lok || !rok {
		err = ir.Validationf("join condition must be an equality between two columns")
		return
	}

	local, foreign := left.Name, right.Name
	if resolver.joined[local.Table.O] {
		local, foreign = foreign, local
	}
	if !resolver.primary[local.Table.O] || !resolver.joined[foreign.Table.O] {
		err = ir.Validationf("join condition must compare a column of each table,got [%v.%v] and [%v.%v]",
			local.Table.O, local.Name.O, foreign.Table.O, foreign.Name.O)
		return
	}
	join = &ir.Join{LocalField: local.Name.O, ForeignField: foreign.Name.O}
	return
}
