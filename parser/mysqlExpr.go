package parser

import (
	"math"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/mysql"
	"github.com/pingcap/tidb/parser/opcode"
	"github.com/pingcap/tidb/types"
	parserDriver "github.com/pingcap/tidb/types/parser_driver"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
)

var SQL_Comparison_Operator = map[opcode.Op]ir.Op{
	opcode.EQ: ir.OpEq,
	opcode.NE: ir.OpNe,
	opcode.GT: ir.OpGt,
	opcode.GE: ir.OpGte,
	opcode.LT: ir.OpLt,
	opcode.LE: ir.OpLte,
}

// 常量条件(1 = 0 / 1 = 1)落到的字段，空in/nin的结果与字段无关
const Constant_Predicate_Field = "_id"

// 列名解析：主表的列为字段名，被连接表的列为 别名.字段名
type columnResolver struct {
	// 主表的表名和别名
	primary map[string]bool
	// 被连接表的表名和别名，没有连接时为空
	joined map[string]bool
	alias  string
}

func newColumnResolver(table, alias string) *columnResolver {
	r := &columnResolver{primary: map[string]bool{table: true}}
	if alias != "" {
		r.primary[alias] = true
	}
	return r
}

func (r *columnResolver) join(table, alias string) {
	r.alias = alias
	r.joined = map[string]bool{alias: true}
	if !r.primary[table] {
		r.joined[table] = true
	}
}

func (r *columnResolver) resolve(col *ast.ColumnName) (field string, err error) {
	name := col.Name.O
	if name == "" {
		err = ir.Validationf("empty column name")
		return
	}
	qualifier := col.Table.O
	switch {
	case qualifier == "" || r.primary[qualifier]:
		field = name
	case r.joined[qualifier]:
		field = r.alias + "." + name
	default:
		err = ir.Validationf("unknown table [%v] of column [%v]", qualifier, name)
	}
	return
}

// allColumns 判断是否选择所有列：单独的*，或每张表各一个 表名.*
func (r *columnResolver) allColumns(fields []*ast.SelectField) (all bool, err error) {
	var wildcards, primary, joined int
	for _, field := range fields {
		wc := field.WildCard
		if wc == nil {
			continue
		}
		wildcards++
		switch table := wc.Table.O; {
		case table == "":
			primary++
			joined++
		case r.primary[table]:
			primary++
		case r.joined[table]:
			joined++
		default:
			err = ir.Validationf("unknown table [%v] in %v.*", table, table)
			return
		}
	}
	switch {
	case wildcards == 0:
		return
	case wildcards != len(fields):
		err = ir.Unsupportedf("* can't be combined with other columns")
	case primary != 1 || (len(r.joined) > 0 && joined != 1):
		err = ir.Unsupportedf("* must select every table exactly once")
	default:
		all = true
	}
	return
}

// 条件表达式转为条件树
func (r *columnResolver) toExpr(node ast.ExprNode) (e ir.Expr, err error) {
	switch expr := node.(type) {
	case *ast.BinaryOperationExpr:
		e, err = r.binaryExpr(expr)
	case *ast.ParenthesesExpr:
		e, err = r.toExpr(expr.Expr)
	case *ast.UnaryOperationExpr:
		if expr.Op != opcode.Not && expr.Op != opcode.Not2 {
			err = ir.Unsupportedf("unsupported unary operator [%v] in condition", expr.Op)
			return
		}
		var inner ir.Expr
		inner, err = r.toExpr(expr.V)
		if err != nil {
			return
		}
		e, err = filter.Negate(inner)
	case *ast.PatternInExpr:
		e, err = r.inExpr(expr)
	case *ast.PatternLikeExpr:
		e, err = r.likeExpr(expr)
	case *ast.IsNullExpr:
		var field string
		field, err = r.columnOf(expr.Expr)
		if err != nil {
			return
		}
		op := ir.OpEq
		if expr.Not {
			op = ir.OpNe
		}
		e = ir.Compare(field, op, ir.Null())
	case *ast.BetweenExpr:
		e, err = r.betweenExpr(expr)
	case *ast.SubqueryExpr, *ast.ExistsSubqueryExpr:
		err = ir.Unsupportedf("subquery is not supported")
	default:
		err = ir.Unsupportedf("unsupported condition type=%T", node)
	}
	return
}

func (r *columnResolver) binaryExpr(expr *ast.BinaryOperationExpr) (e ir.Expr, err error) {
	switch expr.Op {
	case opcode.LogicAnd, opcode.LogicOr:
		var left, right ir.Expr
		left, err = r.toExpr(expr.L)
		if err != nil {
			return
		}
		right, err = r.toExpr(expr.R)
		if err != nil {
			return
		}
		if expr.Op == opcode.LogicAnd {
			e = ir.AllOf(left, right)
		} else {
			e = ir.AnyOf(left, right)
		}
		return
	}

	op, ok := SQL_Comparison_Operator[expr.Op]
	if !ok {
		err = ir.Unsupportedf("unsupported operator [%v] in condition", expr.Op)
		return
	}

	if isConstant(expr.L) && isConstant(expr.R) {
		return constantExpr(op, expr.L, expr.R)
	}

	// 字面量在左侧时交换两侧并翻转操作符
	colNode, valNode := expr.L, expr.R
	if _, isColumn := expr.L.(*ast.ColumnNameExpr); !isColumn {
		if _, isColumn = expr.R.(*ast.ColumnNameExpr); isColumn {
			colNode, valNode = expr.R, expr.L
			op = filter.Flipped_Operator_Mapping[op]
		}
	}
	var field string
	field, err = r.columnOf(colNode)
	if err != nil {
		return
	}
	var lit ir.Literal
	lit, err = literalOf(valNode)
	if err != nil {
		return
	}
	e = ir.Compare(field, op, lit)
	return
}

func (r *columnResolver) inExpr(expr *ast.PatternInExpr) (e ir.Expr, err error) {
	if expr.Sel != nil {
		err = ir.Unsupportedf("IN subquery is not supported")
		return
	}
	var field string
	field, err = r.columnOf(expr.Expr)
	if err != nil {
		return
	}
	values := make([]ir.Literal, 0, len(expr.List))
	for _, item := range expr.List {
		var lit ir.Literal
		lit, err = literalOf(item)
		if err != nil {
			return
		}
		values = append(values, lit)
	}
	if expr.Not {
		e = ir.NotIn(field, values...)
	} else {
		e = ir.In(field, values...)
	}
	return
}

func (r *columnResolver) likeExpr(expr *ast.PatternLikeExpr) (e ir.Expr, err error) {
	if expr.Not {
		err = ir.Unsupportedf("NOT LIKE is not supported")
		return
	}
	var field string
	field, err = r.columnOf(expr.Expr)
	if err != nil {
		return
	}
	var pattern ir.Literal
	pattern, err = literalOf(expr.Pattern)
	if err != nil {
		return
	}
	if pattern.Kind != ir.KindString {
		err = ir.Validationf("LIKE pattern must be a string,got %v", pattern)
		return
	}
	e = ir.Compare(field, ir.OpLike, pattern)
	return
}

// a BETWEEN x AND y 等价于 a >= x AND a <= y
func (r *columnResolver) betweenExpr(expr *ast.BetweenExpr) (e ir.Expr, err error) {
	var field string
	field, err = r.columnOf(expr.Expr)
	if err != nil {
		return
	}
	var low, high ir.Literal
	low, err = literalOf(expr.Left)
	if err != nil {
		return
	}
	high, err = literalOf(expr.Right)
	if err != nil {
		return
	}
	e = ir.AllOf(ir.Compare(field, ir.OpGte, low), ir.Compare(field, ir.OpLte, high))
	if expr.Not {
		e, err = filter.Negate(e)
	}
	return
}

func (r *columnResolver) columnOf(node ast.ExprNode) (field string, err error) {
	if paren, ok := node.(*ast.ParenthesesExpr); ok {
		return r.columnOf(paren.Expr)
	}
	col, ok := node.(*ast.ColumnNameExpr)
	if !ok {
		err = ir.Unsupportedf("left side of comparison must be a column,got %T", node)
		return
	}
	field, err = r.resolve(col.Name)
	return
}

// 解析字面量，负数为一元减号加数字
func literalOf(node ast.ExprNode) (lit ir.Literal, err error) {
	switch expr := node.(type) {
	case *parserDriver.ValueExpr:
		lit, err = datumLiteral(expr)
	case *ast.ParenthesesExpr:
		lit, err = literalOf(expr.Expr)
	case *ast.ColumnNameExpr:
		// 未加引号的单词按原样作为字符串，带表名的视为列
		if expr.Name.Table.O != "" || expr.Name.Schema.O != "" {
			err = ir.Unsupportedf("comparison between columns is not supported,got %v", expr.Name)
			return
		}
		lit = ir.String(expr.Name.Name.O)
	case *ast.UnaryOperationExpr:
		switch expr.Op {
		case opcode.Plus:
			lit, err = literalOf(expr.V)
			if err == nil && lit.Kind != ir.KindInt && lit.Kind != ir.KindFloat {
				err = ir.Unsupportedf("unary + requires a number,got %v", lit)
			}
		case opcode.Minus:
			lit, err = negate(expr.V)
		default:
			err = ir.Unsupportedf("unsupported unary operator [%v] on value", expr.Op)
		}
	default:
		err = ir.Unsupportedf("only literal values are supported,got %T", node)
	}
	return
}

// 不含列的表达式，如空IN渲染出的 1 = 0
func isConstant(node ast.ExprNode) bool {
	switch expr := node.(type) {
	case *parserDriver.ValueExpr:
		return true
	case *ast.ParenthesesExpr:
		return isConstant(expr.Expr)
	case *ast.UnaryOperationExpr:
		return isConstant(expr.V)
	}
	return false
}

// 常量条件转为空in/nin：空in恒假，空nin恒真，与字段无关
func constantExpr(op ir.Op, l, r ast.ExprNode) (e ir.Expr, err error) {
	if op != ir.OpEq && op != ir.OpNe {
		err = ir.Unsupportedf("constant condition only supports = and <>,got %v", op)
		return
	}
	var left, right ir.Literal
	left, err = literalOf(l)
	if err != nil {
		return
	}
	right, err = literalOf(r)
	if err != nil {
		return
	}
	if left.Kind != right.Kind || left.Kind == ir.KindNull {
		err = ir.Unsupportedf("constant condition requires two non-null values of the same type,got %v and %v", left, right)
		return
	}
	if (left == right) == (op == ir.OpEq) {
		e = ir.NotIn(Constant_Predicate_Field)
	} else {
		e = ir.In(Constant_Predicate_Field)
	}
	return
}

func negate(node ast.ExprNode) (lit ir.Literal, err error) {
	// -9223372036854775808 的数字部分超出int64
	if v, ok := node.(*parserDriver.ValueExpr); ok && v.Datum.Kind() == types.KindUint64 && v.Datum.GetUint64() == 1<<63 {
		lit = ir.Int(math.MinInt64)
		return
	}
	lit, err = literalOf(node)
	if err != nil {
		return
	}
	switch lit.Kind {
	case ir.KindInt:
		lit.Int = -lit.Int
	case ir.KindFloat:
		lit.Float = -lit.Float
	default:
		err = ir.Unsupportedf("unary - requires a number,got %v", lit)
	}
	return
}

func datumLiteral(v *parserDriver.ValueExpr) (lit ir.Literal, err error) {
	switch v.Datum.Kind() {
	case types.KindNull:
		lit = ir.Null()
	case types.KindInt64:
		// TRUE/FALSE被解析为带布尔标记的整数
		if mysql.HasIsBooleanFlag(v.GetType().Flag) {
			lit = ir.Bool(v.Datum.GetInt64() != 0)
			return
		}
		lit = ir.Int(v.Datum.GetInt64())
	case types.KindUint64:
		u := v.Datum.GetUint64()
		if u > math.MaxInt64 {
			lit = ir.Float(float64(u))
			return
		}
		lit = ir.Int(int64(u))
	case types.KindFloat32, types.KindFloat64:
		lit = ir.Float(v.Datum.GetFloat64())
	case types.KindMysqlDecimal:
		var f float64
		f, err = v.Datum.GetMysqlDecimal().ToFloat64()
		if err != nil {
			err = ir.Validationf("invalid decimal [%v]", v.Datum.GetMysqlDecimal())
			return
		}
		lit = ir.Float(f)
	case types.KindString, types.KindBytes:
		lit = ir.String(v.Datum.GetString())
	default:
		err = ir.Unsupportedf("unsupported literal kind=%v", v.Datum.Kind())
	}
	return
}
