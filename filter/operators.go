package filter

import (
	"github.com/tsfans/query-translator/ir"
)

const (
	Mongo_Operator_Eq     = "$eq"
	Mongo_Operator_Ne     = "$ne"
	Mongo_Operator_Gt     = "$gt"
	Mongo_Operator_Gte    = "$gte"
	Mongo_Operator_Lt     = "$lt"
	Mongo_Operator_Lte    = "$lte"
	Mongo_Operator_In     = "$in"
	Mongo_Operator_Nin    = "$nin"
	Mongo_Operator_Regex  = "$regex"
	Mongo_Operator_Exists = "$exists"
	Mongo_Operator_And    = "$and"
	Mongo_Operator_Or     = "$or"

	// regex的附加选项，只支持忽略
	Mongo_Operator_Options = "$options"

	SQL_Operator_Eq   = "="
	SQL_Operator_Ne   = "<>"
	SQL_Operator_Gt   = ">"
	SQL_Operator_Gte  = ">="
	SQL_Operator_Lt   = "<"
	SQL_Operator_Lte  = "<="
	SQL_Operator_In   = "IN"
	SQL_Operator_Nin  = "NOT IN"
	SQL_Operator_Like = "LIKE"

	// 空in列表恒为假，空nin列表恒为真
	SQL_False_Predicate = "1 = 0"
	SQL_True_Predicate  = "1 = 1"
)

var (
	Mongo_Operator_Mapping = map[ir.Op]string{
		ir.OpEq:     Mongo_Operator_Eq,
		ir.OpNe:     Mongo_Operator_Ne,
		ir.OpGt:     Mongo_Operator_Gt,
		ir.OpGte:    Mongo_Operator_Gte,
		ir.OpLt:     Mongo_Operator_Lt,
		ir.OpLte:    Mongo_Operator_Lte,
		ir.OpIn:     Mongo_Operator_In,
		ir.OpNin:    Mongo_Operator_Nin,
		ir.OpLike:   Mongo_Operator_Regex,
		ir.OpExists: Mongo_Operator_Exists,
	}

	Mongo_Operator_Reverse_Mapping = reverse(Mongo_Operator_Mapping)

	SQL_Operator_Mapping = map[ir.Op]string{
		ir.OpEq:   SQL_Operator_Eq,
		ir.OpNe:   SQL_Operator_Ne,
		ir.OpGt:   SQL_Operator_Gt,
		ir.OpGte:  SQL_Operator_Gte,
		ir.OpLt:   SQL_Operator_Lt,
		ir.OpLte:  SQL_Operator_Lte,
		ir.OpIn:   SQL_Operator_In,
		ir.OpNin:  SQL_Operator_Nin,
		ir.OpLike: SQL_Operator_Like,
	}

	// 取反后的比较符
	Negated_Operator_Mapping = map[ir.Op]ir.Op{
		ir.OpEq:  ir.OpNe,
		ir.OpNe:  ir.OpEq,
		ir.OpGt:  ir.OpLte,
		ir.OpGte: ir.OpLt,
		ir.OpLt:  ir.OpGte,
		ir.OpLte: ir.OpGt,
		ir.OpIn:  ir.OpNin,
		ir.OpNin: ir.OpIn,
	}

	// 左右交换后的比较符，用于 30 < age 这种写法
	Flipped_Operator_Mapping = map[ir.Op]ir.Op{
		ir.OpEq:  ir.OpEq,
		ir.OpNe:  ir.OpNe,
		ir.OpGt:  ir.OpLt,
		ir.OpGte: ir.OpLte,
		ir.OpLt:  ir.OpGt,
		ir.OpLte: ir.OpGte,
	}
)

func reverse(m map[ir.Op]string) map[string]ir.Op {
	r := make(map[string]ir.Op, len(m))
	for k, v := range m {
		r[v] = k
	}
	return r
}

// Negate 对条件树取反，比较符取补，And/Or按德摩根定律互换
func Negate(e ir.Expr) (negated ir.Expr, err error) {
	switch node := e.(type) {
	case *ir.Comparison:
		if node.Op == ir.OpExists {
			negated = ir.Compare(node.Field, ir.OpExists, ir.Bool(!node.Value.Bool))
			return
		}
		op, ok := Negated_Operator_Mapping[node.Op]
		if !ok {
			err = ir.Unsupportedf("can't negate operator [%v] on field=%v", node.Op, node.Field)
			return
		}
		negated = &ir.Comparison{Field: node.Field, Op: op, Value: node.Value, Values: node.Values}
	case *ir.And:
		var children []ir.Expr
		children, err = negateAll(node.Children)
		if err != nil {
			return
		}
		negated = ir.AnyOf(children...)
	case *ir.Or:
		var children []ir.Expr
		children, err = negateAll(node.Children)
		if err != nil {
			return
		}
		negated = ir.AllOf(children...)
	default:
		err = ir.Validationf("can't negate expr type=%T", e)
	}
	return
}

func negateAll(exprs []ir.Expr) (negated []ir.Expr, err error) {
	for _, child := range exprs {
		var n ir.Expr
		n, err = Negate(child)
		if err != nil {
			return
		}
		negated = append(negated, n)
	}
	return
}
