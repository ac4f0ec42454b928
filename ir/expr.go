package ir

type Op string

const (
	OpEq     Op = "eq"
	OpNe     Op = "ne"
	OpGt     Op = "gt"
	OpGte    Op = "gte"
	OpLt     Op = "lt"
	OpLte    Op = "lte"
	OpIn     Op = "in"
	OpNin    Op = "nin"
	OpLike   Op = "like"
	OpExists Op = "exists"
)

// 过滤条件树，只有Comparison、And、Or三种节点
type Expr interface {
	expr()
}

// 单个字段比较。in/nin使用Values，其余使用Value；like的Value为SQL LIKE模式
type Comparison struct {
	Field  string
	Op     Op
	Value  Literal
	Values []Literal
}

type And struct {
	Children []Expr
}

type Or struct {
	Children []Expr
}

func (*Comparison) expr() {}
func (*And) expr()        {}
func (*Or) expr()         {}

func Compare(field string, op Op, value Literal) *Comparison {
	return &Comparison{Field: field, Op: op, Value: value}
}

func In(field string, values ...Literal) *Comparison {
	if values == nil {
		values = []Literal{}
	}
	return &Comparison{Field: field, Op: OpIn, Values: values}
}

func NotIn(field string, values ...Literal) *Comparison {
	if values == nil {
		values = []Literal{}
	}
	return &Comparison{Field: field, Op: OpNin, Values: values}
}

// AllOf 合并为And，单个子条件直接返回，嵌套的And会被展开
func AllOf(children ...Expr) Expr {
	var flat []Expr
	for _, child := range children {
		if child == nil {
			continue
		}
		if and, ok := child.(*And); ok {
			flat = append(flat, and.Children...)
			continue
		}
		flat = append(flat, child)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &And{Children: flat}
}

// AnyOf 合并为Or，单个子条件直接返回，嵌套的Or会被展开
func AnyOf(children ...Expr) Expr {
	var flat []Expr
	for _, child := range children {
		if child == nil {
			continue
		}
		if or, ok := child.(*Or); ok {
			flat = append(flat, or.Children...)
			continue
		}
		flat = append(flat, child)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &Or{Children: flat}
}

// Walk 先序遍历所有比较节点
func Walk(e Expr, fn func(*Comparison)) {
	switch node := e.(type) {
	case *Comparison:
		fn(node)
	case *And:
		for _, child := range node.Children {
			Walk(child, fn)
		}
	case *Or:
		for _, child := range node.Children {
			Walk(child, fn)
		}
	}
}
