package ir

import (
	"fmt"
	"strings"
)

type Operation int

const (
	Read   Operation = 1
	Insert Operation = 2
	Update Operation = 3
	Delete Operation = 4
)

func (o Operation) String() string {
	switch o {
	case Read:
		return "Read"
	case Insert:
		return "Insert"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

type SortKey struct {
	Field     string
	Direction Direction
}

// 分组只支持按字段分组计数
type Group struct {
	Keys []string
}

// 分组计数结果字段名
const CountField = "count"

type JoinKind int

const (
	InnerJoin JoinKind = 0
	LeftJoin  JoinKind = 1
)

// 单层表连接，Alias为被连接集合在结果文档中的字段名
type Join struct {
	Collection   string
	LocalField   string
	ForeignField string
	Alias        string
	Kind         JoinKind
}

type Field struct {
	Name  string
	Value Literal
}

// 有序文档
type Document []Field

func (d Document) Get(name string) (Literal, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Literal{}, false
}

type Assignment struct {
	Field string
	Value Literal
}

// Query 所有解析器产出、所有渲染器消费的统一查询表示
type Query struct {
	Operation  Operation
	Collection string
	// nil表示不过滤
	Filter Expr
	// nil表示查询所有字段
	Projection []string
	Sort       []SortKey
	Limit      *int64
	Skip       *int64
	Group      *Group
	Join       *Join
	// 仅Insert使用
	Documents []Document
	// 仅Update使用
	Assignments []Assignment
	// Update/Delete是否最多影响一条记录
	AffectsOne bool
}

func Int64(v int64) *int64 {
	return &v
}

// Columns 返回所有文档字段的并集，按首次出现顺序
func (q *Query) Columns() (cols []string) {
	seen := map[string]bool{}
	for _, doc := range q.Documents {
		for _, f := range doc {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			cols = append(cols, f.Name)
		}
	}
	return
}

func (q *Query) Validate() (err error) {
	if q == nil {
		err = Validationf("nil query")
		return
	}
	if strings.TrimSpace(q.Collection) == "" {
		err = Validationf("collection name is required")
		return
	}
	switch q.Operation {
	case Read, Insert, Update, Delete:
	default:
		err = Validationf("unknown operation=%v", q.Operation)
		return
	}
	if q.Limit != nil && *q.Limit < 0 {
		err = Validationf("limit must be non-negative,got %v", *q.Limit)
		return
	}
	if q.Skip != nil && *q.Skip < 0 {
		err = Validationf("skip must be non-negative,got %v", *q.Skip)
		return
	}

	seen := map[string]bool{}
	for _, field := range q.Projection {
		if field == "" {
			err = Validationf("empty projection field")
			return
		}
		if seen[field] {
			err = Validationf("duplicate projection field=%v", field)
			return
		}
		seen[field] = true
	}

	for _, key := range q.Sort {
		if key.Field == "" {
			err = Validationf("empty sort field")
			return
		}
		if key.Direction != Ascending && key.Direction != Descending {
			err = Validationf("invalid sort direction=%v,field=%v", key.Direction, key.Field)
			return
		}
	}

	if q.Group != nil {
		if len(q.Group.Keys) == 0 {
			err = Validationf("group keys must not be empty")
			return
		}
		for _, key := range q.Group.Keys {
			if key == "" {
				err = Validationf("empty group key")
				return
			}
		}
	}

	if q.Join != nil {
		if q.Join.Collection == "" || q.Join.LocalField == "" || q.Join.ForeignField == "" {
			err = Validationf("join requires collection,localField and foreignField")
			return
		}
		if q.Join.Alias == "" {
			err = Validationf("join alias is required")
			return
		}
	}

	if q.Group != nil && q.Join != nil {
		err = Validationf("group and join can't be used together")
		return
	}
	if (q.Group != nil || q.Join != nil) && q.Operation != Read {
		err = Validationf("group and join are only valid for Read,got %v", q.Operation)
		return
	}

	switch q.Operation {
	case Insert:
		if len(q.Documents) == 0 {
			err = Validationf("insert requires at least one document")
			return
		}
		for idx, doc := range q.Documents {
			if len(doc) == 0 {
				err = Validationf("insert document %v is empty", idx)
				return
			}
			names := make(map[string]bool, len(doc))
			for _, f := range doc {
				if names[f.Name] {
					err = Validationf("duplicate field=%v in document %d", f.Name, idx)
					return
				}
				names[f.Name] = true
			}
		}
	case Update:
		if len(q.Assignments) == 0 {
			err = Validationf("update requires at least one assignment")
			return
		}
	}
	if q.Operation != Insert && len(q.Documents) > 0 {
		err = Validationf("documents are only valid for Insert")
		return
	}
	if q.Operation != Update && len(q.Assignments) > 0 {
		err = Validationf("assignments are only valid for Update")
		return
	}

	err = validateExpr(q.Filter)

	return
}

func validateExpr(e Expr) (err error) {
	switch node := e.(type) {
	case nil:
	case *Comparison:
		if node.Field == "" {
			err = Validationf("comparison without field")
			return
		}
		switch node.Op {
		case OpIn, OpNin:
			if node.Values == nil {
				err = Validationf("%v on field=%v requires a value list", node.Op, node.Field)
			}
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			if node.Values != nil {
				err = Validationf("%v on field=%v takes a single value", node.Op, node.Field)
			}
		case OpLike:
			if node.Value.Kind != KindString {
				err = Validationf("like on field=%v requires a string pattern", node.Field)
			}
		case OpExists:
			if node.Value.Kind != KindBool {
				err = Validationf("exists on field=%v requires a boolean", node.Field)
			}
		default:
			err = Validationf("unknown operator=%v", node.Op)
		}
	case *And:
		err = validateChildren("and", node.Children)
	case *Or:
		err = validateChildren("or", node.Children)
	default:
		err = Validationf("unknown expr type=%T", e)
	}
	return
}

func validateChildren(name string, children []Expr) (err error) {
	if len(children) == 0 {
		err = Validationf("empty %v group", name)
		return
	}
	for _, child := range children {
		if child == nil {
			err = Validationf("nil child in %v group", name)
			return
		}
		err = validateExpr(child)
		if err != nil {
			return
		}
	}
	return
}
