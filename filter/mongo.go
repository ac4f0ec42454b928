package filter

import (
	"maps"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToBSON 将条件树转为mongo过滤文档，nil返回空文档
func ToBSON(e ir.Expr) (doc bson.D) {
	switch node := e.(type) {
	case *ir.Comparison:
		doc = bson.D{comparisonElem(node)}
	case *ir.And:
		// 字段不重复的平铺And直接合并为一个文档
		if merged, ok := mergeAnd(node); ok {
			doc = merged
			return
		}
		doc = bson.D{{Key: Mongo_Operator_And, Value: childrenToBSON(node.Children)}}
	case *ir.Or:
		doc = bson.D{{Key: Mongo_Operator_Or, Value: childrenToBSON(node.Children)}}
	default:
		doc = bson.D{}
	}
	return
}

func childrenToBSON(children []ir.Expr) (arr bson.A) {
	arr = bson.A{}
	for _, child := range children {
		arr = append(arr, ToBSON(child))
	}
	return
}

// 最多合并一个Or，作为$or字段
func mergeAnd(and *ir.And) (doc bson.D, ok bool) {
	seen := map[string]bool{}
	for _, child := range and.Children {
		switch node := child.(type) {
		case *ir.Comparison:
			if seen[node.Field] || strings.HasPrefix(node.Field, "$") {
				return nil, false
			}
			seen[node.Field] = true
			doc = append(doc, comparisonElem(node))
		case *ir.Or:
			if seen[Mongo_Operator_Or] {
				return nil, false
			}
			seen[Mongo_Operator_Or] = true
			doc = append(doc, bson.E{Key: Mongo_Operator_Or, Value: childrenToBSON(node.Children)})
		default:
			return nil, false
		}
	}
	ok = true
	return
}

func comparisonElem(cmp *ir.Comparison) bson.E {
	switch cmp.Op {
	case ir.OpEq:
		return bson.E{Key: cmp.Field, Value: cmp.Value.Value()}
	case ir.OpIn, ir.OpNin:
		values := bson.A{}
		for _, v := range cmp.Values {
			values = append(values, v.Value())
		}
		return bson.E{Key: cmp.Field, Value: bson.D{{Key: Mongo_Operator_Mapping[cmp.Op], Value: values}}}
	case ir.OpLike:
		return bson.E{Key: cmp.Field, Value: bson.D{{Key: Mongo_Operator_Regex, Value: LikeToRegex(cmp.Value.Str)}}}
	}
	return bson.E{Key: cmp.Field, Value: bson.D{{Key: Mongo_Operator_Mapping[cmp.Op], Value: cmp.Value.Value()}}}
}

// FromBSON 将mongo过滤文档转为条件树，空文档返回nil
func FromBSON(doc bson.D) (e ir.Expr, err error) {
	var children []ir.Expr
	for _, elem := range doc {
		var child ir.Expr
		switch elem.Key {
		case Mongo_Operator_And, Mongo_Operator_Or:
			child, err = logicalFromBSON(elem.Key, elem.Value)
		default:
			if strings.HasPrefix(elem.Key, "$") {
				err = ir.Unsupportedf("unsupported top-level operator [%v]", elem.Key)
				return
			}
			child, err = fieldFromBSON(elem.Key, elem.Value)
		}
		if err != nil {
			return
		}
		if child != nil {
			children = append(children, child)
		}
	}
	e = ir.AllOf(children...)
	return
}

func logicalFromBSON(op string, val any) (e ir.Expr, err error) {
	arr, ok := AsArray(val)
	if !ok || len(arr) == 0 {
		err = ir.Validationf("%v requires a non-empty array,got %T", op, val)
		return
	}
	var children []ir.Expr
	for _, item := range arr {
		sub, ok := AsDocument(item)
		if !ok {
			err = ir.Validationf("%v items must be documents,got %T", op, item)
			return
		}
		var child ir.Expr
		child, err = FromBSON(sub)
		if err != nil {
			return
		}
		if child == nil {
			if op == Mongo_Operator_Or {
				// 空文档匹配所有记录，整个$or恒为真
				log.Debugf("%v contains an empty document,dropping the whole group", op)
				return nil, nil
			}
			continue
		}
		children = append(children, child)
	}
	if op == Mongo_Operator_And {
		e = ir.AllOf(children...)
	} else {
		e = ir.AnyOf(children...)
	}
	return
}

func fieldFromBSON(field string, val any) (e ir.Expr, err error) {
	if regex, ok := val.(primitive.Regex); ok {
		e, err = likeFromRegex(field, regex.Pattern, regex.Options)
		return
	}
	if _, ok := AsArray(val); ok {
		err = ir.Validationf("array equality on field=%v is not supported", field)
		return
	}
	doc, isDoc := AsDocument(val)
	if !isDoc {
		var lit ir.Literal
		lit, err = toLiteral(field, val)
		if err != nil {
			return
		}
		e = ir.Compare(field, ir.OpEq, lit)
		return
	}
	if len(doc) == 0 || !strings.HasPrefix(doc[0].Key, "$") {
		err = ir.Unsupportedf("embedded document equality on field=%v is not supported", field)
		return
	}

	var options string
	for _, elem := range doc {
		if elem.Key == Mongo_Operator_Options {
			var ok bool
			if options, ok = elem.Value.(string); !ok {
				err = ir.Validationf("%v on field=%v requires a string,got %T", Mongo_Operator_Options, field, elem.Value)
				return
			}
		}
	}

	var children []ir.Expr
	for _, elem := range doc {
		if elem.Key == Mongo_Operator_Options {
			continue
		}
		op, ok := Mongo_Operator_Reverse_Mapping[elem.Key]
		if !ok {
			err = ir.Unsupportedf("unsupported operator [%v] on field=%v", elem.Key, field)
			return
		}
		var child ir.Expr
		switch op {
		case ir.OpIn, ir.OpNin:
			child, err = listFromBSON(field, op, elem.Value)
		case ir.OpLike:
			switch pattern := elem.Value.(type) {
			case string:
				child, err = likeFromRegex(field, pattern, options)
			case primitive.Regex:
				child, err = likeFromRegex(field, pattern.Pattern, pattern.Options)
			default:
				err = ir.Validationf("$regex on field=%v requires a string,got %T", field, elem.Value)
			}
		case ir.OpExists:
			var exists bool
			exists, err = toBool(field, elem.Value)
			child = ir.Compare(field, ir.OpExists, ir.Bool(exists))
		default:
			var lit ir.Literal
			lit, err = toLiteral(field, elem.Value)
			child = ir.Compare(field, op, lit)
		}
		if err != nil {
			return
		}
		children = append(children, child)
	}
	e = ir.AllOf(children...)
	return
}

func listFromBSON(field string, op ir.Op, val any) (e ir.Expr, err error) {
	arr, ok := AsArray(val)
	if !ok {
		err = ir.Validationf("%v on field=%v requires an array,got %T", Mongo_Operator_Mapping[op], field, val)
		return
	}
	values := make([]ir.Literal, 0, len(arr))
	for _, item := range arr {
		var lit ir.Literal
		lit, err = toLiteral(field, item)
		if err != nil {
			return
		}
		values = append(values, lit)
	}
	e = &ir.Comparison{Field: field, Op: op, Values: values}
	return
}

func likeFromRegex(field, regex, options string) (e ir.Expr, err error) {
	// LIKE在默认排序规则下不区分大小写，只有i可以忽略
	for _, flag := range options {
		if flag != 'i' {
			err = ir.Unsupportedf("regex option [%c] on field=%v is not supported", flag, field)
			return
		}
	}
	if options != "" {
		log.Debugf("regex options [%v] on field=%v are ignored", options, field)
	}
	var pattern string
	pattern, err = RegexToLike(regex)
	if err != nil {
		return
	}
	e = ir.Compare(field, ir.OpLike, ir.String(pattern))
	return
}

func toLiteral(field string, val any) (lit ir.Literal, err error) {
	lit, ok := ir.LiteralOf(val)
	if !ok {
		err = ir.Validationf("value of field=%v must be a scalar,got %T", field, val)
	}
	return
}

func toBool(field string, val any) (b bool, err error) {
	switch v := val.(type) {
	case bool:
		b = v
	case int32:
		b = v != 0
	case int64:
		b = v != 0
	case float64:
		b = v != 0
	default:
		err = ir.Validationf("$exists on field=%v requires a boolean,got %T", field, val)
	}
	return
}

// AsDocument 统一各种文档表示为有序的bson.D，map按key排序
func AsDocument(val any) (doc bson.D, ok bool) {
	switch v := val.(type) {
	case bson.D:
		return v, true
	case bson.M:
		return sortedDoc(v), true
	case map[string]any:
		return sortedDoc(v), true
	}
	return nil, false
}

func sortedDoc(m map[string]any) (doc bson.D) {
	keys := slices.Sorted(maps.Keys(m))
	doc = make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: m[k]})
	}
	return
}

func AsArray(val any) (arr bson.A, ok bool) {
	switch v := val.(type) {
	case bson.A:
		return v, true
	case []any:
		return bson.A(v), true
	}
	return nil, false
}
