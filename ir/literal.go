package ir

import (
	"fmt"
	"strconv"
)

type LiteralKind int

const (
	KindNull   LiteralKind = 0
	KindBool   LiteralKind = 1
	KindInt    LiteralKind = 2
	KindFloat  LiteralKind = 3
	KindString LiteralKind = 4
)

func (k LiteralKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	}
	return fmt.Sprintf("LiteralKind(%d)", int(k))
}

// 标量字面量：null | boolean | integer | float | string
type Literal struct {
	Kind  LiteralKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

func Null() Literal {
	return Literal{Kind: KindNull}
}

func Bool(b bool) Literal {
	return Literal{Kind: KindBool, Bool: b}
}

func Int(i int64) Literal {
	return Literal{Kind: KindInt, Int: i}
}

func Float(f float64) Literal {
	return Literal{Kind: KindFloat, Float: f}
}

func String(s string) Literal {
	return Literal{Kind: KindString, Str: s}
}

func (l Literal) IsNull() bool {
	return l.Kind == KindNull
}

// Value 返回对应的go值，null返回nil
func (l Literal) Value() any {
	switch l.Kind {
	case KindBool:
		return l.Bool
	case KindInt:
		return l.Int
	case KindFloat:
		return l.Float
	case KindString:
		return l.Str
	}
	return nil
}

func (l Literal) String() string {
	switch l.Kind {
	case KindBool:
		return strconv.FormatBool(l.Bool)
	case KindInt:
		return strconv.FormatInt(l.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case KindString:
		return strconv.Quote(l.Str)
	}
	return "null"
}

// LiteralOf 将go标量转化为字面量，不支持的类型返回false
func LiteralOf(val any) (lit Literal, ok bool) {
	ok = true
	switch v := val.(type) {
	case nil:
		lit = Null()
	case bool:
		lit = Bool(v)
	case int:
		lit = Int(int64(v))
	case int32:
		lit = Int(int64(v))
	case int64:
		lit = Int(v)
	case float32:
		lit = Float(float64(v))
	case float64:
		lit = Float(v)
	case string:
		lit = String(v)
	default:
		ok = false
	}
	return
}
