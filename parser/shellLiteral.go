package parser

import (
	"strconv"
	"strings"

	"github.com/tsfans/query-translator/ir"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 可以省略$前缀的操作符和聚合阶段名
var Bare_Operator_Names = map[string]bool{
	"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"in": true, "nin": true, "regex": true, "options": true, "exists": true,
	"and": true, "or": true, "nor": true, "not": true,
	"set": true, "unset": true, "inc": true,
	"match": true, "project": true, "sort": true, "skip": true, "limit": true,
	"group": true, "lookup": true, "unwind": true, "sum": true,
}

// 数字包装函数，NumberLong(5)、NumberInt("5")
var Number_Wrappers = map[string]bool{
	"NumberInt":     true,
	"NumberLong":    true,
	"NumberDecimal": true,
}

type tokenStream struct {
	tokens []token
	pos    int
}

func (s *tokenStream) peek() token {
	if s.pos >= len(s.tokens) {
		return token{typ: tokenEOF, pos: -1}
	}
	return s.tokens[s.pos]
}

func (s *tokenStream) next() token {
	tok := s.peek()
	if s.pos < len(s.tokens) {
		s.pos++
	}
	return tok
}

func (s *tokenStream) isPunct(p string) bool {
	tok := s.peek()
	return tok.typ == tokenPunct && tok.text == p
}

func (s *tokenStream) expectPunct(p string) (err error) {
	tok := s.next()
	if tok.typ != tokenPunct || tok.text != p {
		err = unexpected(tok, p)
	}
	return
}

func (s *tokenStream) expectIdent() (name string, err error) {
	tok := s.next()
	if tok.typ != tokenIdent {
		err = unexpected(tok, "identifier")
		return
	}
	name = tok.text
	return
}

func unexpected(tok token, want string) error {
	if tok.typ == tokenEOF {
		return ir.Syntaxf("unexpected end of input,expect %v", want)
	}
	return ir.Syntaxf("unexpected %v [%v] at position %v,expect %v", tok.typ, tok.text, tok.pos, want)
}

// 解析宽松的对象字面量：键可以不加引号，操作符可以省略$，支持单引号字符串、/regex/和尾逗号
func (s *tokenStream) parseValue() (val any, err error) {
	tok := s.peek()
	switch tok.typ {
	case tokenPunct:
		switch tok.text {
		case "{":
			val, err = s.parseDocument()
		case "[":
			val, err = s.parseArray()
		default:
			err = unexpected(s.next(), "value")
		}
	case tokenString:
		s.next()
		val = tok.text
	case tokenNumber:
		s.next()
		val, err = parseNumber(tok.text)
	case tokenRegex:
		s.next()
		val = primitive.Regex{Pattern: tok.text, Options: tok.flags}
	case tokenIdent:
		val, err = s.parseKeyword()
	default:
		err = unexpected(tok, "value")
	}
	return
}

func (s *tokenStream) parseKeyword() (val any, err error) {
	tok := s.next()
	switch tok.text {
	case "true":
		val = true
		return
	case "false":
		val = false
		return
	case "null", "undefined":
		return
	}
	if !s.isPunct("(") {
		err = ir.Syntaxf("unexpected identifier [%v] at position %v", tok.text, tok.pos)
		return
	}
	if !Number_Wrappers[tok.text] {
		err = ir.Unsupportedf("%v(...) is not supported", tok.text)
		return
	}
	s.next()
	arg := s.next()
	switch arg.typ {
	case tokenNumber, tokenString:
		val, err = parseNumber(arg.text)
	default:
		err = unexpected(arg, "number")
	}
	if err != nil {
		return
	}
	err = s.expectPunct(")")
	return
}

func (s *tokenStream) parseDocument() (doc bson.D, err error) {
	err = s.expectPunct("{")
	if err != nil {
		return
	}
	doc = bson.D{}
	for !s.isPunct("}") {
		var key string
		key, err = s.parseKey()
		if err != nil {
			return
		}
		err = s.expectPunct(":")
		if err != nil {
			return
		}
		var val any
		val, err = s.parseValue()
		if err != nil {
			return
		}
		doc = append(doc, bson.E{Key: key, Value: val})
		if !s.isPunct(",") {
			break
		}
		s.next()
	}
	err = s.expectPunct("}")
	return
}

// 不加引号的键可以是a.b.c形式的路径
func (s *tokenStream) parseKey() (key string, err error) {
	tok := s.next()
	switch tok.typ {
	case tokenString:
		key = tok.text
	case tokenNumber:
		key = tok.text
	case tokenIdent:
		parts := []string{tok.text}
		for s.isPunct(".") {
			s.next()
			var part string
			part, err = s.expectIdent()
			if err != nil {
				return
			}
			parts = append(parts, part)
		}
		key = strings.Join(parts, ".")
		if len(parts) == 1 && Bare_Operator_Names[key] {
			key = "$" + key
		}
	default:
		err = unexpected(tok, "key")
	}
	return
}

func (s *tokenStream) parseArray() (arr bson.A, err error) {
	err = s.expectPunct("[")
	if err != nil {
		return
	}
	arr = bson.A{}
	for !s.isPunct("]") {
		var val any
		val, err = s.parseValue()
		if err != nil {
			return
		}
		arr = append(arr, val)
		if !s.isPunct(",") {
			break
		}
		s.next()
	}
	err = s.expectPunct("]")
	return
}

// 整数解析为int64，超出范围或带小数点、指数的解析为float64
func parseNumber(text string) (val any, err error) {
	if !strings.ContainsAny(text, ".eE") {
		var i int64
		i, err = strconv.ParseInt(text, 10, 64)
		if err == nil {
			val = i
			return
		}
	}
	var f float64
	f, err = strconv.ParseFloat(text, 64)
	if err != nil {
		err = ir.Syntaxf("invalid number [%v]", text)
		return
	}
	val = f
	return
}

// 解析单个字面量文本，用于结构化查询描述
func parseLiteralText(text string, repair bool) (val any, err error) {
	var tokens []token
	tokens, err = tokenize(text)
	if err != nil {
		return
	}
	tokens, err = balanceBrackets(tokens, repair)
	if err != nil {
		return
	}
	s := &tokenStream{tokens: tokens}
	val, err = s.parseValue()
	if err != nil {
		return
	}
	if tok := s.peek(); tok.typ != tokenEOF {
		err = unexpected(tok, "end of input")
	}
	return
}
