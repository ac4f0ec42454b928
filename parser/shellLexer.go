package parser

import (
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/ir"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenRegex
	tokenPunct
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of input"
	case tokenIdent:
		return "identifier"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	case tokenRegex:
		return "regex"
	}
	return "punctuation"
}

type token struct {
	typ  tokenType
	text string
	// 正则的选项
	flags string
	pos   int
}

var closingBracket = map[string]string{
	"{": "}",
	"[": "]",
	"(": ")",
}

// mongo shell语句的词法分析器
type shellLexer struct {
	input []rune
	pos   int
	ch    rune
}

func newShellLexer(input string) *shellLexer {
	l := &shellLexer{input: []rune(input), pos: -1}
	l.advance()
	return l
}

func (l *shellLexer) advance() {
	l.pos++
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}
	l.ch = l.input[l.pos]
}

func (l *shellLexer) peek() rune {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *shellLexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *shellLexer) skipWhitespace() {
	for !l.eof() && unicode.IsSpace(l.ch) {
		l.advance()
	}
}

func (l *shellLexer) next() (tok token, err error) {
	l.skipWhitespace()
	tok.pos = l.pos
	if l.eof() {
		tok.typ = tokenEOF
		return
	}

	switch {
	case l.ch == '"' || l.ch == '\'':
		tok.typ = tokenString
		tok.text, err = l.readString()
	case l.ch == '/':
		tok.typ = tokenRegex
		tok.text, tok.flags, err = l.readRegex()
	case unicode.IsDigit(l.ch) || (l.ch == '-' && (unicode.IsDigit(l.peek()) || l.peek() == '.')):
		tok.typ = tokenNumber
		tok.text = l.readNumber()
	case isIdentStart(l.ch):
		tok.typ = tokenIdent
		tok.text = l.readIdent()
	case strings.ContainsRune("{}[](),:.;", l.ch):
		tok.typ = tokenPunct
		tok.text = string(l.ch)
		l.advance()
	default:
		err = ir.Syntaxf("unexpected character %q at position %v", l.ch, l.pos)
	}
	return
}

func (l *shellLexer) readString() (s string, err error) {
	quote := l.ch
	start := l.pos
	l.advance()

	var b strings.Builder
	for !l.eof() && l.ch != quote {
		if l.ch != '\\' {
			b.WriteRune(l.ch)
			l.advance()
			continue
		}
		l.advance()
		if l.eof() {
			break
		}
		switch l.ch {
		case 'n':
			b.WriteRune('\n')
		case 't':
			b.WriteRune('\t')
		case 'r':
			b.WriteRune('\r')
		case 'b':
			b.WriteRune('\b')
		case 'f':
			b.WriteRune('\f')
		case 'u':
			var r rune
			r, err = l.readUnicode()
			if err != nil {
				return
			}
			b.WriteRune(r)
			continue
		default:
			// \\ \" \' \/ 和其它字符原样保留
			b.WriteRune(l.ch)
		}
		l.advance()
	}

	if l.eof() {
		err = ir.Syntaxf("unterminated string starting at position %v", start)
		return
	}
	l.advance()
	s = b.String()
	return
}

// \uXXXX，调用时当前字符为u
func (l *shellLexer) readUnicode() (r rune, err error) {
	for i := 0; i < 4; i++ {
		l.advance()
		var digit rune
		switch {
		case l.ch >= '0' && l.ch <= '9':
			digit = l.ch - '0'
		case l.ch >= 'a' && l.ch <= 'f':
			digit = l.ch - 'a' + 10
		case l.ch >= 'A' && l.ch <= 'F':
			digit = l.ch - 'A' + 10
		default:
			err = ir.Syntaxf("invalid unicode escape at position %v", l.pos)
			return
		}
		r = r<<4 | digit
	}
	l.advance()
	return
}

// /pattern/flags，方括号内的/不结束正则
func (l *shellLexer) readRegex() (pattern, flags string, err error) {
	start := l.pos
	l.advance()

	var b strings.Builder
	inClass := false
	for !l.eof() {
		if l.ch == '/' && !inClass {
			break
		}
		switch l.ch {
		case '\\':
			b.WriteRune(l.ch)
			l.advance()
			if l.eof() {
				continue
			}
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			err = ir.Syntaxf("unterminated regex starting at position %v", start)
			return
		}
		b.WriteRune(l.ch)
		l.advance()
	}
	if l.eof() {
		err = ir.Syntaxf("unterminated regex starting at position %v", start)
		return
	}
	l.advance()
	pattern = b.String()

	var f strings.Builder
	for unicode.IsLetter(l.ch) {
		f.WriteRune(l.ch)
		l.advance()
	}
	flags = f.String()
	return
}

func (l *shellLexer) readNumber() string {
	var b strings.Builder
	if l.ch == '-' {
		b.WriteRune(l.ch)
		l.advance()
	}
	for unicode.IsDigit(l.ch) {
		b.WriteRune(l.ch)
		l.advance()
	}
	// 小数点后必须是数字，否则是方法调用的点
	if l.ch == '.' && unicode.IsDigit(l.peek()) {
		b.WriteRune(l.ch)
		l.advance()
		for unicode.IsDigit(l.ch) {
			b.WriteRune(l.ch)
			l.advance()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		b.WriteRune(l.ch)
		l.advance()
		if l.ch == '+' || l.ch == '-' {
			b.WriteRune(l.ch)
			l.advance()
		}
		for unicode.IsDigit(l.ch) {
			b.WriteRune(l.ch)
			l.advance()
		}
	}
	return b.String()
}

func (l *shellLexer) readIdent() string {
	var b strings.Builder
	for isIdentPart(l.ch) {
		b.WriteRune(l.ch)
		l.advance()
	}
	return b.String()
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// 词法分析整个输入，结果不包含EOF
func tokenize(input string) (tokens []token, err error) {
	l := newShellLexer(input)
	for {
		var tok token
		tok, err = l.next()
		if err != nil {
			return
		}
		if tok.typ == tokenEOF {
			return
		}
		tokens = append(tokens, tok)
	}
}

// 检查括号配对，repair为true时在末尾（分号之前）补齐未闭合的括号。
// 不匹配的右括号不做修复，一律返回SyntaxError
func balanceBrackets(tokens []token, repair bool) (balanced []token, err error) {
	var open []token
	for _, tok := range tokens {
		if tok.typ != tokenPunct {
			continue
		}
		if _, ok := closingBracket[tok.text]; ok {
			open = append(open, tok)
			continue
		}
		if tok.text != "}" && tok.text != "]" && tok.text != ")" {
			continue
		}
		if len(open) == 0 || closingBracket[open[len(open)-1].text] != tok.text {
			err = ir.Syntaxf("unexpected %v at position %v", tok.text, tok.pos)
			return
		}
		open = open[:len(open)-1]
	}
	if len(open) == 0 {
		balanced = tokens
		return
	}

	last := open[len(open)-1]
	if !repair {
		err = ir.Syntaxf("unclosed %v at position %v", last.text, last.pos)
		return
	}

	balanced = make([]token, 0, len(tokens)+len(open))
	tail := tokens
	var semicolon []token
	if n := len(tokens); n > 0 && tokens[n-1].typ == tokenPunct && tokens[n-1].text == ";" {
		tail, semicolon = tokens[:n-1], tokens[n-1:]
	}
	balanced = append(balanced, tail...)
	var added strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		closer := closingBracket[open[i].text]
		added.WriteString(closer)
		balanced = append(balanced, token{typ: tokenPunct, text: closer, pos: -1})
	}
	balanced = append(balanced, semicolon...)
	log.Debugf("repaired brackets,appended [%v]", added.String())
	return
}
