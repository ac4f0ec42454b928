package filter

import (
	"strings"
	"unicode"

	"github.com/tsfans/query-translator/ir"
)

const regexMeta = `\.+*?()|[]{}^$`

// LikeToRegex 将LIKE模式转为正则：abc% -> ^abc，%abc -> abc$，%abc% -> abc，abc -> ^abc$
func LikeToRegex(pattern string) string {
	body := []rune(pattern)
	anchorStart := len(body) == 0 || body[0] != '%'
	anchorEnd := len(body) == 0 || (body[len(body)-1] != '%' || escapedAt(body, len(body)-1))

	var b strings.Builder
	if anchorStart {
		b.WriteString("^")
	}
	start := 0
	for start < len(body) && body[start] == '%' {
		start++
	}
	end := len(body)
	if !anchorEnd {
		for end > start && body[end-1] == '%' && !escapedAt(body, end-1) {
			end--
		}
	}
	for i := start; i < end; i++ {
		r := body[i]
		switch {
		case r == '\\' && i+1 < end:
			i++
			writeRegexLiteral(&b, body[i])
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			writeRegexLiteral(&b, r)
		}
	}
	if anchorEnd {
		b.WriteString("$")
	}
	return b.String()
}

func writeRegexLiteral(b *strings.Builder, r rune) {
	if strings.ContainsRune(regexMeta, r) {
		b.WriteByte('\\')
	}
	b.WriteRune(r)
}

// escapedAt 判断idx位置的字符前是否有奇数个反斜杠
func escapedAt(runes []rune, idx int) bool {
	n := 0
	for i := idx - 1; i >= 0 && runes[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// RegexToLike 将只包含锚点、.*、.和转义字面量的正则转为LIKE模式，其余正则语法不支持
func RegexToLike(regex string) (pattern string, err error) {
	runes := []rune(regex)
	anchorStart := len(runes) > 0 && runes[0] == '^'
	if anchorStart {
		runes = runes[1:]
	}
	anchorEnd := len(runes) > 0 && runes[len(runes)-1] == '$' && !escapedAt(runes, len(runes)-1)
	if anchorEnd {
		runes = runes[:len(runes)-1]
	}

	var b strings.Builder
	lastWildcard := false
	writeWildcard := func() {
		if !lastWildcard {
			b.WriteByte('%')
		}
		lastWildcard = true
	}
	if !anchorStart {
		writeWildcard()
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			if i+1 >= len(runes) {
				err = ir.Unsupportedf("regex [%v] ends with a dangling escape", regex)
				return
			}
			i++
			next := runes[i]
			if unicode.IsLetter(next) || unicode.IsDigit(next) {
				err = ir.Unsupportedf("regex class [\\%c] in [%v] has no LIKE equivalent", next, regex)
				return
			}
			writeLikeLiteral(&b, next)
			lastWildcard = false
		case r == '.':
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
				writeWildcard()
				continue
			}
			b.WriteByte('_')
			lastWildcard = false
		case strings.ContainsRune(regexMeta, r):
			err = ir.Unsupportedf("regex [%v] uses [%c],only ^ $ . .* anchors are supported", regex, r)
			return
		default:
			writeLikeLiteral(&b, r)
			lastWildcard = false
		}
	}
	if !anchorEnd {
		writeWildcard()
	}
	pattern = b.String()
	return
}

func writeLikeLiteral(b *strings.Builder, r rune) {
	if r == '%' || r == '_' || r == '\\' {
		b.WriteByte('\\')
	}
	b.WriteRune(r)
}
