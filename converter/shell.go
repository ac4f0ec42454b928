package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tsfans/query-translator/filter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mongo shell中可以不加引号的key
var shellKey = regexp.MustCompile(`^[$_a-zA-Z][$_a-zA-Z0-9]*$`)

// FormatShell 将bson值格式化为mongo shell字面量，例如 { age: { $gt: 30 } }
func FormatShell(val any) string {
	var b strings.Builder
	writeShell(&b, val)
	return b.String()
}

func writeShell(b *strings.Builder, val any) {
	switch v := val.(type) {
	case nil:
		b.WriteString("null")
	case bson.D:
		if len(v) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{ ")
		for idx, elem := range v {
			if idx > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatShellKey(elem.Key))
			b.WriteString(": ")
			writeShell(b, elem.Value)
		}
		b.WriteString(" }")
	case bson.A:
		b.WriteString("[")
		for idx, item := range v {
			if idx > 0 {
				b.WriteString(", ")
			}
			writeShell(b, item)
		}
		b.WriteString("]")
	case string:
		b.WriteString(quoteShellString(v))
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case int:
		b.WriteString(strconv.Itoa(v))
	case int32:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		b.WriteString(s)
	case primitive.Regex:
		b.WriteString("/" + v.Pattern + "/" + v.Options)
	default:
		if doc, ok := filter.AsDocument(v); ok {
			writeShell(b, doc)
			return
		}
		if arr, ok := filter.AsArray(v); ok {
			writeShell(b, arr)
			return
		}
		b.WriteString(quoteShellString(fmt.Sprint(v)))
	}
}

func formatShellKey(key string) string {
	if shellKey.MatchString(key) {
		return key
	}
	return quoteShellString(key)
}

func quoteShellString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
