package parser

import "github.com/tsfans/query-translator/ir"

// 查询解析器，将某种查询语句解析为统一查询表示
type Parser interface {
	// 失败时返回的错误可以用errors.Is区分ir.ErrSyntax、ir.ErrValidation、ir.ErrUnsupported
	Parse(text string) (*ir.Query, error)
}
