package ir

import (
	"errors"
	"fmt"
)

var (
	// 文本不符合任何支持的语法
	ErrSyntax = errors.New("syntax error")
	// 语法正确但语义无效
	ErrValidation = errors.New("validation error")
	// 识别但不支持的结构
	ErrUnsupported = errors.New("unsupported operation")
)

func Syntaxf(format string, args ...any) error {
	return fmt.Errorf("%w: %v", ErrSyntax, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %v", ErrValidation, fmt.Sprintf(format, args...))
}

func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %v", ErrUnsupported, fmt.Sprintf(format, args...))
}

// Kind 返回错误分类名称，无法识别时返回空字符串
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrSyntax):
		return "SyntaxError"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrUnsupported):
		return "UnsupportedOperation"
	}
	return ""
}
