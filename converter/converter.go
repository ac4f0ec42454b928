package converter

import "github.com/tsfans/query-translator/ir"

// 渲染器，将统一查询表示转化为目标查询语句
type Renderer interface {
	// 渲染前会校验查询，不合法的查询返回ValidationError
	Render(q *ir.Query) (string, error)
}
