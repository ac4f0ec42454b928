package parser

import (
	"fmt"

	"github.com/tsfans/query-translator/converter"
	"github.com/tsfans/query-translator/filter"
	"github.com/tsfans/query-translator/ir"
)

// 结构化查询描述解析器，输入为JSON对象，也接受与shell相同的宽松写法
type DescriptorParser struct {
	RepairBrackets bool
}

func NewDescriptorParser() *DescriptorParser {
	return &DescriptorParser{}
}

func (p *DescriptorParser) Parse(text string) (q *ir.Query, err error) {
	var val any
	val, err = parseLiteralText(text, p.RepairBrackets)
	if err != nil {
		err = fmt.Errorf("parse descriptor failed,err=[%w],descriptor=[%v]", err, text)
		return
	}
	doc, ok := filter.AsDocument(val)
	if !ok {
		err = fmt.Errorf("parse descriptor failed,err=[%w],descriptor=[%v]",
			ir.Validationf("descriptor must be an object,got %T", val), text)
		return
	}

	q, err = converter.DescriptorToQuery(doc)
	if err != nil {
		q = nil
		err = fmt.Errorf("validate descriptor failed,err=[%w],descriptor=[%v]", err, text)
	}
	return
}
