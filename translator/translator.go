package translator

import (
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/converter"
	"github.com/tsfans/query-translator/ir"
	"github.com/tsfans/query-translator/parser"
)

// 转换结果
type Result struct {
	// 只用于日志关联
	ID     string  `json:"-"`
	Source Surface `json:"source"`
	Target Surface `json:"target"`
	Output string  `json:"output"`
}

// 在SQL、mongo shell、结构化查询描述之间转换，所有转换都经过统一查询表示。
// 创建后只读，可以并发使用
type Translator struct {
	opts      Options
	parsers   map[Surface]parser.Parser
	renderers map[Surface]converter.Renderer
}

func New(opts Options) (t *Translator, err error) {
	err = opts.Validate()
	if err != nil {
		return
	}
	identity := opts.IdentityFields
	if len(identity) == 0 {
		identity = converter.Default_Identity_Fields
	}
	t = &Translator{
		opts: opts,
		parsers: map[Surface]parser.Parser{
			SurfaceSQL:        parser.NewMySQLParser(),
			SurfaceMongo:      &parser.MongoParser{RepairBrackets: opts.RepairBrackets},
			SurfaceDescriptor: &parser.DescriptorParser{RepairBrackets: opts.RepairBrackets},
		},
		renderers: map[Surface]converter.Renderer{
			SurfaceSQL:        converter.NewSQLRenderer(),
			SurfaceMongo:      &converter.MongoRenderer{Accessor: opts.Accessor, IdentityFields: identity},
			SurfaceDescriptor: converter.NewDescriptorRenderer(),
		},
	}
	return
}

// ParseSurface 解析目标语法名称
func ParseSurface(name string) (surface Surface, err error) {
	for _, s := range []Surface{SurfaceSQL, SurfaceMongo, SurfaceDescriptor} {
		if s.String() == name {
			return s, nil
		}
	}
	err = ir.Validationf("unknown surface [%v],must be one of sql,mongo,descriptor", name)
	return
}

// DefaultTarget SQL默认转为mongo，其余默认转为SQL
func DefaultTarget(source Surface) Surface {
	if source == SurfaceSQL {
		return SurfaceMongo
	}
	return SurfaceSQL
}

// Parse 自动识别输入语法并解析
func (t *Translator) Parse(text string) (q *ir.Query, source Surface, err error) {
	source, err = Detect(text)
	if err != nil {
		return
	}
	q, err = t.parsers[source].Parse(text)
	return
}

func (t *Translator) Render(q *ir.Query, target Surface) (text string, err error) {
	renderer, ok := t.renderers[target]
	if !ok {
		err = fmt.Errorf("unknown target surface [%v]", target)
		return
	}
	text, err = renderer.Render(q)
	return
}

// Translate 转换到目标语法，target为SurfaceUnknown时使用DefaultTarget
func (t *Translator) Translate(text string, target Surface) (res *Result, err error) {
	res = &Result{ID: uuid.NewString(), Target: target}
	logger := log.WithFields(log.Fields{"id": res.ID})

	var q *ir.Query
	q, res.Source, err = t.Parse(text)
	if err != nil {
		logger.WithField("kind", ir.Kind(err)).Debugf("translate failed,err=[%v]", err)
		res = nil
		return
	}
	if res.Target == SurfaceUnknown {
		res.Target = DefaultTarget(res.Source)
	}
	logger = logger.WithFields(log.Fields{"source": res.Source, "target": res.Target})

	res.Output, err = t.Render(q, res.Target)
	if err != nil {
		logger.WithField("kind", ir.Kind(err)).Debugf("render failed,err=[%v]", err)
		res = nil
		return
	}
	logger.Debugf("translated [%v] to [%v]", text, res.Output)
	return
}
