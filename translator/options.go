package translator

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/tsfans/query-translator/converter"
	"gopkg.in/yaml.v3"
)

// 转换配置，可以从yaml文件加载：
//
//	accessor: db
//	identity_fields: [_id, id]
//	repair_brackets: false
//	log_level: info
type Options struct {
	// mongo语句的集合访问前缀
	Accessor string `yaml:"accessor"`
	// 只有这些字段的等值删除会输出deleteOne
	IdentityFields []string `yaml:"identity_fields"`
	// 是否补齐shell语句中未闭合的括号
	RepairBrackets bool   `yaml:"repair_brackets"`
	LogLevel       string `yaml:"log_level"`
}

func DefaultOptions() Options {
	return Options{
		IdentityFields: append([]string(nil), converter.Default_Identity_Fields...),
		LogLevel:       log.InfoLevel.String(),
	}
}

// LoadOptions 读取yaml配置，未配置的项使用默认值
func LoadOptions(path string) (opts Options, err error) {
	opts = DefaultOptions()
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("read options failed,err=[%w],path=[%v]", err, path)
		return
	}
	err = yaml.Unmarshal(data, &opts)
	if err != nil {
		err = fmt.Errorf("decode options failed,err=[%w],path=[%v]", err, path)
		return
	}
	err = opts.Validate()
	return
}

func (o Options) Validate() (err error) {
	_, err = o.Level()
	if err != nil {
		return
	}
	if o.Accessor != "" && !converter.IsCollectionAccessor(o.Accessor) {
		err = fmt.Errorf("invalid accessor [%v]", o.Accessor)
	}
	return
}

// Level 空字符串视为info
func (o Options) Level() (level log.Level, err error) {
	if o.LogLevel == "" {
		return log.InfoLevel, nil
	}
	level, err = log.ParseLevel(o.LogLevel)
	if err != nil {
		err = fmt.Errorf("invalid log level,err=[%w]", err)
	}
	return
}
