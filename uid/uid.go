package uid

import (
	"github.com/hatlonely/dataobj/ref"
	"github.com/hatlonely/dataobj/uid/intgen"
	"github.com/hatlonely/dataobj/uid/strgen"
	"github.com/pkg/errors"
)

func NewIntGeneratorWithOptions(options *ref.TypeOptions) (intgen.IntGenerator, error) {
	g, err := ref.NewWithOptions[intgen.IntGenerator](options)
	if err != nil {
		return nil, errors.WithMessage(err, "create int generator failed")
	}
	return g, nil
}

func NewStrGeneratorWithOptions(options *ref.TypeOptions) (strgen.StrGenerator, error) {
	g, err := ref.NewWithOptions[strgen.StrGenerator](options)
	if err != nil {
		return nil, errors.WithMessage(err, "create str generator failed")
	}
	return g, nil
}

func NewIntGenerator() intgen.IntGenerator {
	return intgen.NewSnowflakeGeneratorWithOptions(nil)
}

func NewStrGenerator() strgen.StrGenerator {
	return strgen.NewUUIDGeneratorWithOptions(nil)
}

// IntDefault 把生成器包装成字段的默认值函数
func IntDefault(g intgen.IntGenerator) func() any {
	return func() any { return g.Generate() }
}

func StrDefault(g strgen.StrGenerator) func() any {
	return func() any { return g.Generate() }
}
