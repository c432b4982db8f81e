// Package field 描述模型属性和数据库列之间的映射，以及写入和读取时的校验转换
package field

import (
	"fmt"
	"time"

	"github.com/hatlonely/dataobj/serializer"
	"github.com/hatlonely/dataobj/validator"
	"github.com/pkg/errors"
)

var (
	ErrUnboundField = errors.New("field is not bound to a name")
	ErrAlreadyBound = errors.New("field is already bound")
)

// Options 可以从配置文件或者结构体 tag 中加载
type Options struct {
	Kind          validator.Kind `cfg:"kind" def:"string" validate:"required"`
	Column        string         `cfg:"column"`
	PrimaryKey    bool           `cfg:"primaryKey"`
	AutoIncrement *bool          `cfg:"autoIncrement"`
	NotNull       bool           `cfg:"notNull"`
	MinLength     *int           `cfg:"minLength"`
	MaxLength     *int           `cfg:"maxLength"`
	Choices       []any          `cfg:"choices"`
	Default       any            `cfg:"default"`
}

type Option func(*Field)

func Column(column string) Option {
	return func(f *Field) { f.column = column }
}

func PrimaryKey() Option {
	return func(f *Field) { f.primaryKey = true }
}

// AutoIncrement 只对主键有意义，默认为 true
func AutoIncrement(autoIncrement bool) Option {
	return func(f *Field) { f.autoIncrement = autoIncrement }
}

func NotNull() Option {
	return func(f *Field) { f.notNull = true }
}

func MinLength(n int) Option {
	return func(f *Field) { f.minLength = &n }
}

func MaxLength(n int) Option {
	return func(f *Field) { f.maxLength = &n }
}

func Choices(choices ...any) Option {
	return func(f *Field) { f.choices = choices }
}

// Default 字面量，或者 func() any 生成器，每次取默认值都会调用一次
func Default(value any) Option {
	return func(f *Field) { f.def = value }
}

// Validators 追加在内置校验器之后
func Validators(validators ...validator.Validator) Option {
	return func(f *Field) { f.extra = append(f.extra, validators...) }
}

// WithSerializer 覆盖字段类型默认的序列化方式，nil 表示不序列化
func WithSerializer(s serializer.Serializer[any, string]) Option {
	return func(f *Field) {
		f.serializer = s
		f.customSerializer = true
	}
}

// WithTypeErrorHandler 类型转换失败时用 handler 的结果代替
func WithTypeErrorHandler(handler validator.ErrorHandler) Option {
	return func(f *Field) { f.typeOptions = append(f.typeOptions, validator.WithTypeErrorHandler(handler)) }
}

// WithErrorHandler 作用于非空、长度、枚举校验器
func WithErrorHandler(handler validator.ErrorHandler) Option {
	return func(f *Field) { f.handler = handler }
}

func WithForceConverter(fn validator.Converter) Option {
	return func(f *Field) { f.typeOptions = append(f.typeOptions, validator.WithForceConverter(fn)) }
}

type Field struct {
	name          string
	column        string
	kind          validator.Kind
	primaryKey    bool
	autoIncrement bool
	notNull       bool
	minLength     *int
	maxLength     *int
	choices       []any
	def           any

	extra            []validator.Validator
	handler          validator.ErrorHandler
	typeOptions      []validator.TypeOption
	serializer       serializer.Serializer[any, string]
	customSerializer bool
	validators       []validator.Validator
}

func New(kind validator.Kind, opts ...Option) (*Field, error) {
	f := &Field{kind: kind, autoIncrement: true}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.init(); err != nil {
		return nil, err
	}
	return f, nil
}

func MustNew(kind validator.Kind, opts ...Option) *Field {
	f, err := New(kind, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// NewWithOptions opts 在 options 之后生效
func NewWithOptions(options *Options, opts ...Option) (*Field, error) {
	var base []Option
	if options.Column != "" {
		base = append(base, Column(options.Column))
	}
	if options.PrimaryKey {
		base = append(base, PrimaryKey())
	}
	if options.AutoIncrement != nil {
		base = append(base, AutoIncrement(*options.AutoIncrement))
	}
	if options.NotNull {
		base = append(base, NotNull())
	}
	if options.MinLength != nil {
		base = append(base, MinLength(*options.MinLength))
	}
	if options.MaxLength != nil {
		base = append(base, MaxLength(*options.MaxLength))
	}
	if len(options.Choices) != 0 {
		base = append(base, Choices(options.Choices...))
	}
	if options.Default != nil {
		base = append(base, Default(options.Default))
	}
	return New(options.Kind, append(base, opts...)...)
}

func (f *Field) init() error {
	tv, err := validator.NewTypeValidator(f.kind, f.typeOptions...)
	if err != nil {
		return errors.WithMessage(err, "validator.NewTypeValidator failed")
	}

	var opts []validator.Option
	if f.handler != nil {
		opts = append(opts, validator.WithErrorHandler(f.handler))
	}

	f.validators = []validator.Validator{tv}
	if (!f.primaryKey && f.notNull) || (f.primaryKey && !f.autoIncrement) {
		f.validators = append(f.validators, validator.NewNotNullValidator(opts...))
	}
	if f.minLength != nil || f.maxLength != nil {
		lo, hi := 0, -1
		if f.minLength != nil {
			lo = *f.minLength
		}
		if f.maxLength != nil {
			hi = *f.maxLength
		}
		f.validators = append(f.validators, validator.NewLengthValidator(lo, hi, opts...))
	}
	if len(f.choices) != 0 {
		f.validators = append(f.validators, validator.NewChoiceValidator(f.choices, opts...))
	}
	f.validators = append(f.validators, f.extra...)

	if !f.customSerializer {
		switch f.kind {
		case validator.KindList, validator.KindDict:
			f.serializer = serializer.StructuredText()
		case validator.KindObject:
			f.serializer = serializer.Opaque()
		}
	}
	return nil
}

// Bind 注册模型时绑定属性名，只能绑定一次
func (f *Field) Bind(name string) error {
	if name == "" {
		return errors.New("field name is empty")
	}
	if f.name != "" && f.name != name {
		return errors.Wrapf(ErrAlreadyBound, "field %q cannot be bound as %q", f.name, name)
	}
	f.name = name
	return nil
}

func (f *Field) Bound() bool {
	return f.name != ""
}

func (f *Field) Name() string {
	return f.name
}

// Column 未指定时与属性名相同
func (f *Field) Column() string {
	if f.column != "" {
		return f.column
	}
	return f.name
}

func (f *Field) Kind() validator.Kind {
	return f.kind
}

func (f *Field) PrimaryKey() bool {
	return f.primaryKey
}

func (f *Field) AutoIncrement() bool {
	return f.primaryKey && f.autoIncrement
}

func (f *Field) NotNull() bool {
	return f.notNull
}

func (f *Field) Validators() []validator.Validator {
	return f.validators
}

func (f *Field) Serializer() serializer.Serializer[any, string] {
	return f.serializer
}

func (f *Field) Default() any {
	if fn, ok := f.def.(func() any); ok {
		return fn()
	}
	return f.def
}

func (f *Field) HasDefault() bool {
	return f.def != nil
}

func (f *Field) String() string {
	return fmt.Sprintf("<%s name=%s, column=%s>", f.kind, f.name, f.Column())
}

// ValidateInput 执行校验链并转换成存储形式，写入实例和发送给数据库前调用
func (f *Field) ValidateInput(value any) (any, error) {
	if !f.Bound() {
		return nil, errors.Wrapf(ErrUnboundField, "column %q", f.column)
	}

	value, err := validator.Chain(f.name, value, f.validators...)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	switch f.kind {
	case validator.KindBool:
		// 数据库中用 1/0 存储，nil 保持为 NULL
		if b, _ := value.(bool); b {
			return int64(1), nil
		}
		return int64(0), nil
	case validator.KindTime:
		if d, ok := value.(time.Duration); ok {
			return validator.FormatClock(d), nil
		}
	}

	if f.serializer == nil {
		return value, nil
	}
	s, err := f.serializer.Serialize(value)
	if err != nil {
		return nil, errors.Wrapf(err, "serialize field %q failed", f.name)
	}
	return s, nil
}

// ValidateOutput 反序列化存储形式后执行同样的校验链，读取实例和数据库结果时调用
func (f *Field) ValidateOutput(value any) (any, error) {
	if !f.Bound() {
		return nil, errors.Wrapf(ErrUnboundField, "column %q", f.column)
	}

	if f.serializer != nil {
		var text string
		var ok bool
		switch x := value.(type) {
		case string:
			text, ok = x, true
		case []byte:
			text, ok = string(x), true
		}
		if ok {
			v, err := f.serializer.Deserialize(text)
			if err != nil {
				return nil, errors.Wrapf(err, "deserialize field %q failed", f.name)
			}
			value = v
		}
	}

	return validator.Chain(f.name, value, f.validators...)
}
