package model

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/go-viper/mapstructure/v2"
	"github.com/hatlonely/dataobj/field"
	"github.com/hatlonely/dataobj/validator"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const tagName = "dataobj"

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	bytesType    = reflect.TypeOf([]byte(nil))
)

// RegisterStruct 从结构体的 tag 注册模型，模型名为结构体名
//
// 支持的 tag 格式：
//   - `dataobj:"name,column=col,kind=string,size=255,min=1,required,primary,autoincrement=false,default=x"`
//   - `dataobj:"-"` 忽略该字段
//
// 属性名默认为字段名的下划线形式，kind 默认由字段类型推断
func RegisterStruct[T any](meta Meta) (*Schema, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %v", rt)
	}

	var attrs []Attribute
	for _, sf := range structFields(rt) {
		f, err := parseFieldTag(sf.field, sf.tag)
		if err != nil {
			return nil, errors.WithMessagef(err, "parse field %s.%s failed", rt.Name(), sf.field.Name)
		}
		attrs = append(attrs, Attr(sf.name, f))
	}
	return Register(rt.Name(), meta, attrs...)
}

func MustRegisterStruct[T any](meta Meta) *Schema {
	s, err := RegisterStruct[T](meta)
	if err != nil {
		panic(err)
	}
	return s
}

type structField struct {
	name  string
	tag   string
	index int
	field reflect.StructField
}

func structFields(rt reflect.Type) []structField {
	var result []structField
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get(tagName)
		if tag == "-" {
			continue
		}
		name := strings.TrimSpace(strings.Split(tag, ",")[0])
		if name == "" || strings.Contains(name, "=") {
			name = inflect.Underscore(sf.Name)
		}
		result = append(result, structField{name: name, tag: tag, index: i, field: sf})
	}
	return result
}

func parseFieldTag(sf reflect.StructField, tag string) (*field.Field, error) {
	kind := inferKind(sf.Type)
	var opts []field.Option

	parts := strings.Split(tag, ",")
	if len(parts) > 0 && !strings.Contains(parts[0], "=") {
		parts = parts[1:]
	}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		if !ok {
			switch part {
			case "required", "not_null", "notnull":
				opts = append(opts, field.NotNull())
			case "primary", "pk":
				opts = append(opts, field.PrimaryKey())
			default:
				return nil, errors.Errorf("unknown tag option %q", part)
			}
			continue
		}

		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "kind", "type":
			kind = validator.Kind(value)
		case "column":
			opts = append(opts, field.Column(value))
		case "size", "max":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s %q", key, value)
			}
			opts = append(opts, field.MaxLength(n))
		case "min":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid min %q", value)
			}
			opts = append(opts, field.MinLength(n))
		case "autoincrement":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid autoincrement %q", value)
			}
			opts = append(opts, field.AutoIncrement(b))
		case "default":
			// 由字段的类型校验转换成对应的类型
			opts = append(opts, field.Default(strings.Trim(value, `'"`)))
		default:
			return nil, errors.Errorf("unknown tag option %q", key)
		}
	}

	if kind == validator.KindBool {
		opts = append([]field.Option{field.WithTypeErrorHandler(validator.Truthy)}, opts...)
	}
	return field.New(kind, opts...)
}

func inferKind(t reflect.Type) validator.Kind {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t {
	case timeType:
		return validator.KindDatetime
	case durationType:
		return validator.KindTime
	case decimalType:
		return validator.KindDecimal
	case bytesType:
		return validator.KindBytes
	}

	switch t.Kind() {
	case reflect.String:
		return validator.KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return validator.KindInt
	case reflect.Float32, reflect.Float64:
		return validator.KindFloat
	case reflect.Bool:
		return validator.KindBool
	case reflect.Slice, reflect.Array:
		return validator.KindList
	case reflect.Map:
		return validator.KindDict
	}
	return validator.KindObject
}

// FromStruct 按 tag 把结构体字段转换成实例，结构体中没有的属性以及有默认值的零值字段使用默认值
func (s *Schema) FromStruct(v any) (*Instance, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errors.New("struct is nil")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %T", v)
	}

	values := map[string]any{}
	for _, sf := range structFields(rv.Type()) {
		f, ok := s.Field(sf.name)
		if !ok {
			continue
		}
		fv := rv.Field(sf.index)
		if fv.IsZero() && f.HasDefault() {
			continue
		}
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		values[sf.name] = fv.Interface()
	}
	return s.New(values)
}

// Scan 把实例的值写入结构体指针，类型不一致时先尝试直接转换再使用 mapstructure
func (i *Instance) Scan(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.New("dest must be a pointer to struct")
	}
	rv = rv.Elem()

	for _, sf := range structFields(rv.Type()) {
		if !i.Has(sf.name) {
			continue
		}
		value, err := i.Get(sf.name)
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}
		if err := setFieldValue(rv.Field(sf.index), value); err != nil {
			return errors.WithMessagef(err, "set field %s failed", sf.field.Name)
		}
	}
	return nil
}

func setFieldValue(fv reflect.Value, value any) error {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}

	vv := reflect.ValueOf(value)
	if vv.Type().AssignableTo(fv.Type()) {
		fv.Set(vv)
		return nil
	}
	// 数字转字符串会得到 rune，交给 mapstructure 处理
	if vv.Type().ConvertibleTo(fv.Type()) && (vv.Kind() == reflect.String) == (fv.Kind() == reflect.String) {
		fv.Set(vv.Convert(fv.Type()))
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           fv.Addr().Interface(),
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return errors.Wrap(err, "mapstructure.NewDecoder failed")
	}
	if err := decoder.Decode(value); err != nil {
		return errors.Wrapf(err, "cannot convert %T to %v", value, fv.Type())
	}
	return nil
}
