package validator

import (
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

type NotNullValidator struct {
	options
}

func NewNotNullValidator(opts ...Option) *NotNullValidator {
	return &NotNullValidator{options: newOptions(opts)}
}

// Validate 空字符串、空列表不是 null
func (v *NotNullValidator) Validate(param string, value any) (any, error) {
	if value != nil {
		return value, nil
	}
	return v.fail(ErrNotNull, param, value, "")
}

// LengthValidator 长度在 [min, max] 之间，max < 0 表示不限
type LengthValidator struct {
	options
	min int
	max int
}

func NewLengthValidator(min, max int, opts ...Option) *LengthValidator {
	return &LengthValidator{options: newOptions(opts), min: min, max: max}
}

func (v *LengthValidator) Validate(param string, value any) (any, error) {
	if value == nil {
		return value, nil
	}
	n, ok := Len(value)
	if !ok {
		return v.fail(ErrNoLength, param, value, "value of type %T has no length", value)
	}
	if n >= v.min && (v.max < 0 || n <= v.max) {
		return value, nil
	}
	if v.max < 0 {
		return v.fail(ErrLength, param, value, "length %d, expected [%d, inf)", n, v.min)
	}
	return v.fail(ErrLength, param, value, "length %d, expected [%d, %d]", n, v.min, v.max)
}

// Len 字符串按字符计数
func Len(value any) (int, bool) {
	switch x := value.(type) {
	case string:
		return utf8.RuneCountInString(x), true
	case []byte:
		return len(x), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		return rv.Len(), true
	}
	return 0, false
}

type ChoiceValidator struct {
	options
	choices []any
}

func NewChoiceValidator(choices []any, opts ...Option) *ChoiceValidator {
	return &ChoiceValidator{options: newOptions(opts), choices: choices}
}

func (v *ChoiceValidator) Validate(param string, value any) (any, error) {
	if value == nil {
		return value, nil
	}
	for _, c := range v.choices {
		if Equal(c, value) {
			return value, nil
		}
	}
	return v.fail(ErrChoice, param, value, "available choices are %v", v.choices)
}

// Equal 数值按大小比较，其余按 reflect.DeepEqual
func Equal(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, okA := toNumber(a)
	fb, okB := toNumber(b)
	return okA && okB && fa == fb
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return cast.ToFloat64(x), true
	case decimal.Decimal:
		return x.InexactFloat64(), true
	}
	return 0, false
}

// ValueRangeValidator 数值在 [min, max] 之间
type ValueRangeValidator struct {
	options
	min float64
	max float64
}

func NewValueRangeValidator(min, max float64, opts ...Option) *ValueRangeValidator {
	return &ValueRangeValidator{options: newOptions(opts), min: min, max: max}
}

// NewMinValidator 只限制下限
func NewMinValidator(min float64, opts ...Option) *ValueRangeValidator {
	return NewValueRangeValidator(min, math.Inf(1), opts...)
}

func NewMaxValidator(max float64, opts ...Option) *ValueRangeValidator {
	return NewValueRangeValidator(math.Inf(-1), max, opts...)
}

func (v *ValueRangeValidator) Validate(param string, value any) (any, error) {
	if value == nil {
		return value, nil
	}
	f, ok := toNumber(value)
	if !ok {
		var err error
		if f, err = cast.ToFloat64E(value); err != nil {
			return v.fail(ErrRange, param, value, "not a number")
		}
	}
	if f >= v.min && f <= v.max {
		return value, nil
	}
	return v.fail(ErrRange, param, value, "expected [%v, %v]", v.min, v.max)
}
