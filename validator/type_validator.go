package validator

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Kind 字段的值类型
type Kind string

const (
	KindInt       Kind = "int"       // int64
	KindFloat     Kind = "float"     // float64
	KindDecimal   Kind = "decimal"   // decimal.Decimal
	KindString    Kind = "string"    // string
	KindBytes     Kind = "bytes"     // []byte
	KindDate      Kind = "date"      // time.Time，时分秒为 0
	KindDatetime  Kind = "datetime"  // time.Time
	KindTime      Kind = "time"      // time.Duration，距离 0 点的时长
	KindTimestamp Kind = "timestamp" // time.Time
	KindBool      Kind = "bool"      // bool
	KindList      Kind = "list"      // []any
	KindDict      Kind = "dict"      // map[string]any
	KindObject    Kind = "object"    // any
)

// Converter 把任意值转换成目标类型
type Converter func(value any) (any, error)

type kindInfo struct {
	is      func(any) bool
	convert Converter
	// 为 true 时总是执行转换，例如 datetime 转 date 需要截断
	force bool
}

var kinds = map[Kind]kindInfo{
	KindInt:       {is: isType[int64], convert: ToInt},
	KindFloat:     {is: isType[float64], convert: ToFloat},
	KindDecimal:   {is: isType[decimal.Decimal], convert: ToDecimal},
	KindString:    {is: isType[string], convert: ToString},
	KindBytes:     {is: isType[[]byte], convert: ToBytes},
	KindDate:      {convert: ToDate, force: true},
	KindDatetime:  {convert: ToDatetime, force: true},
	KindTime:      {convert: ToClock, force: true},
	KindTimestamp: {is: isType[time.Time], convert: ToDatetime},
	KindBool:      {is: isType[bool], convert: ToBool},
	KindList:      {is: isType[[]any], convert: ToList},
	KindDict:      {is: isType[map[string]any], convert: ToDict},
	KindObject:    {is: func(any) bool { return true }},
}

func isType[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

// TypeValidator 把值转换成 kind 对应的 Go 类型
type TypeValidator struct {
	options
	kind  Kind
	info  kindInfo
	force Converter
}

type TypeOption func(*TypeValidator)

// WithForceConverter 总是使用 fn 转换，不再检查类型
func WithForceConverter(fn Converter) TypeOption {
	return func(v *TypeValidator) {
		v.force = fn
	}
}

// WithTypeErrorHandler 转换失败时的回调
func WithTypeErrorHandler(handler ErrorHandler) TypeOption {
	return func(v *TypeValidator) {
		v.handler = handler
	}
}

func NewTypeValidator(kind Kind, opts ...TypeOption) (*TypeValidator, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, errors.Errorf("unsupported kind %q", kind)
	}
	v := &TypeValidator{kind: kind, info: info}
	for _, opt := range opts {
		opt(v)
	}
	if info.force && v.force == nil {
		v.force = info.convert
	}
	return v, nil
}

func MustNewTypeValidator(kind Kind, opts ...TypeOption) *TypeValidator {
	v, err := NewTypeValidator(kind, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *TypeValidator) Kind() Kind {
	return v.kind
}

func (v *TypeValidator) Validate(param string, value any) (any, error) {
	if value == nil {
		return value, nil
	}

	var result any
	var err error
	switch {
	case v.force != nil:
		result, err = v.force(value)
	case v.info.is(value):
		return value, nil
	default:
		result, err = v.info.convert(value)
	}
	if err == nil {
		return result, nil
	}
	return v.fail(ErrType, param, value, "expected type `%s`, got type `%T`", v.kind, value)
}

// Truthy 非零值为 true
func Truthy(value any) (any, error) {
	if value == nil {
		return false, nil
	}
	if b, err := cast.ToBoolE(value); err == nil {
		return b, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() > 0, nil
	}
	return !rv.IsZero(), nil
}

func text(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

// ToInt 字符串按十进制解析，"010" 为 10，"0x10" 不合法
func ToInt(value any) (any, error) {
	s, ok := text(value).(string)
	if !ok {
		return cast.ToInt64E(value)
	}
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	// 小数部分为 0 的数字，例如 "1.0"
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return nil, errors.Errorf("unable to cast %q to int64", s)
	}
	return int64(f), nil
}

func ToFloat(value any) (any, error) {
	return cast.ToFloat64E(text(value))
}

func ToDecimal(value any) (any, error) {
	switch x := text(value).(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	}
	i, err := cast.ToInt64E(value)
	if err != nil {
		return nil, err
	}
	return decimal.NewFromInt(i), nil
}

func ToString(value any) (any, error) {
	return cast.ToStringE(value)
}

func ToBytes(value any) (any, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, errors.Errorf("unable to cast %#v of type %T to []byte", value, value)
}

func ToDatetime(value any) (any, error) {
	switch x := text(value).(type) {
	case time.Time:
		return x, nil
	case string:
		return cast.ToTimeE(strings.TrimSpace(x))
	}
	return cast.ToTimeE(value)
}

func ToDate(value any) (any, error) {
	v, err := ToDatetime(value)
	if err != nil {
		return nil, err
	}
	t := v.(time.Time)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
}

// ToClock 支持 time.Duration、time.Time（取时分秒）、"[-]hh:mm:ss[.ffffff]" 以及 "1h2m3s"
func ToClock(value any) (any, error) {
	switch x := text(value).(type) {
	case time.Duration:
		return x, nil
	case time.Time:
		return x.Sub(time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, x.Location())), nil
	case string:
		return parseClock(strings.TrimSpace(x))
	}
	return nil, errors.Errorf("unable to cast %#v of type %T to time", value, value)
}

func parseClock(s string) (time.Duration, error) {
	if !strings.Contains(s, ":") {
		return time.ParseDuration(s)
	}

	sign := time.Duration(1)
	if strings.HasPrefix(s, "-") {
		sign, s = -1, s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, errors.Errorf("invalid time %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errors.Wrapf(err, "invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.Errorf("invalid minute in %q", s)
	}
	var sec float64
	if len(parts) == 3 {
		if sec, err = strconv.ParseFloat(parts[2], 64); err != nil || sec < 0 || sec >= 60 {
			return 0, errors.Errorf("invalid second in %q", s)
		}
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
	return sign * d, nil
}

// FormatClock 把时长格式化成 hh:mm:ss[.ffffff]
func FormatClock(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign, d = "-", -d
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	us := (d % time.Second) / time.Microsecond
	if us == 0 {
		return sign + pad2(int64(h)) + ":" + pad2(int64(m)) + ":" + pad2(int64(s))
	}
	return sign + pad2(int64(h)) + ":" + pad2(int64(m)) + ":" + pad2(int64(s)) + "." + leftPad(strconv.FormatInt(int64(us), 10), 6)
}

func pad2(n int64) string {
	return leftPad(strconv.FormatInt(n, 10), 2)
}

func leftPad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}

func ToBool(value any) (any, error) {
	return cast.ToBoolE(text(value))
}

func ToList(value any) (any, error) {
	if l, ok := value.([]any); ok {
		return l, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Errorf("unable to cast %#v of type %T to []any", value, value)
	}
	if _, isBytes := value.([]byte); isBytes {
		return nil, errors.New("unable to cast []byte to []any")
	}
	result := make([]any, rv.Len())
	for i := range result {
		result[i] = rv.Index(i).Interface()
	}
	return result, nil
}

func ToDict(value any) (any, error) {
	switch x := value.(type) {
	case map[string]any:
		return x, nil
	case string, []byte:
		return nil, errors.Errorf("unable to cast %T to map[string]any", value)
	}
	return cast.ToStringMapE(value)
}
