package sqlargs

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

var (
	ErrUnsupportedOperator = errors.New("unsupported condition operator")
	ErrInvalidValue        = errors.New("invalid condition value")
	ErrUnsupportedClause   = errors.New("unsupported clause")
)

// Separator 分隔字段名和操作符，例如 age__gt
const Separator = "__"

type Operator string

const (
	OpEq         Operator = "eq"
	OpLt         Operator = "lt"
	OpGt         Operator = "gt"
	OpLte        Operator = "lte"
	OpGte        Operator = "gte"
	OpNe         Operator = "ne"
	OpIn         Operator = "in"
	OpRange      Operator = "range"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startswith"
	OpEndsWith   Operator = "endswith"
	OpIsNull     Operator = "isnull"
)

type renderFunc func(c *Condition) (string, map[string]any, error)

// 只允许新增操作符，不要修改已有的语义
var operators = map[Operator]renderFunc{
	OpEq:         compare("="),
	OpLt:         compare("<"),
	OpGt:         compare(">"),
	OpLte:        compare("<="),
	OpGte:        compare(">="),
	OpNe:         compare("!="),
	OpIn:         renderIn,
	OpRange:      renderRange,
	OpContains:   like("%", "%"),
	OpStartsWith: like("", "%"),
	OpEndsWith:   like("%", ""),
	OpIsNull:     renderIsNull,
}

func Operators() []Operator {
	ops := make([]Operator, 0, len(operators))
	for op := range operators {
		ops = append(ops, op)
	}
	return ops
}

// SplitKey 拆分条件 key，没有分隔符时操作符为 eq
func SplitKey(key string) (string, Operator, error) {
	idx := strings.LastIndex(key, Separator)
	if idx < 0 {
		return key, OpEq, nil
	}
	field, op := key[:idx], Operator(key[idx+len(Separator):])
	if _, ok := operators[op]; !ok {
		return field, op, errors.Wrapf(ErrUnsupportedOperator, "operator `%s` for field `%s`", op, field)
	}
	return field, op, nil
}

// Condition 一个 field__op 条件
type Condition struct {
	Key      string
	Field    string
	Operator Operator
	Value    any
	Salt     string
}

func ParseCondition(key string, value any, salt string) (*Condition, error) {
	field, op, err := SplitKey(key)
	if err != nil {
		return nil, err
	}
	return &Condition{Key: key, Field: field, Operator: op, Value: value, Salt: salt}, nil
}

func (c *Condition) String() string {
	sql, _, _ := c.Render()
	return fmt.Sprintf("<Condition field=%q, operator=%q, sql=%q>", c.Field, c.Operator, sql)
}

// Render 返回谓词和绑定参数
func (c *Condition) Render() (string, map[string]any, error) {
	return operators[c.Operator](c)
}

func (c *Condition) param(parts ...string) string {
	return "cond_" + strings.Join(append(append([]string{c.Key}, parts...), c.Salt), "_")
}

func placeholder(name string) string {
	return "%(" + name + ")s"
}

func compare(sign string) renderFunc {
	return func(c *Condition) (string, map[string]any, error) {
		name := c.param()
		return fmt.Sprintf("%s %s %s", c.Field, sign, placeholder(name)), map[string]any{name: c.Value}, nil
	}
}

func like(prefix, suffix string) renderFunc {
	return func(c *Condition) (string, map[string]any, error) {
		if c.Value == nil {
			return "", nil, errors.Wrapf(ErrInvalidValue, "`%s` requires a value", c.Key)
		}
		value, err := cast.ToStringE(c.Value)
		if err != nil {
			return "", nil, errors.Wrapf(ErrInvalidValue, "`%s` expects a string, got %T", c.Key, c.Value)
		}
		name := c.param()
		return fmt.Sprintf("%s LIKE %s", c.Field, placeholder(name)),
			map[string]any{name: prefix + value + suffix}, nil
	}
}

func elements(c *Condition) ([]any, error) {
	if c.Value == nil {
		return nil, errors.Wrapf(ErrInvalidValue, "`%s` expects a list, got nil", c.Key)
	}
	rv := reflect.ValueOf(c.Value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Wrapf(ErrInvalidValue, "`%s` expects a list, got %T", c.Key, c.Value)
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, nil
}

// renderIn 每个元素一个参数，空列表渲染成 IN (NULL)，不匹配任何行
func renderIn(c *Condition) (string, map[string]any, error) {
	values, err := elements(c)
	if err != nil {
		return "", nil, err
	}
	if len(values) == 0 {
		return c.Field + " IN (NULL)", map[string]any{}, nil
	}

	args := make(map[string]any, len(values))
	placeholders := make([]string, 0, len(values))
	for i, v := range values {
		elem := sanitize(cast.ToString(v))
		name := c.param(elem)
		for n := i; ; n++ {
			if _, ok := args[name]; !ok {
				break
			}
			name = c.param(elem, strconv.Itoa(n))
		}
		args[name] = v
		placeholders = append(placeholders, placeholder(name))
	}
	return fmt.Sprintf("%s IN (%s)", c.Field, strings.Join(placeholders, ", ")), args, nil
}

func renderRange(c *Condition) (string, map[string]any, error) {
	values, err := elements(c)
	if err != nil {
		return "", nil, err
	}
	if len(values) != 2 {
		return "", nil, errors.Wrapf(ErrInvalidValue, "`%s` expects 2 values, got %d", c.Key, len(values))
	}
	from, to := c.param("from"), c.param("to")
	return fmt.Sprintf("%s BETWEEN %s AND %s", c.Field, placeholder(from), placeholder(to)),
		map[string]any{from: values[0], to: values[1]}, nil
}

func renderIsNull(c *Condition) (string, map[string]any, error) {
	if cast.ToBool(c.Value) {
		return c.Field + " IS NULL", map[string]any{}, nil
	}
	return c.Field + " IS NOT NULL", map[string]any{}, nil
}

// sanitize 把任意字符串转换成可以用作参数名的标识符
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
