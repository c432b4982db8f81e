// Package sqlargs 把子句描述转换成带命名参数 %(name)s 的 SQL 语句和参数表
package sqlargs

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

type Clause string

const (
	Select            Clause = "select"
	Insert            Clause = "insert"
	Update            Clause = "update"
	Delete            Clause = "delete"
	Where             Clause = "where"
	GroupBy           Clause = "group_by"
	Having            Clause = "having"
	DescendingOrderBy Clause = "descending_order_by"
	AscendingOrderBy  Clause = "ascending_order_by"
	Limit             Clause = "limit"
)

// Clauses 子句名到输入的映射
//
//	select/group_by/*_order_by: []string 或者逗号分隔的字符串
//	insert/update/where/having: map[string]any
//	delete: 任意值，只要存在即可
//	limit: (count[, offset])，可以是 int 或者切片
type Clauses map[Clause]any

type factory func(b *builder, input any) (string, map[string]any, error)

var factories = map[Clause]factory{
	Select:            (*builder).selectClause,
	Insert:            (*builder).insertClause,
	Update:            (*builder).updateClause,
	Delete:            (*builder).deleteClause,
	Where:             conditionClause(Where, "WHERE"),
	GroupBy:           (*builder).groupByClause,
	Having:            conditionClause(Having, "HAVING"),
	DescendingOrderBy: nil,
	AscendingOrderBy:  nil,
	Limit:             (*builder).limitClause,
}

type Option func(*options)

type options struct {
	salt SaltFunc
}

func WithSalt(fn SaltFunc) Option {
	return func(o *options) { o.salt = fn }
}

func WithRandomSalt() Option {
	return WithSalt(RandomSalt)
}

type builder struct {
	table string
	salt  SaltFunc
}

// Build 按照 动词, WHERE, GROUP BY, HAVING, ORDER BY, LIMIT 的顺序拼接语句
func Build(table string, clauses Clauses, opts ...Option) (string, map[string]any, error) {
	o := options{salt: DeterministicSalt}
	for _, opt := range opts {
		opt(&o)
	}
	for clause := range clauses {
		if _, ok := factories[clause]; !ok {
			return "", nil, errors.Wrapf(ErrUnsupportedClause, "clause `%s`", clause)
		}
	}

	b := &builder{table: table, salt: o.salt}
	var parts []string
	args := map[string]any{}
	add := func(sql string, a map[string]any) {
		if sql != "" {
			parts = append(parts, sql)
		}
		for k, v := range a {
			args[k] = v
		}
	}

	for _, clause := range []Clause{Select, Insert, Update, Delete, Where, GroupBy, Having} {
		input, ok := clauses[clause]
		if !ok {
			continue
		}
		sql, a, err := factories[clause](b, input)
		if err != nil {
			return "", nil, errors.WithMessagef(err, "build %s clause failed", clause)
		}
		add(sql, a)
	}
	add(b.orderByClause(clauses[AscendingOrderBy], clauses[DescendingOrderBy]), nil)
	if input, ok := clauses[Limit]; ok {
		sql, a, _ := b.limitClause(input)
		add(sql, a)
	}

	return strings.Join(parts, " "), args, nil
}

func names(input any) []string {
	switch x := input.(type) {
	case nil:
		return nil
	case string:
		var result []string
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return x
	}
	return cast.ToStringSlice(input)
}

func sortedNames(input any) []string {
	result := append([]string(nil), names(input)...)
	sort.Strings(result)
	return result
}

func values(input any) (map[string]any, error) {
	if input == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapE(input)
	if err != nil {
		return nil, errors.Wrapf(err, "expected map, got %T", input)
	}
	return m, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *builder) selectClause(input any) (string, map[string]any, error) {
	columns := sortedNames(input)
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), b.table), nil, nil
}

// insertClause 列名直接用作参数名
func (b *builder) insertClause(input any) (string, map[string]any, error) {
	row, err := values(input)
	if err != nil || len(row) == 0 {
		return "", nil, err
	}
	columns := sortedKeys(row)
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		placeholders[i] = placeholder(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", b.table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")), row, nil
}

func (b *builder) updateClause(input any) (string, map[string]any, error) {
	row, err := values(input)
	if err != nil || len(row) == 0 {
		return "", nil, err
	}
	columns := sortedKeys(row)
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = c + " = " + placeholder(c)
	}
	return fmt.Sprintf("UPDATE %s SET %s", b.table, strings.Join(sets, ", ")), row, nil
}

// deleteClause 不检查是否有 WHERE 条件
func (b *builder) deleteClause(any) (string, map[string]any, error) {
	return "DELETE FROM " + b.table, nil, nil
}

func conditionClause(clause Clause, keyword string) factory {
	return func(b *builder, input any) (string, map[string]any, error) {
		conds, err := values(input)
		if err != nil || len(conds) == 0 {
			return "", nil, err
		}
		return RenderConditions(keyword, conds, b.salt(b.table, clause))
	}
}

// RenderConditions 条件按文本排序后用 AND 连接
func RenderConditions(keyword string, conds map[string]any, salt string) (string, map[string]any, error) {
	args := map[string]any{}
	predicates := make([]string, 0, len(conds))
	for key, value := range conds {
		c, err := ParseCondition(key, value, salt)
		if err != nil {
			return "", nil, err
		}
		sql, a, err := c.Render()
		if err != nil {
			return "", nil, err
		}
		predicates = append(predicates, sql)
		for k, v := range a {
			args[k] = v
		}
	}
	sort.Strings(predicates)
	return keyword + " " + strings.Join(predicates, " AND "), args, nil
}

func (b *builder) groupByClause(input any) (string, map[string]any, error) {
	columns := sortedNames(input)
	if len(columns) == 0 {
		return "", nil, nil
	}
	return "GROUP BY " + strings.Join(columns, ", "), nil, nil
}

// orderByClause 保持给定顺序，升序字段在前
func (b *builder) orderByClause(ascending, descending any) string {
	var columns []string
	columns = append(columns, names(ascending)...)
	for _, c := range names(descending) {
		columns = append(columns, c+" DESC")
	}
	if len(columns) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(columns, ", ")
}

// limitClause 输入不合法时返回空子句
func (b *builder) limitClause(input any) (string, map[string]any, error) {
	var items []any
	rv := reflect.ValueOf(input)
	switch {
	case input == nil:
		return "", nil, nil
	case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			items = append(items, rv.Index(i).Interface())
		}
	default:
		items = []any{input}
	}
	if len(items) == 0 || len(items) > 2 {
		return "", nil, nil
	}

	count, err := cast.ToInt64E(items[0])
	if err != nil || count < 0 {
		return "", nil, nil
	}
	var offset int64
	if len(items) == 2 {
		if offset, err = cast.ToInt64E(items[1]); err != nil || offset < 0 {
			return "", nil, nil
		}
	}

	salt := b.salt(b.table, Limit)
	offsetName, countName := "limit_offset_"+salt, "limit_count_"+salt
	return fmt.Sprintf("LIMIT %s, %s", placeholder(offsetName), placeholder(countName)),
		map[string]any{offsetName: offset, countName: count}, nil
}
