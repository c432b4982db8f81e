package model

import (
	"maps"
	"slices"
)

// Plan 查询计划，With 方法返回修改了一项的副本
type Plan struct {
	fields     []string
	raw        bool
	conditions map[string]any
	orderBy    []string
	descending bool
	limit      []int64
}

// WithFields names 为 nil 时选择所有字段，raw 为 true 时结果不包装成实例
func (p Plan) WithFields(names []string, raw bool) Plan {
	p.fields = slices.Clone(names)
	p.raw = raw
	return p
}

func (p Plan) WithConditions(conditions map[string]any) Plan {
	p.conditions = maps.Clone(conditions)
	return p
}

func (p Plan) WithOrderBy(names []string, descending bool) Plan {
	p.orderBy = slices.Clone(names)
	p.descending = descending
	return p
}

func (p Plan) WithLimit(count int64, offset ...int64) Plan {
	p.limit = append([]int64{count}, offset...)
	return p
}

func (p Plan) Fields() []string {
	return slices.Clone(p.fields)
}

func (p Plan) Raw() bool {
	return p.raw
}

func (p Plan) Conditions() map[string]any {
	return maps.Clone(p.conditions)
}

func (p Plan) OrderBy() ([]string, bool) {
	return slices.Clone(p.orderBy), p.descending
}

func (p Plan) Limit() []int64 {
	return slices.Clone(p.limit)
}
