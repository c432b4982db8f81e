package sqlargs

import (
	"fmt"
)

// Builder 链式构造 Clauses，Build 之后可以继续复用
type Builder struct {
	table   string
	clauses Clauses
	opts    []Option
}

func NewBuilder(table string, opts ...Option) *Builder {
	return &Builder{table: table, clauses: Clauses{}, opts: opts}
}

func (b *Builder) Select(columns ...string) *Builder {
	b.clauses[Select] = columns
	return b
}

func (b *Builder) Insert(row map[string]any) *Builder {
	b.clauses[Insert] = row
	return b
}

func (b *Builder) Update(row map[string]any) *Builder {
	b.clauses[Update] = row
	return b
}

func (b *Builder) Delete() *Builder {
	b.clauses[Delete] = true
	return b
}

func (b *Builder) Where(conds map[string]any) *Builder {
	b.clauses[Where] = conds
	return b
}

func (b *Builder) GroupBy(columns ...string) *Builder {
	b.clauses[GroupBy] = columns
	return b
}

func (b *Builder) Having(conds map[string]any) *Builder {
	b.clauses[Having] = conds
	return b
}

func (b *Builder) OrderBy(columns ...string) *Builder {
	b.clauses[AscendingOrderBy] = columns
	return b
}

func (b *Builder) OrderByDesc(columns ...string) *Builder {
	b.clauses[DescendingOrderBy] = columns
	return b
}

func (b *Builder) Limit(count int64, offset ...int64) *Builder {
	if len(offset) != 0 {
		b.clauses[Limit] = []int64{count, offset[0]}
	} else {
		b.clauses[Limit] = []int64{count}
	}
	return b
}

func (b *Builder) Clauses() Clauses {
	return b.clauses
}

func (b *Builder) Build() (string, map[string]any, error) {
	return Build(b.table, b.clauses, b.opts...)
}

func (b *Builder) String() string {
	sql, args, err := b.Build()
	if err != nil {
		return fmt.Sprintf("<Builder table=%s, err=%v>", b.table, err)
	}
	return fmt.Sprintf("<Builder sql=%s, args=%v>", sql, args)
}
