package model

import (
	"context"
	"iter"

	"github.com/hatlonely/dataobj/database"
	"github.com/hatlonely/dataobj/sqlargs"
	"github.com/pkg/errors"
)

// Manager 惰性查询，第一次物化时执行一次查询并缓存结果
//
// 链式调用总是返回新的 Manager，新 Manager 的缓存为空，可以在多个 goroutine 中从同一个 Manager 分支。
// 同一个 Manager 的物化方法不能并发调用
type Manager struct {
	schema *Schema
	plan   Plan
	cache  *results
}

type results struct {
	rows      []database.Row
	instances []*Instance
}

func newManager(schema *Schema) *Manager {
	return &Manager{schema: schema}
}

func (m *Manager) branch(plan Plan) *Manager {
	return &Manager{schema: m.schema, plan: plan}
}

func (m *Manager) Schema() *Schema {
	return m.schema
}

func (m *Manager) Plan() Plan {
	return m.plan
}

// Filter 选择所有字段，conditions 的键为 field 或者 field__op
func (m *Manager) Filter(conditions map[string]any) *Manager {
	return m.branch(m.plan.WithFields(nil, false).WithConditions(conditions))
}

// FilterWithFieldNames 只选择 names 中的字段，结果通过 Rows 读取
func (m *Manager) FilterWithFieldNames(names []string, conditions map[string]any) *Manager {
	return m.branch(m.plan.WithFields(names, true).WithConditions(conditions))
}

func (m *Manager) All() *Manager {
	return m.Filter(nil)
}

func (m *Manager) Limit(count int64, offset ...int64) *Manager {
	return m.branch(m.plan.WithLimit(count, offset...))
}

func (m *Manager) OrderBy(names []string, descending bool) *Manager {
	return m.branch(m.plan.WithOrderBy(names, descending))
}

// Get 没有匹配的行时返回 nil, nil
func (m *Manager) Get(ctx context.Context, conditions map[string]any) (*Instance, error) {
	return m.Filter(conditions).First(ctx)
}

// Statement 把计划转换成语句，字段名不存在时返回 ErrUnknownField
func (m *Manager) Statement() (string, map[string]any, error) {
	s := m.schema
	clauses := sqlargs.Clauses{}

	var columns []string
	if m.plan.fields == nil {
		for _, f := range s.all {
			columns = append(columns, f.Column())
		}
	} else {
		for _, name := range m.plan.fields {
			f, err := s.lookup(name)
			if err != nil {
				return "", nil, err
			}
			columns = append(columns, f.Column())
		}
	}
	clauses[sqlargs.Select] = columns

	if len(m.plan.conditions) != 0 {
		where := make(map[string]any, len(m.plan.conditions))
		for key, value := range m.plan.conditions {
			name, op, err := sqlargs.SplitKey(key)
			if err != nil {
				return "", nil, errors.WithMessagef(err, "model %q", s.name)
			}
			f, err := s.lookup(name)
			if err != nil {
				return "", nil, err
			}
			where[f.Column()+sqlargs.Separator+string(op)] = value
		}
		clauses[sqlargs.Where] = where
	}

	if len(m.plan.orderBy) != 0 {
		columns := make([]string, 0, len(m.plan.orderBy))
		for _, name := range m.plan.orderBy {
			f, err := s.lookup(name)
			if err != nil {
				return "", nil, err
			}
			columns = append(columns, f.Column())
		}
		if m.plan.descending {
			clauses[sqlargs.DescendingOrderBy] = columns
		} else {
			clauses[sqlargs.AscendingOrderBy] = columns
		}
	}

	if m.plan.limit != nil {
		clauses[sqlargs.Limit] = m.plan.limit
	}

	return sqlargs.Build(s.table, clauses, s.options...)
}

func (m *Manager) materialize(ctx context.Context) (*results, error) {
	if m.cache != nil {
		return m.cache, nil
	}
	// 原型只用于分支和写入，不缓存结果
	prototype := m == m.schema.objects

	stmt, args, err := m.Statement()
	if err != nil {
		return nil, err
	}
	raws, err := m.query(ctx, stmt, args)
	if err != nil {
		return nil, err
	}

	r := &results{}
	for _, raw := range raws {
		if m.plan.raw {
			row, err := m.schema.convertRow(raw)
			if err != nil {
				return nil, err
			}
			r.rows = append(r.rows, row)
			continue
		}
		inst, err := m.schema.FromRow(raw)
		if err != nil {
			return nil, err
		}
		r.instances = append(r.instances, inst)
	}
	if !prototype {
		m.cache = r
	}
	return r, nil
}

func (m *Manager) Instances(ctx context.Context) ([]*Instance, error) {
	if m.plan.raw {
		return nil, errors.Wrapf(ErrRawManager, "model %q, use Rows", m.schema.name)
	}
	r, err := m.materialize(ctx)
	if err != nil {
		return nil, err
	}
	return r.instances, nil
}

// Rows 只用于 FilterWithFieldNames 创建的 Manager，值经过 ValidateOutput
func (m *Manager) Rows(ctx context.Context) ([]database.Row, error) {
	if !m.plan.raw {
		return nil, errors.Errorf("model %q: manager selects instances, use Instances", m.schema.name)
	}
	r, err := m.materialize(ctx)
	if err != nil {
		return nil, err
	}
	return r.rows, nil
}

func (m *Manager) Len(ctx context.Context) (int, error) {
	r, err := m.materialize(ctx)
	if err != nil {
		return 0, err
	}
	if m.plan.raw {
		return len(r.rows), nil
	}
	return len(r.instances), nil
}

func (m *Manager) First(ctx context.Context) (*Instance, error) {
	instances, err := m.Instances(ctx)
	if err != nil || len(instances) == 0 {
		return nil, err
	}
	return instances[0], nil
}

func (m *Manager) Last(ctx context.Context) (*Instance, error) {
	instances, err := m.Instances(ctx)
	if err != nil || len(instances) == 0 {
		return nil, err
	}
	return instances[len(instances)-1], nil
}

// Index 支持负数下标，-1 为最后一个
func (m *Manager) Index(ctx context.Context, i int) (*Instance, error) {
	instances, err := m.Instances(ctx)
	if err != nil {
		return nil, err
	}
	n := len(instances)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", i, n)
	}
	return instances[i], nil
}

// Iter 查询失败时产生一次 (nil, err)
func (m *Manager) Iter(ctx context.Context) iter.Seq2[*Instance, error] {
	return func(yield func(*Instance, error) bool) {
		instances, err := m.Instances(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, inst := range instances {
			if !yield(inst, nil) {
				return
			}
		}
	}
}

func (m *Manager) check(inst *Instance) error {
	if inst == nil {
		return errors.New("instance is nil")
	}
	if inst.schema != m.schema {
		return errors.Wrapf(ErrSchemaMismatch, "%q is not %q", inst.schema.name, m.schema.name)
	}
	return nil
}

func (m *Manager) primaryKeyCondition(inst *Instance) (map[string]any, error) {
	pk := m.schema.primary
	value := inst.values[pk.Name()]
	if value == nil {
		return nil, errors.Wrapf(ErrMissingPrimaryKeyValue, "model %q", m.schema.name)
	}
	return map[string]any{pk.Column() + sqlargs.Separator + string(sqlargs.OpEq): value}, nil
}

// Dump 自增主键不写入，写入后把数据库生成的 id 赋值给实例
func (m *Manager) Dump(ctx context.Context, inst *Instance) error {
	if err := m.check(inst); err != nil {
		return err
	}
	pk := m.schema.primary

	content := map[string]any{}
	for _, f := range m.schema.all {
		if f.AutoIncrement() {
			continue
		}
		content[f.Column()] = inst.values[f.Name()]
	}

	stmt, args, err := sqlargs.Build(m.schema.table, sqlargs.Clauses{sqlargs.Insert: content}, m.schema.options...)
	if err != nil {
		return err
	}
	id, err := m.execute(ctx, stmt, args)
	if err != nil {
		return err
	}
	if pk.AutoIncrement() && id != 0 {
		if err := inst.set(pk, id); err != nil {
			return err
		}
	}
	inst.snapshot = inst.clone()
	return nil
}

// Update 只写入和快照不同的字段，没有变化时不执行语句
func (m *Manager) Update(ctx context.Context, inst *Instance) error {
	if err := m.check(inst); err != nil {
		return err
	}
	where, err := m.primaryKeyCondition(inst)
	if err != nil {
		return err
	}

	changed := inst.changed(m.schema.fields)
	if len(changed) == 0 {
		return nil
	}
	content := make(map[string]any, len(changed))
	for _, f := range changed {
		content[f.Column()] = inst.values[f.Name()]
	}

	stmt, args, err := sqlargs.Build(m.schema.table, sqlargs.Clauses{
		sqlargs.Update: content,
		sqlargs.Where:  where,
	}, m.schema.options...)
	if err != nil {
		return err
	}
	if _, err := m.execute(ctx, stmt, args); err != nil {
		return err
	}
	inst.snapshot = inst.clone()
	return nil
}

// Delete 总是按主键删除
func (m *Manager) Delete(ctx context.Context, inst *Instance) error {
	if err := m.check(inst); err != nil {
		return err
	}
	where, err := m.primaryKeyCondition(inst)
	if err != nil {
		return err
	}

	stmt, args, err := sqlargs.Build(m.schema.table, sqlargs.Clauses{
		sqlargs.Delete: nil,
		sqlargs.Where:  where,
	}, m.schema.options...)
	if err != nil {
		return err
	}
	if _, err := m.execute(ctx, stmt, args); err != nil {
		return err
	}
	inst.clear()
	return nil
}

func (m *Manager) query(ctx context.Context, stmt string, args map[string]any) ([]database.Row, error) {
	m.schema.logger.DebugContext(ctx, "query", "sql", stmt, "args", args)
	rows, err := m.schema.db.Query(ctx, stmt, args)
	if err != nil {
		return nil, errors.WithMessagef(err, "query model %q failed", m.schema.name)
	}
	return rows, nil
}

func (m *Manager) execute(ctx context.Context, stmt string, args map[string]any) (int64, error) {
	m.schema.logger.DebugContext(ctx, "execute", "sql", stmt, "args", args)
	id, err := m.schema.db.Execute(ctx, stmt, args)
	if err != nil {
		return 0, errors.WithMessagef(err, "execute model %q failed", m.schema.name)
	}
	return id, nil
}
