package model

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hatlonely/dataobj/field"
	"github.com/pkg/errors"
)

// Instance 保存校验后的存储值，读取时经过 ValidateOutput
type Instance struct {
	schema *Schema
	values map[string]any

	// snapshot 最近一次从数据库加载或者写入数据库时的值
	snapshot map[string]any
}

func (i *Instance) Schema() *Schema {
	return i.schema
}

func (i *Instance) Get(name string) (any, error) {
	f, err := i.schema.lookup(name)
	if err != nil {
		return nil, err
	}
	return f.ValidateOutput(i.values[name])
}

func (i *Instance) Set(name string, value any) error {
	f, err := i.schema.lookup(name)
	if err != nil {
		return err
	}
	return i.set(f, value)
}

func (i *Instance) set(f *field.Field, value any) error {
	stored, err := f.ValidateInput(value)
	if err != nil {
		return errors.WithMessagef(err, "set field %q of model %q failed", f.Name(), i.schema.name)
	}
	i.values[f.Name()] = stored
	return nil
}

// Len 字段个数
func (i *Instance) Len() int {
	return len(i.schema.all)
}

func (i *Instance) Has(name string) bool {
	return i.schema.Has(name)
}

// Values 所有字段读取后的值
func (i *Instance) Values() (map[string]any, error) {
	result := make(map[string]any, len(i.schema.all))
	for _, f := range i.schema.all {
		v, err := f.ValidateOutput(i.values[f.Name()])
		if err != nil {
			return nil, err
		}
		result[f.Name()] = v
	}
	return result, nil
}

func (i *Instance) String() string {
	values, err := i.Values()
	if err != nil {
		return fmt.Sprintf("<%s error=%v>", i.schema.name, err)
	}
	return fmt.Sprintf("<%s data=%v>", i.schema.name, values)
}

func (i *Instance) PrimaryKeyValue() (any, error) {
	return i.Get(i.schema.primary.Name())
}

func (i *Instance) Dump(ctx context.Context) error {
	return i.schema.objects.Dump(ctx, i)
}

// Update 先设置 values 再把变化的字段写入数据库
func (i *Instance) Update(ctx context.Context, values map[string]any) error {
	for name, value := range values {
		if err := i.Set(name, value); err != nil {
			return err
		}
	}
	return i.schema.objects.Update(ctx, i)
}

// Delete 成功后清空实例
func (i *Instance) Delete(ctx context.Context) error {
	return i.schema.objects.Delete(ctx, i)
}

func (i *Instance) clone() map[string]any {
	result := make(map[string]any, len(i.values))
	for k, v := range i.values {
		result[k] = v
	}
	return result
}

func (i *Instance) clear() {
	i.values = map[string]any{}
	i.snapshot = nil
}

// changed 没有快照时返回所有字段
func (i *Instance) changed(fields []*field.Field) []*field.Field {
	if i.snapshot == nil {
		return fields
	}
	var result []*field.Field
	for _, f := range fields {
		old, ok := i.snapshot[f.Name()]
		if !ok || !reflect.DeepEqual(old, i.values[f.Name()]) {
			result = append(result, f)
		}
	}
	return result
}
