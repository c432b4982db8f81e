// Package database 定义执行语句的数据库协作者，以及 SQL、GORM、观测、缓存几种实现
//
// 语句使用 %(name)s 形式的命名参数，由具体实现改写成驱动支持的占位符
package database

import (
	"context"
	"reflect"

	"github.com/hatlonely/dataobj/ref"
	"github.com/pkg/errors"
)

var ErrInvalidDB = errors.New("invalid database, Query and Execute are required")

const namespace = "github.com/hatlonely/dataobj/database"

// Row 列名到原始值
type Row = map[string]any

type DB interface {
	// Execute 执行写语句，返回自增 id，驱动不支持时为 0
	Execute(ctx context.Context, stmt string, args map[string]any) (int64, error)
	// Query 执行读语句，结果保持语句中的顺序
	Query(ctx context.Context, stmt string, args map[string]any) ([]Row, error)
}

// NewDBWithOptions namespace 为空时使用本包注册的实现，例如 {type: SQL, options: {...}}
func NewDBWithOptions(options *ref.TypeOptions) (DB, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.Namespace == "" {
		options = &ref.TypeOptions{Namespace: namespace, Type: options.Type, Options: options.Options}
	}
	db, err := ref.NewWithOptions[DB](options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithOptions failed")
	}
	return db, nil
}

// Resolve 支持 DB 实例、返回 DB 的构造函数以及 *ref.TypeOptions 配置
func Resolve(v any) (DB, error) {
	switch x := v.(type) {
	case nil:
		return nil, errors.Wrap(ErrInvalidDB, "database is nil")
	case DB:
		return x, nil
	case *ref.TypeOptions:
		return NewDBWithOptions(x)
	case ref.TypeOptions:
		return NewDBWithOptions(&x)
	case func() DB:
		return Resolve(x())
	case func() (DB, error):
		db, err := x()
		if err != nil {
			return nil, errors.WithMessage(err, "create database failed")
		}
		return Resolve(db)
	}

	// 任意返回值实现了 DB 的无参函数
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func && rv.Type().NumIn() == 0 && (rv.Type().NumOut() == 1 || rv.Type().NumOut() == 2) {
		out := rv.Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			if err, ok := out[1].Interface().(error); ok {
				return nil, errors.WithMessage(err, "create database failed")
			}
		}
		if db, ok := out[0].Interface().(DB); ok && !out[0].IsZero() {
			return db, nil
		}
	}
	return nil, errors.Wrapf(ErrInvalidDB, "%T", v)
}
