package ref

import (
	"reflect"
	"sync"

	"github.com/hatlonely/dataobj/cfg"
	"github.com/pkg/errors"
)

// TypeOptions 通过 namespace + type 定位一个已注册的构造函数，Options 作为构造参数
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type"`
	Options   any    `cfg:"options"`
}

// Convertable 可以自行转换成构造函数参数类型的配置数据
type Convertable interface {
	ConvertTo(object any) error
}

type constructor struct {
	fn           reflect.Value
	hasOptions   bool
	returnsError bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func newConstructor(newFunc any) (*constructor, error) {
	fv := reflect.ValueOf(newFunc)
	if fv.Kind() != reflect.Func {
		return nil, errors.New("newFunc must be a function")
	}

	ft := fv.Type()
	if ft.NumIn() > 1 {
		return nil, errors.Errorf("newFunc must have 0 or 1 input parameters, got %d", ft.NumIn())
	}
	if ft.NumOut() != 1 && ft.NumOut() != 2 {
		return nil, errors.Errorf("newFunc must have 1 or 2 return values, got %d", ft.NumOut())
	}
	if ft.NumOut() == 2 && !ft.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be error type")
	}

	return &constructor{
		fn:           fv,
		hasOptions:   ft.NumIn() == 1,
		returnsError: ft.NumOut() == 2,
	}, nil
}

func (c *constructor) new(options any) (any, error) {
	var args []reflect.Value
	if c.hasOptions {
		arg, err := c.convertOptions(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	results := c.fn.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// convertOptions 把 options 转换成构造函数的参数类型
// 支持: 类型完全匹配、Convertable、配置文件解析出来的 map
func (c *constructor) convertOptions(options any) (reflect.Value, error) {
	paramType := c.fn.Type().In(0)

	if options == nil {
		return reflect.Zero(paramType), nil
	}

	ov := reflect.ValueOf(options)
	if ov.Type().AssignableTo(paramType) {
		return ov, nil
	}

	isPtr := paramType.Kind() == reflect.Ptr
	target := reflect.New(paramType)
	if isPtr {
		target = reflect.New(paramType.Elem())
	}

	switch o := options.(type) {
	case Convertable:
		if err := o.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "convert options to %v failed", paramType)
		}
	case map[string]any:
		if err := cfg.Decode(o, target.Interface()); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "decode options to %v failed", paramType)
		}
	default:
		return reflect.Value{}, errors.Errorf("options type %T is not assignable to %v", options, paramType)
	}

	if isPtr {
		return target, nil
	}
	return target.Elem(), nil
}

var constructors sync.Map

func key(namespace, type_ string) string {
	return namespace + ":" + type_
}

func Register(namespace string, type_ string, newFunc any) error {
	if v, ok := constructors.Load(key(namespace, type_)); ok {
		// 重复注册同一个函数直接忽略
		if v.(*constructor).fn.Pointer() == reflect.ValueOf(newFunc).Pointer() {
			return nil
		}
		return errors.Errorf("constructor for %s:%s already registered with different function", namespace, type_)
	}

	c, err := newConstructor(newFunc)
	if err != nil {
		return errors.WithMessage(err, "newConstructor failed")
	}
	constructors.Store(key(namespace, type_), c)
	return nil
}

func MustRegister(namespace string, type_ string, newFunc any) {
	if err := Register(namespace, type_, newFunc); err != nil {
		panic(err)
	}
}

// RegisterT 以 T 的包路径和类型名作为 namespace 和 type 注册
func RegisterT[T any](newFunc any) error {
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, type_, newFunc)
}

func MustRegisterT[T any](newFunc any) {
	if err := RegisterT[T](newFunc); err != nil {
		panic(err)
	}
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", errors.Errorf("cannot determine package path or type name for type %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}

func New(namespace string, type_ string, options any) (any, error) {
	v, ok := constructors.Load(key(namespace, type_))
	if !ok {
		return nil, errors.Errorf("constructor not found for %s:%s", namespace, type_)
	}
	return v.(*constructor).new(options)
}

// NewT 使用 T 的包路径和类型名查找构造函数
func NewT[T any](options any) (T, error) {
	var zero T
	namespace, type_, err := typeKey[T]()
	if err != nil {
		return zero, err
	}
	return As[T](New(namespace, type_, options))
}

// NewWithOptions 按 TypeOptions 构造对象，并校验对象实现了 T
func NewWithOptions[T any](options *TypeOptions) (T, error) {
	var zero T
	if options == nil {
		return zero, errors.New("options is nil")
	}
	return As[T](New(options.Namespace, options.Type, options.Options))
}

func As[T any](obj any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if obj == nil {
		return zero, errors.New("object is nil")
	}
	t, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("object %T is not a %v", obj, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}
