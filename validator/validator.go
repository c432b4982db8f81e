// Package validator 提供字段值的校验与转换
//
// 所有校验器对 nil 直接放行（NotNullValidator 除外）。校验失败时，如果配置了 ErrorHandler，
// 则用它的返回值替代原值，否则返回 *Error。
package validator

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrType     = errors.New("type mismatch")
	ErrNotNull  = errors.New("null value")
	ErrLength   = errors.New("length out of range")
	ErrChoice   = errors.New("not in choices")
	ErrRange    = errors.New("value out of range")
	ErrFormat   = errors.New("invalid format")
	ErrNoLength = errors.New("value has no length")
)

type Validator interface {
	// Validate 返回校验（可能转换）后的值，param 只用于错误信息
	Validate(param string, value any) (any, error)
}

type ValidatorFunc func(param string, value any) (any, error)

func (f ValidatorFunc) Validate(param string, value any) (any, error) {
	return f(param, value)
}

// ErrorHandler 校验失败时调用，返回值替代原值
type ErrorHandler func(value any) (any, error)

type Error struct {
	Kind    error
	Param   string
	Value   any
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("validate param `%s=%v` failed: %v", e.Param, e.Value, e.Kind)
	}
	return fmt.Sprintf("validate param `%s=%v` failed: %v, %s", e.Param, e.Value, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func (e *Error) Cause() error {
	return e.Kind
}

type Option func(*options)

type options struct {
	handler ErrorHandler
}

func WithErrorHandler(handler ErrorHandler) Option {
	return func(o *options) {
		o.handler = handler
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) fail(kind error, param string, value any, format string, args ...any) (any, error) {
	if o.handler != nil {
		return o.handler(value)
	}
	return nil, &Error{Kind: kind, Param: param, Value: value, Message: fmt.Sprintf(format, args...)}
}

// Chain 依次执行多个校验器，前一个的输出是后一个的输入
func Chain(param string, value any, validators ...Validator) (any, error) {
	var err error
	for _, v := range validators {
		if value, err = v.Validate(param, value); err != nil {
			return nil, err
		}
	}
	return value, nil
}
