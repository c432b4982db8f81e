package field

import (
	"github.com/hatlonely/dataobj/validator"
)

// tinyint ~ bigint
func NewIntField(opts ...Option) *Field {
	return MustNew(validator.KindInt, opts...)
}

// float, double
func NewFloatField(opts ...Option) *Field {
	return MustNew(validator.KindFloat, opts...)
}

func NewDecimalField(opts ...Option) *Field {
	return MustNew(validator.KindDecimal, opts...)
}

// char, varchar, text
func NewStringField(opts ...Option) *Field {
	return MustNew(validator.KindString, opts...)
}

// blob
func NewBytesField(opts ...Option) *Field {
	return MustNew(validator.KindBytes, opts...)
}

func NewDateField(opts ...Option) *Field {
	return MustNew(validator.KindDate, opts...)
}

func NewDatetimeField(opts ...Option) *Field {
	return MustNew(validator.KindDatetime, opts...)
}

// NewTimeField 值为距离 0 点的 time.Duration，存储为 hh:mm:ss
func NewTimeField(opts ...Option) *Field {
	return MustNew(validator.KindTime, opts...)
}

func NewTimestampField(opts ...Option) *Field {
	return MustNew(validator.KindTimestamp, opts...)
}

// NewBoolField 存储为 1/0，无法转换的值按真假判断
func NewBoolField(opts ...Option) *Field {
	return MustNew(validator.KindBool, append([]Option{WithTypeErrorHandler(validator.Truthy)}, opts...)...)
}

// NewListField 存储为 JSON 文本
func NewListField(opts ...Option) *Field {
	return MustNew(validator.KindList, opts...)
}

// NewDictField 存储为 JSON 文本
func NewDictField(opts ...Option) *Field {
	return MustNew(validator.KindDict, opts...)
}

// NewObjectField 存储为 msgpack 编码后的 base64 文本
func NewObjectField(opts ...Option) *Field {
	return MustNew(validator.KindObject, opts...)
}
