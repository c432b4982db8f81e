package model

import (
	"github.com/hatlonely/dataobj/database"
	"github.com/pkg/errors"
)

// 注册模型时返回
var (
	ErrMissingPrimaryKey   = errors.New("missing primary key")
	ErrDuplicatePrimaryKey = errors.New("duplicate primary key")
	ErrDuplicateField      = errors.New("duplicate field")
	ErrDuplicateColumn     = errors.New("duplicate column")
	ErrMissingTableName    = errors.New("missing table name")
	ErrInvalidDB           = database.ErrInvalidDB
)

// 构造语句或者操作实例时返回，此时还没有访问数据库
var (
	ErrUnknownField           = errors.New("unknown field")
	ErrMissingPrimaryKeyValue = errors.New("missing primary key value")
	ErrSchemaMismatch         = errors.New("instance belongs to another model")
	ErrRawManager             = errors.New("manager selects raw rows")
	ErrIndexOutOfRange        = errors.New("index out of range")
)
