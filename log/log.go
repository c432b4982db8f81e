package log

import (
	"log/slog"
	"sync/atomic"

	"github.com/hatlonely/dataobj/log/logger"
	"github.com/hatlonely/dataobj/ref"
	"github.com/pkg/errors"
)

var defaultLogger atomic.Pointer[loggerHolder]

type loggerHolder struct {
	logger logger.Logger
}

func init() {
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{Level: "info", Format: "text"})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger.Store(&loggerHolder{logger: l})
}

// Default 包级默认日志器，未配置时向 stdout 输出 info 级别 text 日志
func Default() logger.Logger {
	return defaultLogger.Load().logger
}

func SetDefault(l logger.Logger) {
	if l != nil {
		defaultLogger.Store(&loggerHolder{logger: l})
	}
}

// NewLoggerWithOptions 通过 ref 构造日志器，options 为 nil 时返回默认日志器
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil {
		return Default(), nil
	}
	l, err := ref.NewWithOptions[logger.Logger](options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithOptions failed")
	}
	return l, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Discard 丢弃所有输出
func Discard() logger.Logger {
	return logger.NewSLog(discard{}, slog.LevelError+1)
}
