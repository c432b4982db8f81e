package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hatlonely/dataobj/log"
	"github.com/hatlonely/dataobj/log/logger"
	"github.com/hatlonely/dataobj/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func init() {
	ref.MustRegisterT[Observable](NewObservableWithOptions)
}

type ObservableOptions struct {
	// DB 被包装的数据库配置
	DB *ref.TypeOptions `cfg:"db"`

	// Logger 日志记录器配置
	Logger *ref.TypeOptions `cfg:"logger"`

	EnableMetrics bool `cfg:"enableMetrics" def:"true"`
	EnableLogging bool `cfg:"enableLogging" def:"true"`
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// Name 指标名前缀、日志 component 字段以及 span 的 component 属性
	Name string `cfg:"name" def:"dataobj"`
}

type ObservableMetrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
	rowsHistogram     *prometheus.HistogramVec
}

// NewObservableMetrics 同名指标已经注册过时复用已有的指标
func NewObservableMetrics(name string) (*ObservableMetrics, error) {
	metrics := &ObservableMetrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		activeOperations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_db_active_operations",
				Help: "Number of active database operations",
			},
			[]string{"operation"},
		),
		rowsHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_db_query_rows",
				Help:    "Number of rows returned by queries",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
	}

	var err error
	if metrics.operationCounter, err = register(metrics.operationCounter); err != nil {
		return nil, err
	}
	if metrics.operationDuration, err = register(metrics.operationDuration); err != nil {
		return nil, err
	}
	if metrics.activeOperations, err = register(metrics.activeOperations); err != nil {
		return nil, err
	}
	if metrics.rowsHistogram, err = register(metrics.rowsHistogram); err != nil {
		return nil, err
	}
	return metrics, nil
}

func register[C prometheus.Collector](c C) (C, error) {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "prometheus.Register failed")
	}
	return c, nil
}

// Observable 为任意 DB 添加指标、日志和链路追踪
type Observable struct {
	db DB

	logger        logger.Logger
	metrics       *ObservableMetrics
	tracer        trace.Tracer
	name          string
	enableMetrics bool
	enableLogging bool
	enableTracing bool
}

func NewObservableWithOptions(options *ObservableOptions) (*Observable, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.DB == nil {
		return nil, errors.New("db is required")
	}

	db, err := NewDBWithOptions(options.DB)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create underlying db")
	}
	return NewObservable(db, options)
}

// NewObservable 包装已经创建好的 DB，忽略 options.DB，不填充 def 默认值
func NewObservable(db DB, options *ObservableOptions) (*Observable, error) {
	if options == nil {
		options = &ObservableOptions{EnableMetrics: true, EnableLogging: true}
	}
	name := options.Name
	if name == "" {
		name = "dataobj"
	}

	obs := &Observable{
		db:            db,
		name:          name,
		enableMetrics: options.EnableMetrics,
		enableLogging: options.EnableLogging,
		enableTracing: options.EnableTracing,
	}

	if options.EnableLogging {
		l, err := log.NewLoggerWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		obs.logger = l.WithGroup("observableDB")
	}

	if options.EnableMetrics {
		metrics, err := NewObservableMetrics(name)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create metrics")
		}
		obs.metrics = metrics
	}

	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("database.%s", name))
	}

	return obs, nil
}

// observe 统一的观测逻辑，fn 返回影响或返回的行数
func (obs *Observable) observe(ctx context.Context, operation string, stmt string, fn func(context.Context) (int, error)) error {
	start := time.Now()

	var span trace.Span
	if obs.enableTracing && obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, fmt.Sprintf("database.%s", operation),
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("operation", operation),
				attribute.String("db.statement", stmt),
			),
		)
		defer span.End()
	}

	if obs.enableMetrics && obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(operation).Dec()
	}

	n, err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.enableMetrics && obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
		if err == nil && operation == "query" {
			obs.metrics.rowsHistogram.WithLabelValues(operation).Observe(float64(n))
		}
	}

	if obs.enableLogging && obs.logger != nil {
		if err != nil {
			obs.logger.ErrorContext(ctx, "database operation failed",
				"component", obs.name,
				"operation", operation,
				"statement", stmt,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			obs.logger.InfoContext(ctx, "database operation completed",
				"component", obs.name,
				"operation", operation,
				"statement", stmt,
				"rows", n,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return err
}

func (obs *Observable) Execute(ctx context.Context, stmt string, args map[string]any) (int64, error) {
	var id int64
	err := obs.observe(ctx, "execute", stmt, func(ctx context.Context) (int, error) {
		var err error
		id, err = obs.db.Execute(ctx, stmt, args)
		return 0, err
	})
	return id, err
}

func (obs *Observable) Query(ctx context.Context, stmt string, args map[string]any) ([]Row, error) {
	var rows []Row
	err := obs.observe(ctx, "query", stmt, func(ctx context.Context) (int, error) {
		var err error
		rows, err = obs.db.Query(ctx, stmt, args)
		return len(rows), err
	})
	return rows, err
}

func (obs *Observable) Close() error {
	if c, ok := obs.db.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
