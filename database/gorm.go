package database

import (
	"context"
	"database/sql"

	"github.com/hatlonely/dataobj/cfg"
	"github.com/hatlonely/dataobj/ref"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	ref.MustRegisterT[Gorm](NewGormWithOptions)
}

type GormOptions struct {
	Driver   string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite"`
	DSN      string `cfg:"dsn" validate:"required"`
	LogLevel string `cfg:"logLevel" def:"silent" validate:"oneof=silent error warn info"`
}

// Gorm 通过 gorm 执行原生语句，参数使用 @name 命名形式
type Gorm struct {
	db     *gorm.DB
	driver string
}

var gormLogLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
}

func NewGormWithOptions(options *GormOptions) (*Gorm, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if err := cfg.SetDefaults(options); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}

	var dialector gorm.Dialector
	switch options.Driver {
	case "sqlite":
		dialector = sqlite.Open(options.DSN)
	case "mysql":
		dialector = mysql.Open(options.DSN)
	default:
		return nil, errors.Errorf("unsupported driver: %s", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevels[options.LogLevel]),
	})
	if err != nil {
		return nil, errors.Wrap(err, "gorm.Open failed")
	}
	return NewGorm(db, options.Driver), nil
}

func NewGorm(db *gorm.DB, driver string) *Gorm {
	return &Gorm{db: db, driver: driver}
}

// Execute 在同一个连接上执行语句并读取自增 id
func (g *Gorm) Execute(ctx context.Context, stmt string, args map[string]any) (int64, error) {
	query, values, err := Rewrite(stmt, args, Named)
	if err != nil {
		return 0, err
	}

	var id int64
	err = g.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		if err := tx.Exec(query, values...).Error; err != nil {
			return errors.Wrapf(err, "exec %q failed", query)
		}
		var lastID sql.NullInt64
		if err := tx.Raw(g.lastInsertIDQuery()).Scan(&lastID).Error; err != nil {
			return errors.Wrap(err, "select last insert id failed")
		}
		id = lastID.Int64
		return nil
	})
	return id, err
}

func (g *Gorm) lastInsertIDQuery() string {
	if g.driver == "sqlite" {
		return "SELECT last_insert_rowid()"
	}
	return "SELECT LAST_INSERT_ID()"
}

func (g *Gorm) Query(ctx context.Context, stmt string, args map[string]any) ([]Row, error) {
	query, values, err := Rewrite(stmt, args, Named)
	if err != nil {
		return nil, err
	}

	rows, err := g.db.WithContext(ctx).Raw(query, values...).Rows()
	if err != nil {
		return nil, errors.Wrapf(err, "query %q failed", query)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (g *Gorm) Close() error {
	db, err := g.db.DB()
	if err != nil {
		return errors.Wrap(err, "gorm.DB failed")
	}
	return db.Close()
}
