package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hatlonely/dataobj/cfg"
	"github.com/hatlonely/dataobj/ref"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

func init() {
	ref.MustRegisterT[SQL](NewSQLWithOptions)
}

type SQLOptions struct {
	Driver          string        `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3 pgx postgres"`
	DSN             string        `cfg:"dsn"`
	Host            string        `cfg:"host" def:"localhost"`
	Port            string        `cfg:"port" def:"3306"`
	Database        string        `cfg:"database"`
	Username        string        `cfg:"username"`
	Password        string        `cfg:"password"`
	Charset         string        `cfg:"charset" def:"utf8mb4"`
	MaxConns        int           `cfg:"maxConns" def:"10"`
	MaxIdle         int           `cfg:"maxIdle" def:"5"`
	ConnMaxLifetime time.Duration `cfg:"connMaxLifetime" def:"1h"`
	PingTimeout     time.Duration `cfg:"pingTimeout" def:"3s"`
}

// SQL 基于 database/sql 的数据库协作者
type SQL struct {
	db     *sql.DB
	driver string
	style  Style
}

func NewSQLWithOptions(options *SQLOptions) (*SQL, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if err := cfg.SetDefaults(options); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}

	dsn := options.DSN
	if dsn == "" {
		switch options.Driver {
		case "mysql":
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
				options.Username, options.Password, options.Host, options.Port, options.Database, options.Charset)
		case "sqlite3":
			dsn = options.Database
		case "pgx", "postgres":
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
				options.Username, options.Password, options.Host, options.Port, options.Database)
		default:
			return nil, errors.Errorf("unsupported driver: %s", options.Driver)
		}
	}

	driver := options.Driver
	if driver == "postgres" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open %s failed", driver)
	}

	db.SetMaxOpenConns(options.MaxConns)
	db.SetMaxIdleConns(options.MaxIdle)
	db.SetConnMaxLifetime(options.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), options.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db.Ping failed")
	}

	return NewSQL(db, driver), nil
}

// NewSQL 使用已经打开的连接
func NewSQL(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver, style: StyleOf(driver)}
}

func (s *SQL) Execute(ctx context.Context, stmt string, args map[string]any) (int64, error) {
	query, values, err := Rewrite(stmt, args, s.style)
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, errors.Wrapf(err, "exec %q failed", query)
	}
	// postgres 不支持 LastInsertId
	id, err := result.LastInsertId()
	if err != nil {
		return 0, nil
	}
	return id, nil
}

func (s *SQL) Query(ctx context.Context, stmt string, args map[string]any) ([]Row, error) {
	query, values, err := Rewrite(stmt, args, s.style)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %q failed", query)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (s *SQL) Driver() string {
	return s.driver
}

func (s *SQL) Close() error {
	return s.db.Close()
}
