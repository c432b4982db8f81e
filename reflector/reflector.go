// Package reflector 读取数据库的表结构，生成注册模型的 Go 代码
package reflector

import (
	"bytes"
	"context"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"github.com/hatlonely/dataobj/database"
	"github.com/hatlonely/dataobj/log"
	"github.com/hatlonely/dataobj/log/logger"
	"github.com/hatlonely/dataobj/validator"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const (
	modelPkg = "github.com/hatlonely/dataobj/model"
	fieldPkg = "github.com/hatlonely/dataobj/field"
)

var (
	ErrUnsupportedType = errors.New("unsupported column type")
	ErrInvalidTable    = errors.New("invalid table name")
)

var tableRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// MySQL 列类型到字段类型
var mysqlKinds = map[string]validator.Kind{
	"tinyint":    validator.KindInt,
	"smallint":   validator.KindInt,
	"mediumint":  validator.KindInt,
	"int":        validator.KindInt,
	"integer":    validator.KindInt,
	"bigint":     validator.KindInt,
	"bit":        validator.KindInt,
	"year":       validator.KindInt,
	"float":      validator.KindFloat,
	"double":     validator.KindFloat,
	"real":       validator.KindFloat,
	"decimal":    validator.KindDecimal,
	"numeric":    validator.KindDecimal,
	"char":       validator.KindString,
	"varchar":    validator.KindString,
	"tinytext":   validator.KindString,
	"text":       validator.KindString,
	"mediumtext": validator.KindString,
	"longtext":   validator.KindString,
	"enum":       validator.KindString,
	"set":        validator.KindString,
	"binary":     validator.KindBytes,
	"varbinary":  validator.KindBytes,
	"tinyblob":   validator.KindBytes,
	"blob":       validator.KindBytes,
	"mediumblob": validator.KindBytes,
	"longblob":   validator.KindBytes,
	"date":       validator.KindDate,
	"datetime":   validator.KindDatetime,
	"time":       validator.KindTime,
	"timestamp":  validator.KindTimestamp,
	"json":       validator.KindDict,
}

var constructors = map[validator.Kind]string{
	validator.KindInt:       "NewIntField",
	validator.KindFloat:     "NewFloatField",
	validator.KindDecimal:   "NewDecimalField",
	validator.KindString:    "NewStringField",
	validator.KindBytes:     "NewBytesField",
	validator.KindDate:      "NewDateField",
	validator.KindDatetime:  "NewDatetimeField",
	validator.KindTime:      "NewTimeField",
	validator.KindTimestamp: "NewTimestampField",
	validator.KindBool:      "NewBoolField",
	validator.KindList:      "NewListField",
	validator.KindDict:      "NewDictField",
	validator.KindObject:    "NewObjectField",
}

type Options struct {
	// Package 生成代码的包名
	Package string `cfg:"package" def:"models"`
	// DB 生成代码中引用的数据库变量名
	DB string `cfg:"db" def:"DB"`
	// Fields 自定义属性名，属性名 -> 列名，未指定的列使用列名作为属性名
	Fields map[string]string `cfg:"fields"`
}

// Column DESC 返回的一行
type Column struct {
	Name          string
	Type          string
	Size          int
	Nullable      bool
	Primary       bool
	AutoIncrement bool
	Default       *string
}

type Attribute struct {
	Name   string
	Kind   validator.Kind
	Column Column
}

type Model struct {
	Name       string
	Table      string
	Attributes []Attribute
}

type MySQLTableReflector struct {
	db      database.DB
	options *Options
	logger  logger.Logger
}

func NewMySQLTableReflector(db database.DB, options *Options) *MySQLTableReflector {
	if options == nil {
		options = &Options{}
	}
	if options.Package == "" {
		options.Package = "models"
	}
	if options.DB == "" {
		options.DB = "DB"
	}
	return &MySQLTableReflector{
		db:      db,
		options: options,
		logger:  log.Default().With("component", "reflector"),
	}
}

func (r *MySQLTableReflector) SetLogger(l logger.Logger) {
	r.logger = l
}

// Describe 执行 DESC 读取表的列
func (r *MySQLTableReflector) Describe(ctx context.Context, table string) ([]Column, error) {
	if !tableRegexp.MatchString(table) {
		return nil, errors.Wrapf(ErrInvalidTable, "%q", table)
	}
	quoted := "`" + strings.ReplaceAll(table, ".", "`.`") + "`"

	rows, err := r.db.Query(ctx, "DESC "+quoted, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "desc table %s failed", table)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("table %s has no column", table)
	}

	columns := make([]Column, 0, len(rows))
	for _, row := range rows {
		c, err := parseColumn(row)
		if err != nil {
			return nil, errors.WithMessagef(err, "table %s", table)
		}
		columns = append(columns, c)
	}
	return columns, nil
}

func parseColumn(row database.Row) (Column, error) {
	var c Column
	c.Name = cast.ToString(row["Field"])
	if c.Name == "" {
		return c, errors.New("column without name")
	}

	// varchar(64)、int(11) unsigned、decimal(10,2)
	typ := strings.ToLower(strings.TrimSpace(cast.ToString(row["Type"])))
	base, rest, hasSize := strings.Cut(typ, "(")
	parts := strings.Fields(base)
	if len(parts) == 0 {
		return c, errors.Errorf("column %s without type", c.Name)
	}
	c.Type = parts[0]
	if hasSize {
		size, _, _ := strings.Cut(rest, ")")
		if n, err := strconv.Atoi(size); err == nil {
			c.Size = n
		}
	}

	c.Nullable = strings.EqualFold(cast.ToString(row["Null"]), "YES")
	c.Primary = strings.EqualFold(cast.ToString(row["Key"]), "PRI")
	c.AutoIncrement = strings.Contains(strings.ToLower(cast.ToString(row["Extra"])), "auto_increment")
	if v, ok := row["Default"]; ok && v != nil {
		s := cast.ToString(v)
		c.Default = &s
	}
	return c, nil
}

// Reflect name 为空时由表名转换，folder_item -> FolderItem
func (r *MySQLTableReflector) Reflect(ctx context.Context, table string, name string) (*Model, error) {
	columns, err := r.Describe(ctx, table)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = inflect.Camelize(table[strings.LastIndex(table, ".")+1:])
	}

	names := map[string]string{}
	for attr, column := range r.options.Fields {
		names[column] = attr
	}

	m := &Model{Name: name, Table: table}
	for _, c := range columns {
		kind, ok := mysqlKinds[c.Type]
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedType, "column %s.%s type %q", table, c.Name, c.Type)
		}
		attr := c.Name
		if n, ok := names[c.Name]; ok {
			attr = n
		}
		r.logger.DebugContext(ctx, "found column", "table", table, "column", c.Name, "type", c.Type, "kind", kind)
		m.Attributes = append(m.Attributes, Attribute{Name: attr, Kind: kind, Column: c})
	}
	return m, nil
}

// Source 反射多张表并生成一个 Go 源文件
func (r *MySQLTableReflector) Source(ctx context.Context, tables map[string]string) (string, error) {
	var models []*Model
	for _, table := range slices.Sorted(maps.Keys(tables)) {
		m, err := r.Reflect(ctx, table, tables[table])
		if err != nil {
			return "", err
		}
		models = append(models, m)
	}
	return Render(r.options.Package, r.options.DB, models...)
}

// Render 每个模型生成一个 model.MustRegister 变量声明
func Render(pkg string, dbVar string, models ...*Model) (string, error) {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by dataobj reflect. DO NOT EDIT.")
	f.ImportName(modelPkg, "model")
	f.ImportName(fieldPkg, "field")

	for _, m := range models {
		items := []jen.Code{
			jen.Lit(m.Name),
			jen.Qual(modelPkg, "Meta").Values(jen.Dict{
				jen.Id("Table"): jen.Lit(m.Table),
				jen.Id("DB"):    jen.Id(dbVar),
			}),
		}
		for _, attr := range m.Attributes {
			items = append(items, jen.Qual(modelPkg, "Attr").Call(
				jen.Lit(attr.Name),
				jen.Qual(fieldPkg, constructors[attr.Kind]).Call(fieldOptions(attr)...),
			))
		}

		f.Commentf("%s table %s", m.Name, m.Table)
		f.Var().Id(m.Name).Op("=").Qual(modelPkg, "MustRegister").Custom(jen.Options{
			Open:      "(",
			Close:     ")",
			Separator: ",",
			Multi:     true,
		}, items...)
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return "", errors.Wrap(err, "render source failed")
	}
	return buf.String(), nil
}

func fieldOptions(attr Attribute) []jen.Code {
	c := attr.Column
	var opts []jen.Code
	if c.Primary {
		opts = append(opts, jen.Qual(fieldPkg, "PrimaryKey").Call())
		if !c.AutoIncrement {
			opts = append(opts, jen.Qual(fieldPkg, "AutoIncrement").Call(jen.False()))
		}
	} else if !c.Nullable {
		opts = append(opts, jen.Qual(fieldPkg, "NotNull").Call())
	}
	if attr.Kind == validator.KindString && c.Size > 0 {
		opts = append(opts, jen.Qual(fieldPkg, "MaxLength").Call(jen.Lit(c.Size)))
	}
	if attr.Name != c.Name {
		opts = append(opts, jen.Qual(fieldPkg, "Column").Call(jen.Lit(c.Name)))
	}
	if lit := defaultLiteral(attr); lit != nil {
		opts = append(opts, jen.Qual(fieldPkg, "Default").Call(lit))
	}
	return opts
}

// defaultLiteral 数据库表达式形式的默认值不生成，由数据库填充
func defaultLiteral(attr Attribute) jen.Code {
	if attr.Column.Default == nil {
		return nil
	}
	v := *attr.Column.Default
	upper := strings.ToUpper(v)
	if upper == "NULL" || strings.HasPrefix(upper, "CURRENT_TIMESTAMP") || strings.HasSuffix(v, ")") {
		return nil
	}
	switch attr.Kind {
	case validator.KindInt:
		if n, err := strconv.Atoi(v); err == nil {
			return jen.Lit(n)
		}
	case validator.KindFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return jen.Lit(f)
		}
	}
	return jen.Lit(v)
}
