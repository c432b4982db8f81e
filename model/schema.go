// Package model 把字段声明注册成模型，提供模型实例以及惰性查询的 Manager
//
//	Folder := model.MustRegister("Folder", model.Meta{DB: db},
//		model.Attr("id", field.NewIntField(field.PrimaryKey())),
//		model.Attr("name", field.NewStringField(field.NotNull(), field.MaxLength(64))),
//	)
//	folder, err := Folder.Objects().Get(ctx, map[string]any{"name": "a"})
package model

import (
	"github.com/go-openapi/inflect"
	"github.com/hatlonely/dataobj/database"
	"github.com/hatlonely/dataobj/field"
	"github.com/hatlonely/dataobj/log"
	"github.com/hatlonely/dataobj/log/logger"
	"github.com/hatlonely/dataobj/sqlargs"
	"github.com/pkg/errors"
)

type Meta struct {
	// Table 为空时由模型名转换，Folder -> folder，FolderItem -> folder_item
	Table string

	// DB 数据库实例、返回数据库的构造函数或者 *ref.TypeOptions 配置
	DB any

	// Logger 为空时使用 log.Default()
	Logger logger.Logger

	RandomSalt bool
}

type Attribute struct {
	Name  string
	Field *field.Field
}

func Attr(name string, f *field.Field) Attribute {
	return Attribute{Name: name, Field: f}
}

// Schema 注册完成后不再修改
type Schema struct {
	name    string
	table   string
	db      database.DB
	logger  logger.Logger
	options []sqlargs.Option

	all      []*field.Field
	fields   []*field.Field
	byName   map[string]*field.Field
	byColumn map[string]*field.Field
	primary  *field.Field

	objects *Manager
}

func Register(name string, meta Meta, attrs ...Attribute) (*Schema, error) {
	table := meta.Table
	if table == "" {
		table = TableName(name)
	}
	if table == "" {
		return nil, errors.Wrapf(ErrMissingTableName, "model %q", name)
	}

	l := meta.Logger
	if l == nil {
		l = log.Default()
	}

	s := &Schema{
		name:     name,
		table:    table,
		logger:   l.With("model", name),
		byName:   map[string]*field.Field{},
		byColumn: map[string]*field.Field{},
	}
	if meta.RandomSalt {
		s.options = append(s.options, sqlargs.WithRandomSalt())
	}

	for _, attr := range attrs {
		if attr.Field == nil {
			return nil, errors.Errorf("field %q of model %q is nil", attr.Name, name)
		}
		if _, ok := s.byName[attr.Name]; ok {
			return nil, errors.Wrapf(ErrDuplicateField, "field %q in model %q", attr.Name, name)
		}
		if err := attr.Field.Bind(attr.Name); err != nil {
			return nil, errors.WithMessagef(err, "bind field %q of model %q failed", attr.Name, name)
		}
		f := attr.Field
		if _, ok := s.byColumn[f.Column()]; ok {
			return nil, errors.Wrapf(ErrDuplicateColumn, "column %q in model %q", f.Column(), name)
		}
		s.logger.Debug("found mapping field", "field", f.String())

		s.all = append(s.all, f)
		s.byName[f.Name()] = f
		s.byColumn[f.Column()] = f

		if !f.PrimaryKey() {
			s.fields = append(s.fields, f)
			continue
		}
		if s.primary != nil {
			return nil, errors.Wrapf(ErrDuplicatePrimaryKey, "%q and %q in model %q", s.primary.Name(), f.Name(), name)
		}
		s.logger.Debug("found primary key field", "field", f.String())
		s.primary = f
	}
	if s.primary == nil {
		return nil, errors.Wrapf(ErrMissingPrimaryKey, "model %q", name)
	}

	db, err := database.Resolve(meta.DB)
	if err != nil {
		return nil, errors.WithMessagef(err, "resolve database of model %q failed", name)
	}
	s.db = db

	s.objects = newManager(s)
	return s, nil
}

func MustRegister(name string, meta Meta, attrs ...Attribute) *Schema {
	s, err := Register(name, meta, attrs...)
	if err != nil {
		panic(err)
	}
	return s
}

// TableName FolderItem -> folder_item
func TableName(name string) string {
	return inflect.Underscore(name)
}

func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) Table() string {
	return s.table
}

func (s *Schema) DB() database.DB {
	return s.db
}

// Fields 按声明顺序返回所有字段，包括主键
func (s *Schema) Fields() []*field.Field {
	return append([]*field.Field(nil), s.all...)
}

func (s *Schema) Field(name string) (*field.Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

func (s *Schema) FieldByColumn(column string) (*field.Field, bool) {
	f, ok := s.byColumn[column]
	return f, ok
}

func (s *Schema) PrimaryKey() *field.Field {
	return s.primary
}

func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Objects 每次返回原型 Manager 的新分支，结果缓存不在调用之间共享
func (s *Schema) Objects() *Manager {
	return s.objects.branch(s.objects.plan)
}

func (s *Schema) lookup(name string) (*field.Field, error) {
	f, ok := s.byName[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownField, "field %q is not defined in model %q", name, s.name)
	}
	return f, nil
}

// New 未提供或者为 nil 的值使用字段默认值
func (s *Schema) New(values map[string]any) (*Instance, error) {
	for name := range values {
		if _, err := s.lookup(name); err != nil {
			return nil, err
		}
	}

	inst := &Instance{schema: s, values: make(map[string]any, len(s.all))}
	for _, f := range s.all {
		v := values[f.Name()]
		if v == nil {
			v = f.Default()
		}
		if err := inst.set(f, v); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (s *Schema) MustNew(values map[string]any) *Instance {
	inst, err := s.New(values)
	if err != nil {
		panic(err)
	}
	return inst
}

// convertRow 按列名转换成属性名，值经过 ValidateOutput，未知的列被忽略
func (s *Schema) convertRow(row database.Row) (database.Row, error) {
	result := make(database.Row, len(row))
	for column, value := range row {
		f, ok := s.byColumn[column]
		if !ok {
			s.logger.Info("ignore column", "column", column, "value", value)
			continue
		}
		v, err := f.ValidateOutput(value)
		if err != nil {
			return nil, errors.WithMessagef(err, "convert column %q of model %q failed", column, s.name)
		}
		result[f.Name()] = v
	}
	return result, nil
}

// FromRow 从数据库返回的行创建实例，并记录快照
func (s *Schema) FromRow(row database.Row) (*Instance, error) {
	values, err := s.convertRow(row)
	if err != nil {
		return nil, err
	}
	inst, err := s.New(values)
	if err != nil {
		return nil, err
	}
	inst.snapshot = inst.clone()
	return inst, nil
}
