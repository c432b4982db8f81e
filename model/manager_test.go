package model

import (
	"context"
	"testing"

	"github.com/hatlonely/dataobj/database"
	"github.com/hatlonely/dataobj/sqlargs"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func whereParam(key string) string {
	return "cond_" + key + "_" + sqlargs.DeterministicSalt("folder", sqlargs.Where)
}

func folderRows() []database.Row {
	return []database.Row{
		{"id": int64(1), "name": "a", "size": int64(5), "tags": "[1,2]", "hidden": int64(0)},
		{"id": int64(2), "name": "b", "size": int64(7), "tags": nil, "hidden": int64(1)},
	}
}

func TestManagerPlan(t *testing.T) {
	Convey("Manager 计划", t, func() {
		db := &recordDB{rows: folderRows()}
		s := newFolder(db)
		m := s.Objects()

		Convey("语句", func() {
			stmt, args, err := m.Filter(map[string]any{"size__gt": 1}).
				OrderBy([]string{"size"}, true).
				Limit(10, 20).
				Statement()
			So(err, ShouldBeNil)
			limitSalt := sqlargs.DeterministicSalt("folder", sqlargs.Limit)
			So(stmt, ShouldEqual, "SELECT hidden, id, name, size, tags FROM folder"+
				" WHERE size > %("+whereParam("size__gt")+")s"+
				" ORDER BY size DESC"+
				" LIMIT %(limit_offset_"+limitSalt+")s, %(limit_count_"+limitSalt+")s")
			So(args, ShouldResemble, map[string]any{
				whereParam("size__gt"):       1,
				"limit_offset_" + limitSalt: int64(20),
				"limit_count_" + limitSalt:  int64(10),
			})
		})

		Convey("没有操作符等同于 eq", func() {
			s1, a1, err := m.Filter(map[string]any{"name": "a"}).Statement()
			So(err, ShouldBeNil)
			s2, a2, err := m.Filter(map[string]any{"name__eq": "a"}).Statement()
			So(err, ShouldBeNil)
			So(s1, ShouldEqual, s2)
			So(a1, ShouldResemble, a2)
		})

		Convey("属性名转换成列名", func() {
			s := MustRegister("Item", Meta{DB: db}, Attr("id", newPK()), Attr("name", newColumnField("item_name")))
			stmt, args, err := s.Objects().FilterWithFieldNames([]string{"name"}, map[string]any{"name__startswith": "a"}).Statement()
			So(err, ShouldBeNil)
			param := "cond_item_name__startswith_" + sqlargs.DeterministicSalt("item", sqlargs.Where)
			So(stmt, ShouldEqual, "SELECT item_name FROM item WHERE item_name LIKE %("+param+")s")
			So(args, ShouldResemble, map[string]any{param: "a%"})
		})

		Convey("分支互不影响", func() {
			a := m.Filter(map[string]any{"name": "a"})
			b := m.Filter(map[string]any{"size__gt": 2})
			So(a.Plan().Conditions(), ShouldResemble, map[string]any{"name": "a"})
			So(b.Plan().Conditions(), ShouldResemble, map[string]any{"size__gt": 2})
			So(m.Plan().Conditions(), ShouldBeNil)

			n, err := a.Len(context.Background())
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			So(db.queries, ShouldHaveLength, 1)
			So(b.cache, ShouldBeNil)
			So(m.cache, ShouldBeNil)

			_, err = b.Len(context.Background())
			So(err, ShouldBeNil)
			So(db.queries, ShouldHaveLength, 2)

			// 同一个 Manager 只查询一次
			_, _ = a.First(context.Background())
			_, _ = a.Last(context.Background())
			So(db.queries, ShouldHaveLength, 2)

			// 分支后重新查询
			_, _ = a.Limit(1).First(context.Background())
			So(db.queries, ShouldHaveLength, 3)
		})

		Convey("Objects 每次都重新查询", func() {
			ctx := context.Background()
			db.rows = folderRows()
			n1, err := s.Objects().Len(ctx)
			So(err, ShouldBeNil)
			So(n1, ShouldEqual, 2)

			db.rows = append(db.rows, database.Row{"id": int64(3), "name": "c", "size": int64(1), "tags": nil, "hidden": nil})
			n2, err := s.Objects().Len(ctx)
			So(err, ShouldBeNil)
			So(n2, ShouldEqual, 3)
			So(db.queries, ShouldHaveLength, 2)

			first, err := s.Objects().First(ctx)
			So(err, ShouldBeNil)
			So(first, ShouldNotBeNil)
			So(db.queries, ShouldHaveLength, 3)

			_, err = s.objects.Len(ctx)
			So(err, ShouldBeNil)
			So(s.objects.cache, ShouldBeNil)
		})

		Convey("修改传入的条件不影响计划", func() {
			conds := map[string]any{"name": "a"}
			a := m.Filter(conds)
			conds["size"] = 1
			So(a.Plan().Conditions(), ShouldResemble, map[string]any{"name": "a"})
		})

		Convey("未知字段在访问数据库之前失败", func() {
			ctx := context.Background()
			_, err := m.Filter(map[string]any{"nonexistent__eq": 1}).Len(ctx)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "nonexistent")
			So(err.Error(), ShouldContainSubstring, "Folder")

			_, err = m.All().OrderBy([]string{"nonexistent"}, false).First(ctx)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			_, err = m.FilterWithFieldNames([]string{"nonexistent"}, nil).Rows(ctx)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			_, err = m.Filter(map[string]any{"name__like": "a"}).First(ctx)
			So(errors.Is(err, sqlargs.ErrUnsupportedOperator), ShouldBeTrue)

			So(db.queries, ShouldBeEmpty)
			So(db.executes, ShouldBeEmpty)
		})
	})
}

func TestManagerMaterialize(t *testing.T) {
	Convey("Manager 物化", t, func() {
		ctx := context.Background()
		db := &recordDB{rows: folderRows()}
		s := newFolder(db)
		m := s.Objects().All()

		Convey("实例", func() {
			first, err := m.First(ctx)
			So(err, ShouldBeNil)
			name, _ := first.Get("name")
			So(name, ShouldEqual, "a")
			tags, _ := first.Get("tags")
			So(tags, ShouldResemble, []any{int64(1), int64(2)})

			last, err := m.Last(ctx)
			So(err, ShouldBeNil)
			hidden, _ := last.Get("hidden")
			So(hidden, ShouldEqual, true)

			inst, err := m.Index(ctx, -1)
			So(err, ShouldBeNil)
			So(inst, ShouldEqual, last)

			_, err = m.Index(ctx, 2)
			So(errors.Is(err, ErrIndexOutOfRange), ShouldBeTrue)

			var ids []any
			for inst, err := range m.Iter(ctx) {
				So(err, ShouldBeNil)
				id, _ := inst.PrimaryKeyValue()
				ids = append(ids, id)
			}
			So(ids, ShouldResemble, []any{int64(1), int64(2)})
			So(db.queries, ShouldHaveLength, 1)
		})

		Convey("原始行", func() {
			raw := s.Objects().FilterWithFieldNames([]string{"name", "hidden"}, nil)
			db.rows = []database.Row{{"name": "a", "hidden": int64(1)}}

			rows, err := raw.Rows(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []database.Row{{"name": "a", "hidden": true}})

			_, err = raw.First(ctx)
			So(errors.Is(err, ErrRawManager), ShouldBeTrue)

			n, err := raw.Len(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(db.queries, ShouldHaveLength, 1)
		})

		Convey("没有结果", func() {
			db.rows = nil
			inst, err := s.Objects().Get(ctx, map[string]any{"id": 3})
			So(err, ShouldBeNil)
			So(inst, ShouldBeNil)
		})

		Convey("数据库错误", func() {
			db.err = errors.New("connection refused")
			_, err := m.First(ctx)
			So(errors.Cause(err), ShouldEqual, db.err)

			var got error
			for _, err := range m.Iter(ctx) {
				got = err
			}
			So(errors.Cause(got), ShouldEqual, db.err)
		})
	})
}

func TestManagerMutation(t *testing.T) {
	Convey("Manager 写入", t, func() {
		ctx := context.Background()
		db := &recordDB{id: 7}
		s := newFolder(db)

		Convey("Dump 不写入自增主键，写入后赋值 id", func() {
			inst := s.MustNew(map[string]any{"name": "a", "size": 5})
			So(inst.Dump(ctx), ShouldBeNil)
			So(db.executes, ShouldHaveLength, 1)
			So(db.executes[0].stmt, ShouldEqual, "INSERT INTO folder (hidden, name, size, tags) VALUES (%(hidden)s, %(name)s, %(size)s, %(tags)s)")
			So(db.executes[0].args, ShouldResemble, map[string]any{"hidden": nil, "name": "a", "size": int64(5), "tags": nil})

			id, _ := inst.PrimaryKeyValue()
			So(id, ShouldEqual, int64(7))

			// 写入后没有变化
			So(inst.Update(ctx, nil), ShouldBeNil)
			So(db.executes, ShouldHaveLength, 1)
		})

		Convey("非自增主键写入主键", func() {
			s := MustRegister("Tag", Meta{DB: db},
				Attr("code", newStringPK()),
				Attr("name", newColumnField("name")),
			)
			inst := s.MustNew(map[string]any{"code": "go", "name": "Go"})
			So(inst.Dump(ctx), ShouldBeNil)
			So(db.executes[0].stmt, ShouldEqual, "INSERT INTO tag (code, name) VALUES (%(code)s, %(name)s)")
			code, _ := inst.PrimaryKeyValue()
			So(code, ShouldEqual, "go")
		})

		Convey("加载后没有修改时 Update 不执行语句", func() {
			inst, err := s.FromRow(folderRows()[0])
			So(err, ShouldBeNil)
			So(s.Objects().Update(ctx, inst), ShouldBeNil)
			So(db.executes, ShouldBeEmpty)
		})

		Convey("Update 只写入变化的字段", func() {
			inst, err := s.FromRow(folderRows()[0])
			So(err, ShouldBeNil)
			So(inst.Update(ctx, map[string]any{"name": "c"}), ShouldBeNil)
			So(db.executes, ShouldHaveLength, 1)
			So(db.executes[0].stmt, ShouldEqual, "UPDATE folder SET name = %(name)s WHERE id = %("+whereParam("id__eq")+")s")
			So(db.executes[0].args, ShouldResemble, map[string]any{"name": "c", whereParam("id__eq"): int64(1)})

			// 快照已经刷新
			So(inst.Update(ctx, map[string]any{"name": "c"}), ShouldBeNil)
			So(db.executes, ShouldHaveLength, 1)
		})

		Convey("没有快照时写入所有字段", func() {
			inst := s.MustNew(map[string]any{"id": 1, "name": "a"})
			So(s.Objects().Update(ctx, inst), ShouldBeNil)
			So(db.executes[0].stmt, ShouldEqual, "UPDATE folder SET hidden = %(hidden)s, name = %(name)s, size = %(size)s, tags = %(tags)s WHERE id = %("+whereParam("id__eq")+")s")
		})

		Convey("Delete 按主键删除并清空实例", func() {
			inst, err := s.FromRow(folderRows()[1])
			So(err, ShouldBeNil)
			So(inst.Delete(ctx), ShouldBeNil)
			So(db.executes[0].stmt, ShouldEqual, "DELETE FROM folder WHERE id = %("+whereParam("id__eq")+")s")
			So(db.executes[0].args, ShouldResemble, map[string]any{whereParam("id__eq"): int64(2)})

			id, err := inst.PrimaryKeyValue()
			So(err, ShouldBeNil)
			So(id, ShouldBeNil)
		})

		Convey("没有主键值时不执行语句", func() {
			inst := s.MustNew(map[string]any{"name": "a"})
			So(errors.Is(s.Objects().Delete(ctx, inst), ErrMissingPrimaryKeyValue), ShouldBeTrue)
			So(errors.Is(s.Objects().Update(ctx, inst), ErrMissingPrimaryKeyValue), ShouldBeTrue)
			So(db.executes, ShouldBeEmpty)
		})

		Convey("其他模型的实例", func() {
			other := newFolder(db)
			inst := other.MustNew(map[string]any{"name": "a"})
			So(errors.Is(s.Objects().Dump(ctx, inst), ErrSchemaMismatch), ShouldBeTrue)
		})

		Convey("数据库错误原样返回", func() {
			db.err = errors.New("duplicate entry")
			inst := s.MustNew(map[string]any{"name": "a"})
			err := inst.Dump(ctx)
			So(errors.Cause(err), ShouldEqual, db.err)
			id, _ := inst.PrimaryKeyValue()
			So(id, ShouldBeNil)
		})
	})
}
