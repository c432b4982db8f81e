package sqlargs

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func fixedSalt(string, Clause) string {
	return "s"
}

func TestBuild(t *testing.T) {
	Convey("Build", t, func() {
		Convey("INSERT 列按名字排序", func() {
			sql, args, err := Build("folder", Clauses{Insert: map[string]any{"size": 5, "name": "a"}})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "INSERT INTO folder (name, size) VALUES (%(name)s, %(size)s)")
			So(args, ShouldResemble, map[string]any{"name": "a", "size": 5})
		})

		Convey("SELECT", func() {
			sql, args, err := Build("folder", Clauses{Select: nil})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT * FROM folder")
			So(args, ShouldBeEmpty)

			sql, _, err = Build("folder", Clauses{Select: "name, id"})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT id, name FROM folder")
		})

		Convey("子句顺序固定", func() {
			sql, args, err := Build("folder", Clauses{
				Limit:             []int{10, 20},
				DescendingOrderBy: []string{"size", "id"},
				Having:            map[string]any{"cnt__gt": 1},
				GroupBy:           []string{"name"},
				Where:             map[string]any{"size__lt": 100, "name__startswith": "a"},
				Select:            []string{"name"},
			}, WithSalt(fixedSalt))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT name FROM folder"+
				" WHERE name LIKE %(cond_name__startswith_s)s AND size < %(cond_size__lt_s)s"+
				" GROUP BY name"+
				" HAVING cnt > %(cond_cnt__gt_s)s"+
				" ORDER BY size DESC, id DESC"+
				" LIMIT %(limit_offset_s)s, %(limit_count_s)s")
			So(args, ShouldResemble, map[string]any{
				"cond_name__startswith_s": "a%",
				"cond_size__lt_s":         100,
				"cond_cnt__gt_s":          1,
				"limit_offset_s":          int64(20),
				"limit_count_s":           int64(10),
			})
		})

		Convey("UPDATE", func() {
			sql, args, err := Build("folder", Clauses{
				Update: map[string]any{"size": 6, "name": "b"},
				Where:  map[string]any{"id": 1},
			}, WithSalt(fixedSalt))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "UPDATE folder SET name = %(name)s, size = %(size)s WHERE id = %(cond_id_s)s")
			So(args, ShouldResemble, map[string]any{"name": "b", "size": 6, "cond_id_s": 1})
		})

		Convey("DELETE 不强制 WHERE", func() {
			sql, _, err := Build("folder", Clauses{Delete: true})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "DELETE FROM folder")
		})

		Convey("ORDER BY 保持给定顺序", func() {
			sql, _, err := Build("folder", Clauses{Select: nil, AscendingOrderBy: []string{"size", "id"}})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT * FROM folder ORDER BY size, id")
		})

		Convey("空子句不输出", func() {
			sql, args, err := Build("folder", Clauses{
				Select: nil, Where: map[string]any{}, GroupBy: nil, AscendingOrderBy: []string{},
			})
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT * FROM folder")
			So(args, ShouldBeEmpty)
		})

		Convey("非法 limit 被忽略", func() {
			for _, limit := range []any{"abc", []any{"x", 1}, []int{}, []int{1, 2, 3}, -1} {
				sql, args, err := Build("folder", Clauses{Select: nil, Limit: limit})
				So(err, ShouldBeNil)
				So(sql, ShouldEqual, "SELECT * FROM folder")
				So(args, ShouldBeEmpty)
			}

			sql, args, err := Build("folder", Clauses{Select: nil, Limit: 5}, WithSalt(fixedSalt))
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "SELECT * FROM folder LIMIT %(limit_offset_s)s, %(limit_count_s)s")
			So(args, ShouldResemble, map[string]any{"limit_offset_s": int64(0), "limit_count_s": int64(5)})
		})

		Convey("未知子句和操作符", func() {
			_, _, err := Build("folder", Clauses{"join": "x"})
			So(errors.Is(err, ErrUnsupportedClause), ShouldBeTrue)

			_, _, err = Build("folder", Clauses{Select: nil, Where: map[string]any{"name__like": "a"}})
			So(errors.Is(err, ErrUnsupportedOperator), ShouldBeTrue)
		})

		Convey("相同输入得到相同文本", func() {
			clauses := Clauses{
				Select: nil,
				Where:  map[string]any{"a": 1, "b__gt": 2, "c__in": []int{1, 2}, "d__isnull": true},
				Limit:  []int{1},
			}
			sql1, args1, err := Build("t", clauses)
			So(err, ShouldBeNil)
			sql2, args2, err := Build("t", clauses)
			So(err, ShouldBeNil)
			So(sql1, ShouldEqual, sql2)
			So(args1, ShouldResemble, args2)
		})

		Convey("随机 salt", func() {
			clauses := Clauses{Select: nil, Where: map[string]any{"a": 1}}
			sql1, _, err := Build("t", clauses, WithRandomSalt())
			So(err, ShouldBeNil)
			sql2, _, err := Build("t", clauses, WithRandomSalt())
			So(err, ShouldBeNil)
			So(sql1, ShouldNotEqual, sql2)
		})

		Convey("WHERE 和 HAVING 中的同一字段参数名不冲突", func() {
			_, args, err := Build("t", Clauses{
				Select: nil,
				Where:  map[string]any{"a": 1},
				Having: map[string]any{"a": 2},
			})
			So(err, ShouldBeNil)
			So(len(args), ShouldEqual, 2)
		})
	})
}

func TestBuilder(t *testing.T) {
	Convey("Builder", t, func() {
		b := NewBuilder("folder", WithSalt(fixedSalt)).
			Select("name", "id").
			Where(map[string]any{"name__contains": "a"}).
			OrderBy("id").
			Limit(10, 5)
		sql, args, err := b.Build()
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, "SELECT id, name FROM folder WHERE name LIKE %(cond_name__contains_s)s ORDER BY id LIMIT %(limit_offset_s)s, %(limit_count_s)s")
		So(args, ShouldResemble, map[string]any{"cond_name__contains_s": "%a%", "limit_offset_s": int64(5), "limit_count_s": int64(10)})
		So(b.String(), ShouldContainSubstring, "SELECT id, name FROM folder")

		sql, _, err = NewBuilder("folder").Delete().Where(map[string]any{"id": 1}).Build()
		So(err, ShouldBeNil)
		So(sql, ShouldStartWith, "DELETE FROM folder WHERE id = %(cond_id_")
	})
}
