package database

import (
	"context"
	"testing"

	"github.com/hatlonely/dataobj/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestObservable(t *testing.T) {
	Convey("Observable", t, func() {
		ctx := context.Background()
		inner := &recordDB{id: 9, rows: []Row{{"id": int64(1)}, {"id": int64(2)}}}

		obs, err := NewObservable(inner, &ObservableOptions{
			Name:          "observable_test",
			EnableMetrics: true,
			EnableLogging: true,
			EnableTracing: true,
			Logger: &ref.TypeOptions{
				Namespace: "github.com/hatlonely/dataobj/log/logger",
				Type:      "SLog",
				Options:   map[string]any{"level": "error"},
			},
		})
		So(err, ShouldBeNil)

		Convey("透传调用并记录指标", func() {
			before := testutil.ToFloat64(obs.metrics.operationCounter.WithLabelValues("query", "success"))

			rows, err := obs.Query(ctx, "SELECT * FROM folder", nil)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(inner.queries, ShouldHaveLength, 1)

			id, err := obs.Execute(ctx, "DELETE FROM folder", nil)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 9)

			So(testutil.ToFloat64(obs.metrics.operationCounter.WithLabelValues("query", "success")), ShouldEqual, before+1)
		})

		Convey("错误原样返回", func() {
			inner.err = errors.New("boom")
			before := testutil.ToFloat64(obs.metrics.operationCounter.WithLabelValues("execute", "error"))

			_, err := obs.Execute(ctx, "DELETE FROM folder", nil)
			So(err, ShouldEqual, inner.err)
			So(testutil.ToFloat64(obs.metrics.operationCounter.WithLabelValues("execute", "error")), ShouldEqual, before+1)
		})

		Convey("重复创建同名指标", func() {
			_, err := NewObservable(inner, &ObservableOptions{Name: "observable_test", EnableMetrics: true})
			So(err, ShouldBeNil)
		})

		Convey("Close 关闭底层数据库", func() {
			So(obs.Close(), ShouldBeNil)
			So(inner.closed, ShouldBeTrue)
		})
	})
}
