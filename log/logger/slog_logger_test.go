package logger

import (
	"bytes"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSLogWithOptions(t *testing.T) {
	Convey("测试 NewSLogWithOptions", t, func() {
		Convey("options 为 nil", func() {
			_, err := NewSLogWithOptions(nil)
			So(err, ShouldNotBeNil)
		})

		Convey("默认输出到控制台", func() {
			l, err := NewSLogWithOptions(&SLogOptions{})
			So(err, ShouldBeNil)
			So(l, ShouldNotBeNil)
		})

		Convey("非法的级别", func() {
			_, err := NewSLogWithOptions(&SLogOptions{Level: "fatal"})
			So(err, ShouldNotBeNil)
		})

		Convey("非法的格式", func() {
			_, err := NewSLogWithOptions(&SLogOptions{Format: "xml"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseLevel(t *testing.T) {
	Convey("测试 ParseLevel", t, func() {
		for level, expected := range map[string]slog.Level{
			"debug":   slog.LevelDebug,
			"INFO":    slog.LevelInfo,
			"":        slog.LevelInfo,
			"warning": slog.LevelWarn,
			"error":   slog.LevelError,
		} {
			l, err := ParseLevel(level)
			So(err, ShouldBeNil)
			So(l, ShouldEqual, expected)
		}
	})
}

func TestSLog(t *testing.T) {
	Convey("测试 SLog 输出", t, func() {
		var buf bytes.Buffer
		l := NewSLog(&buf, slog.LevelInfo)

		l.Debug("hidden")
		So(buf.String(), ShouldBeEmpty)

		l.With("model", "Folder").WithGroup("sql").Info("execute", "table", "folder")
		So(buf.String(), ShouldContainSubstring, "model=Folder")
		So(buf.String(), ShouldContainSubstring, "sql.table=folder")
	})
}
