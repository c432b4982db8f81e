package field

import (
	"errors"
	"testing"
	"time"

	"github.com/hatlonely/dataobj/serializer"
	"github.com/hatlonely/dataobj/validator"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func bound(f *Field, name string) *Field {
	if err := f.Bind(name); err != nil {
		panic(err)
	}
	return f
}

func roundTrip(f *Field, value any) any {
	stored, err := f.ValidateInput(value)
	So(err, ShouldBeNil)
	exposed, err := f.ValidateOutput(stored)
	So(err, ShouldBeNil)
	return exposed
}

func TestFieldRoundTrip(t *testing.T) {
	Convey("每种字段写入再读出值不变", t, func() {
		Convey("int", func() {
			So(roundTrip(bound(NewIntField(), "size"), int64(5)), ShouldEqual, int64(5))
			So(roundTrip(bound(NewIntField(), "size"), "7"), ShouldEqual, int64(7))
			So(roundTrip(bound(NewIntField(), "zip"), "010"), ShouldEqual, int64(10))

			_, err := bound(NewIntField(), "zip").ValidateInput("0x10")
			So(errors.Is(err, validator.ErrType), ShouldBeTrue)
			_, err = bound(NewIntField(), "zip").ValidateOutput([]byte("0x1F"))
			So(errors.Is(err, validator.ErrType), ShouldBeTrue)
		})

		Convey("float", func() {
			So(roundTrip(bound(NewFloatField(), "score"), 1.5), ShouldEqual, 1.5)
		})

		Convey("decimal", func() {
			d := decimal.RequireFromString("12.34")
			v := roundTrip(bound(NewDecimalField(), "price"), d)
			So(v.(decimal.Decimal).Equal(d), ShouldBeTrue)
			v = roundTrip(bound(NewDecimalField(), "price"), "12.34")
			So(v.(decimal.Decimal).Equal(d), ShouldBeTrue)
		})

		Convey("string", func() {
			So(roundTrip(bound(NewStringField(), "name"), "文件夹"), ShouldEqual, "文件夹")
		})

		Convey("bytes", func() {
			So(roundTrip(bound(NewBytesField(), "data"), []byte{1, 2}), ShouldResemble, []byte{1, 2})
		})

		Convey("date", func() {
			tm := time.Date(2017, 5, 16, 10, 5, 0, 0, time.UTC)
			v := roundTrip(bound(NewDateField(), "day"), tm)
			So(v, ShouldEqual, time.Date(2017, 5, 16, 0, 0, 0, 0, time.UTC))
		})

		Convey("datetime", func() {
			tm := time.Date(2017, 5, 16, 10, 5, 0, 0, time.UTC)
			So(roundTrip(bound(NewDatetimeField(), "created_at"), tm), ShouldEqual, tm)
		})

		Convey("time", func() {
			f := bound(NewTimeField(), "start")
			d := 10*time.Hour + 5*time.Minute + 3*time.Second
			stored, err := f.ValidateInput(d)
			So(err, ShouldBeNil)
			So(stored, ShouldEqual, "10:05:03")
			So(roundTrip(f, d), ShouldEqual, d)
		})

		Convey("timestamp", func() {
			tm := time.Date(2017, 5, 16, 10, 5, 0, 0, time.UTC)
			So(roundTrip(bound(NewTimestampField(), "updated_at"), tm), ShouldEqual, tm)
		})

		Convey("bool", func() {
			f := bound(NewBoolField(), "active")
			stored, err := f.ValidateInput(true)
			So(err, ShouldBeNil)
			So(stored, ShouldEqual, int64(1))
			So(roundTrip(f, true), ShouldEqual, true)
			So(roundTrip(f, false), ShouldEqual, false)

			stored, err = f.ValidateInput(nil)
			So(err, ShouldBeNil)
			So(stored, ShouldBeNil)
			So(roundTrip(f, nil), ShouldBeNil)
		})

		Convey("list", func() {
			f := bound(NewListField(), "tags")
			stored, err := f.ValidateInput([]any{1, 2, 3})
			So(err, ShouldBeNil)
			So(stored, ShouldEqual, "[1,2,3]")
			So(roundTrip(f, []any{1, 2, 3}), ShouldResemble, []any{int64(1), int64(2), int64(3)})
		})

		Convey("dict", func() {
			f := bound(NewDictField(), "extra")
			So(roundTrip(f, map[string]any{"k": "v"}), ShouldResemble, map[string]any{"k": "v"})
		})

		Convey("object", func() {
			f := bound(NewObjectField(), "payload")
			stored, err := f.ValidateInput(map[string]any{"k": "v"})
			So(err, ShouldBeNil)
			So(stored, ShouldHaveSameTypeAs, "")
			So(roundTrip(f, map[string]any{"k": "v"}), ShouldResemble, map[string]any{"k": "v"})
		})

		Convey("自定义序列化", func() {
			f := bound(NewDictField(WithSerializer(serializer.Text(serializer.NewYAMLSerializer[any]()))), "extra")
			stored, err := f.ValidateInput(map[string]any{"k": "v"})
			So(err, ShouldBeNil)
			So(stored, ShouldEqual, "k: v\n")
			So(roundTrip(f, map[string]any{"k": "v"}), ShouldResemble, map[string]any{"k": "v"})
		})

		Convey("nil 原样通过", func() {
			So(roundTrip(bound(NewStringField(), "name"), nil), ShouldBeNil)
			So(roundTrip(bound(NewListField(), "tags"), nil), ShouldBeNil)
		})
	})
}

func TestFieldNotNull(t *testing.T) {
	Convey("非空校验", t, func() {
		Convey("未设置错误处理", func() {
			f := bound(NewStringField(NotNull()), "name")
			_, err := f.ValidateInput(nil)
			So(errors.Is(err, validator.ErrNotNull), ShouldBeTrue)
		})

		Convey("错误处理器替代结果", func() {
			var called bool
			var got any = "unset"
			f := bound(NewStringField(NotNull(), WithErrorHandler(func(v any) (any, error) {
				called, got = true, v
				return "default", nil
			})), "name")
			v, err := f.ValidateInput(nil)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "default")
			So(called, ShouldBeTrue)
			So(got, ShouldBeNil)
		})

		Convey("自增主键允许为空", func() {
			f := bound(NewIntField(PrimaryKey(), NotNull()), "id")
			v, err := f.ValidateInput(nil)
			So(err, ShouldBeNil)
			So(v, ShouldBeNil)
		})

		Convey("非自增主键不能为空", func() {
			f := bound(NewIntField(PrimaryKey(), AutoIncrement(false)), "id")
			_, err := f.ValidateInput(nil)
			So(errors.Is(err, validator.ErrNotNull), ShouldBeTrue)
		})
	})
}

func TestFieldChain(t *testing.T) {
	Convey("校验链", t, func() {
		Convey("类型转换失败", func() {
			f := bound(NewIntField(), "size")
			_, err := f.ValidateInput("abc")
			So(errors.Is(err, validator.ErrType), ShouldBeTrue)
		})

		Convey("长度", func() {
			f := bound(NewStringField(MinLength(2), MaxLength(3)), "name")
			_, err := f.ValidateInput("a")
			So(errors.Is(err, validator.ErrLength), ShouldBeTrue)
			v, err := f.ValidateInput("abc")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "abc")
		})

		Convey("枚举", func() {
			f := bound(NewIntField(Choices(1, 2)), "level")
			_, err := f.ValidateInput(3)
			So(errors.Is(err, validator.ErrChoice), ShouldBeTrue)
			v, err := f.ValidateInput(2)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(2))
		})

		Convey("自定义校验器在最后执行", func() {
			f := bound(NewStringField(Validators(validator.NewEmailValidator())), "email")
			_, err := f.ValidateInput("not-an-email")
			So(errors.Is(err, validator.ErrFormat), ShouldBeTrue)
			So(len(f.Validators()), ShouldEqual, 2)
		})

		Convey("写入和读取的错误使用同一个参数名", func() {
			f := bound(NewStringField(Column("folder_name"), MaxLength(2)), "name")
			_, inErr := f.ValidateInput("abc")
			_, outErr := f.ValidateOutput("abc")
			var in, out *validator.Error
			So(errors.As(inErr, &in), ShouldBeTrue)
			So(errors.As(outErr, &out), ShouldBeTrue)
			So(in.Param, ShouldEqual, "name")
			So(out.Param, ShouldEqual, "name")
		})

		Convey("布尔值无法转换时按真假判断", func() {
			f := bound(NewBoolField(), "active")
			v, err := f.ValidateInput("yes please")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(1))
		})
	})
}

func TestFieldBind(t *testing.T) {
	Convey("绑定", t, func() {
		f := NewStringField(Column("folder_name"))

		Convey("未绑定不能校验", func() {
			_, err := f.ValidateInput("a")
			So(errors.Is(err, ErrUnboundField), ShouldBeTrue)
			_, err = f.ValidateOutput("a")
			So(errors.Is(err, ErrUnboundField), ShouldBeTrue)
		})

		Convey("只能绑定一次", func() {
			So(f.Bind("name"), ShouldBeNil)
			So(f.Bind("name"), ShouldBeNil)
			So(errors.Is(f.Bind("title"), ErrAlreadyBound), ShouldBeTrue)
			So(f.Name(), ShouldEqual, "name")
			So(f.Column(), ShouldEqual, "folder_name")
		})

		Convey("列名默认与属性名相同", func() {
			g := bound(NewStringField(), "title")
			So(g.Column(), ShouldEqual, "title")
		})
	})
}

func TestFieldDefault(t *testing.T) {
	Convey("默认值", t, func() {
		So(NewIntField(Default(int64(3))).Default(), ShouldEqual, int64(3))

		n := 0
		f := NewIntField(Default(func() any {
			n++
			return int64(n)
		}))
		So(f.Default(), ShouldEqual, int64(1))
		So(f.Default(), ShouldEqual, int64(2))
		So(NewIntField().Default(), ShouldBeNil)
	})
}

func TestNewWithOptions(t *testing.T) {
	Convey("NewWithOptions", t, func() {
		autoIncrement := false
		maxLength := 8
		f, err := NewWithOptions(&Options{
			Kind:          validator.KindString,
			Column:        "code",
			PrimaryKey:    true,
			AutoIncrement: &autoIncrement,
			MaxLength:     &maxLength,
		})
		So(err, ShouldBeNil)
		So(f.PrimaryKey(), ShouldBeTrue)
		So(f.AutoIncrement(), ShouldBeFalse)
		So(f.Bind("code"), ShouldBeNil)

		_, err = f.ValidateInput(nil)
		So(errors.Is(err, validator.ErrNotNull), ShouldBeTrue)
		_, err = f.ValidateInput("123456789")
		So(errors.Is(err, validator.ErrLength), ShouldBeTrue)

		_, err = NewWithOptions(&Options{Kind: "unknown"})
		So(err, ShouldNotBeNil)
	})
}
