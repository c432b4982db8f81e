package cfg

import (
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

var validate = validator.New()

// Load 读取配置文件并解析到 object
// 文件格式由扩展名决定，支持 json/yaml/toml/ini
func Load(path string, object any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s failed", path)
	}
	decoder, err := DecoderFor(path)
	if err != nil {
		return err
	}
	m, err := decoder.Decode(data)
	if err != nil {
		return errors.WithMessagef(err, "decode config file %s failed", path)
	}
	return Decode(m, object)
}

// Decode 先填充 def 默认值，再按 cfg tag 用 map 覆盖，最后执行 validate 校验
func Decode(data map[string]any, object any) error {
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "SetDefaults failed")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "cfg",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           object,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, "mapstructure.NewDecoder failed")
	}
	if err := decoder.Decode(data); err != nil {
		return errors.Wrap(err, "decode failed")
	}
	return Validate(object)
}

// Validate 使用 validate tag 校验结构体，非结构体直接通过
func Validate(object any) error {
	rv := reflect.ValueOf(object)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct || rv.Type() == timeType {
		return nil
	}
	if err := validate.Struct(rv.Interface()); err != nil {
		return errors.Wrap(err, "validate failed")
	}
	return nil
}
