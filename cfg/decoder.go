package cfg

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Decoder 把配置文件内容解析成 map
type Decoder interface {
	Decode(data []byte) (map[string]any, error)
}

type DecoderFunc func(data []byte) (map[string]any, error)

func (f DecoderFunc) Decode(data []byte) (map[string]any, error) {
	return f(data)
}

var decoders = map[string]Decoder{
	".json": DecoderFunc(decodeJSON),
	".yaml": DecoderFunc(decodeYAML),
	".yml":  DecoderFunc(decodeYAML),
	".toml": DecoderFunc(decodeTOML),
	".ini":  DecoderFunc(decodeINI),
}

// DecoderFor 根据文件扩展名选择解码器
func DecoderFor(path string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	d, ok := decoders[ext]
	if !ok {
		return nil, errors.Errorf("unsupported config format %q", ext)
	}
	return d, nil
}

func decodeJSON(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal failed")
	}
	return result, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "yaml.Unmarshal failed")
	}
	return result, nil
}

func decodeTOML(data []byte) (map[string]any, error) {
	result := map[string]any{}
	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "toml.Unmarshal failed")
	}
	return result, nil
}

// decodeINI 默认 section 的键放在顶层，section 名按 . 拆成嵌套的 map
func decodeINI(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.LoadSources failed")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		node := result
		if section.Name() != ini.DefaultSection {
			for _, part := range strings.Split(section.Name(), ".") {
				child, ok := node[part].(map[string]any)
				if !ok {
					child = map[string]any{}
					node[part] = child
				}
				node = child
			}
		}
		for _, key := range section.Keys() {
			node[key.Name()] = key.String()
		}
	}
	return result, nil
}
