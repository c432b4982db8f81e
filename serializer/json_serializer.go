package serializer

import (
	"bytes"
	"encoding/json"
)

type JSONSerializer[T any] struct{}

func NewJSONSerializer[T any]() *JSONSerializer[T] {
	return &JSONSerializer[T]{}
}

// Serialize 不转义 html 字符，非 ASCII 字符原样输出
func (s *JSONSerializer[T]) Serialize(from T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(from); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Deserialize 整数解码成 int64，其余数字解码成 float64
func (s *JSONSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	dec := json.NewDecoder(bytes.NewReader(to))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return result, err
	}
	if normalized, ok := normalizeNumbers(any(result)).(T); ok {
		result = normalized
	}
	return result, nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
	}
	return v
}
