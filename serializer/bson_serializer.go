package serializer

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BSONSerializer bson 的顶层必须是文档，值包在 {"v": value} 里
type BSONSerializer[T any] struct{}

func NewBSONSerializer[T any]() *BSONSerializer[T] {
	return &BSONSerializer[T]{}
}

func (s *BSONSerializer[T]) Serialize(from T) ([]byte, error) {
	return bson.Marshal(bson.M{"v": from})
}

func (s *BSONSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	var doc struct {
		V bson.RawValue `bson:"v"`
	}
	if err := bson.Unmarshal(to, &doc); err != nil {
		return result, err
	}

	var v any
	if err := doc.V.Unmarshal(&v); err != nil {
		return result, err
	}
	if t, ok := plain(v).(T); ok {
		return t, nil
	}
	err := doc.V.Unmarshal(&result)
	return result, err
}

// plain 把 primitive.D/M/A 转换成 map[string]any 和 []any
func plain(v any) any {
	switch x := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = plain(e)
		}
		return m
	case primitive.A:
		l := make([]any, len(x))
		for i, e := range x {
			l[i] = plain(e)
		}
		return l
	}
	return v
}
