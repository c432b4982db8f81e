package serializer

import (
	"gopkg.in/yaml.v3"
)

type YAMLSerializer[T any] struct{}

func NewYAMLSerializer[T any]() *YAMLSerializer[T] {
	return &YAMLSerializer[T]{}
}

func (s *YAMLSerializer[T]) Serialize(from T) ([]byte, error) {
	return yaml.Marshal(from)
}

func (s *YAMLSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	err := yaml.Unmarshal(to, &result)
	return result, err
}
