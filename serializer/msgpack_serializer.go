package serializer

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

type MsgPackSerializer[T any] struct{}

func NewMsgPackSerializer[T any]() *MsgPackSerializer[T] {
	return &MsgPackSerializer[T]{}
}

func (s *MsgPackSerializer[T]) Serialize(from T) ([]byte, error) {
	return msgpack.Marshal(from)
}

// Deserialize 整数统一解码成 int64/uint64，浮点数解码成 float64
func (s *MsgPackSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	dec := msgpack.NewDecoder(bytes.NewReader(to))
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(&result)
	return result, err
}
