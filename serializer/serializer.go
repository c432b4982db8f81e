package serializer

import (
	"encoding/base64"

	"github.com/hatlonely/dataobj/ref"
	"github.com/pkg/errors"
)

const namespace = "github.com/hatlonely/dataobj/serializer"

func init() {
	ref.MustRegister(namespace, "JSON", NewJSONSerializer[any])
	ref.MustRegister(namespace, "YAML", NewYAMLSerializer[any])
	ref.MustRegister(namespace, "MsgPack", NewMsgPackSerializer[any])
	ref.MustRegister(namespace, "BSON", NewBSONSerializer[any])
}

type Serializer[F, T any] interface {
	Serialize(from F) (T, error)
	Deserialize(to T) (F, error)
}

// NewByteSerializerWithOptions options 为 nil 时使用 JSON
func NewByteSerializerWithOptions(options *ref.TypeOptions) (Serializer[any, []byte], error) {
	if options == nil {
		return NewJSONSerializer[any](), nil
	}
	if options.Namespace == "" {
		options = &ref.TypeOptions{Namespace: namespace, Type: options.Type, Options: options.Options}
	}
	s, err := ref.NewWithOptions[Serializer[any, []byte]](options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithOptions failed")
	}
	return s, nil
}

// StructuredText 结构化文本，默认 JSON，数据库中可读
func StructuredText() Serializer[any, string] {
	return Text(NewJSONSerializer[any]())
}

// Opaque 二进制序列化后 base64 编码，默认 msgpack
func Opaque() Serializer[any, string] {
	return Base64(NewMsgPackSerializer[any]())
}

type textSerializer[F any] struct {
	s Serializer[F, []byte]
}

// Text 把字节序列化结果直接当作字符串
func Text[F any](s Serializer[F, []byte]) Serializer[F, string] {
	return &textSerializer[F]{s: s}
}

func (t *textSerializer[F]) Serialize(from F) (string, error) {
	buf, err := t.s.Serialize(from)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (t *textSerializer[F]) Deserialize(to string) (F, error) {
	return t.s.Deserialize([]byte(to))
}

type base64Serializer[F any] struct {
	s Serializer[F, []byte]
}

func Base64[F any](s Serializer[F, []byte]) Serializer[F, string] {
	return &base64Serializer[F]{s: s}
}

func (b *base64Serializer[F]) Serialize(from F) (string, error) {
	buf, err := b.s.Serialize(from)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func (b *base64Serializer[F]) Deserialize(to string) (F, error) {
	buf, err := base64.StdEncoding.DecodeString(to)
	if err != nil {
		var zero F
		return zero, errors.Wrap(err, "base64 decode failed")
	}
	return b.s.Deserialize(buf)
}
