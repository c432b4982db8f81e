package strgen

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/hatlonely/dataobj/ref"
)

func init() {
	ref.MustRegisterT[UUIDGenerator](NewUUIDGeneratorWithOptions)
}

// StrGenerator 生成字符串 id
type StrGenerator interface {
	Generate() string
}

type UUIDOptions struct {
	Version     string `cfg:"version" def:"v4" validate:"omitempty,oneof=v1 v4 v6 v7"`
	WithHyphens bool   `cfg:"withHyphens"`
}

type UUIDGenerator struct {
	version     string
	withHyphens bool
}

func NewUUIDGeneratorWithOptions(options *UUIDOptions) *UUIDGenerator {
	if options == nil {
		options = &UUIDOptions{}
	}
	return &UUIDGenerator{version: options.Version, withHyphens: options.WithHyphens}
}

func (g *UUIDGenerator) Generate() string {
	var u uuid.UUID
	switch g.version {
	case "v1":
		u = uuid.Must(uuid.NewUUID())
	case "v6":
		u = uuid.Must(uuid.NewV6())
	case "v7":
		u = uuid.Must(uuid.NewV7())
	default:
		u = uuid.New()
	}
	if g.withHyphens {
		return u.String()
	}
	return hex.EncodeToString(u[:])
}
