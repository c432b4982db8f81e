package sqlargs

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/hatlonely/dataobj/uid/strgen"
)

// SaltFunc 为一个语句中的一个子句生成参数名后缀
type SaltFunc func(table string, clause Clause) string

// DeterministicSalt 相同的表和子句总是得到相同的后缀，语句文本可以直接用作缓存 key
func DeterministicSalt(table string, clause Clause) string {
	return strconv.FormatUint(xxhash.Sum64String(table+"."+string(clause))&0xffffffff, 36)
}

var saltGenerator = strgen.NewUUIDGeneratorWithOptions(nil)

// RandomSalt 每次调用都不同
func RandomSalt(table string, clause Clause) string {
	return saltGenerator.Generate()[:8]
}
