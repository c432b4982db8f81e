package database

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrMissingArg = errors.New("missing statement argument")

// Style 驱动的占位符风格
type Style int

const (
	// Question mysql、sqlite3 使用 ?
	Question Style = iota
	// Dollar postgres 使用 $1, $2
	Dollar
	// Named gorm 使用 @name，参数为 map
	Named
)

// postgres 不支持 LIMIT offset, count
var limitRegexp = regexp.MustCompile(`LIMIT %\((limit_offset_[A-Za-z0-9_]+)\)s, %\((limit_count_[A-Za-z0-9_]+)\)s`)

func StyleOf(driver string) Style {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return Dollar
	}
	return Question
}

// Rewrite 把 %(name)s 改写成 style 对应的占位符，%% 改写成 %
// Dollar 风格下 LIMIT offset, count 改写成 LIMIT count OFFSET offset
func Rewrite(stmt string, args map[string]any, style Style) (string, []any, error) {
	if style == Dollar {
		stmt = limitRegexp.ReplaceAllString(stmt, "LIMIT %(${2})s OFFSET %(${1})s")
	}

	var b strings.Builder
	var values []any
	named := map[string]any{}

	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if c != '%' || i+1 >= len(stmt) {
			b.WriteByte(c)
			continue
		}
		if stmt[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}
		if stmt[i+1] != '(' {
			b.WriteByte(c)
			continue
		}
		end := strings.Index(stmt[i:], ")s")
		if end < 0 {
			return "", nil, errors.Errorf("unterminated placeholder at %d in %q", i, stmt)
		}
		name := stmt[i+2 : i+end]
		v, ok := args[name]
		if !ok {
			return "", nil, errors.Wrapf(ErrMissingArg, "%q", name)
		}

		switch style {
		case Named:
			b.WriteString("@" + name)
			named[name] = v
		case Dollar:
			values = append(values, v)
			b.WriteString("$" + strconv.Itoa(len(values)))
		default:
			values = append(values, v)
			b.WriteByte('?')
		}
		i += end + 1
	}

	if style == Named {
		if len(named) == 0 {
			return b.String(), nil, nil
		}
		return b.String(), []any{named}, nil
	}
	return b.String(), values, nil
}
