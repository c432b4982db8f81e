package validator

import (
	"regexp"

	playground "github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	phoneNumberRegexp = regexp.MustCompile(`^(?:\+?86)?0?1[3-9][0-9]{9}$`)
	qqNumberRegexp    = regexp.MustCompile(`^[1-9][0-9]{4,}$`)
)

var validate = playground.New()

// PatternValidator 字符串必须完整匹配正则
type PatternValidator struct {
	options
	name    string
	pattern *regexp.Regexp
}

func NewPatternValidator(pattern string, opts ...Option) (*PatternValidator, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "compile pattern %q failed", pattern)
	}
	return &PatternValidator{options: newOptions(opts), name: "pattern " + pattern, pattern: re}, nil
}

// NewPhoneNumberValidator 大陆手机号，允许 +86 或 0 前缀
func NewPhoneNumberValidator(opts ...Option) *PatternValidator {
	return &PatternValidator{options: newOptions(opts), name: "phone number", pattern: phoneNumberRegexp}
}

func NewQQNumberValidator(opts ...Option) *PatternValidator {
	return &PatternValidator{options: newOptions(opts), name: "qq number", pattern: qqNumberRegexp}
}

func (v *PatternValidator) Validate(param string, value any) (any, error) {
	if value == nil {
		return value, nil
	}
	s, ok := text(value).(string)
	if ok && v.pattern.MatchString(s) {
		return value, nil
	}
	return v.fail(ErrFormat, param, value, "expected %s", v.name)
}

// TagValidator 使用 go-playground/validator 的 tag 校验单个值，例如 "email"、"url"、"uuid4"
type TagValidator struct {
	options
	tag string
}

func NewTagValidator(tag string, opts ...Option) *TagValidator {
	return &TagValidator{options: newOptions(opts), tag: tag}
}

func NewEmailValidator(opts ...Option) *TagValidator {
	return NewTagValidator("email", opts...)
}

func NewURLValidator(opts ...Option) *TagValidator {
	return NewTagValidator("url", opts...)
}

func (v *TagValidator) Validate(param string, value any) (any, error) {
	if value == nil {
		return value, nil
	}
	if err := validate.Var(text(value), v.tag); err != nil {
		return v.fail(ErrFormat, param, value, "expected %s", v.tag)
	}
	return value, nil
}
