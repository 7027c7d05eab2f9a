package steperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind 错误分类
type Kind string

const (
	KindPrecondition  Kind = "PreconditionViolation"
	KindOperation     Kind = "OperationFailure"
	KindPostcondition Kind = "PostconditionViolation"
	KindParse         Kind = "ParseError"
	KindTransport     Kind = "TransportFailure"
)

// 按分类匹配的哨兵错误，配合 errors.Is 使用
var (
	ErrPreconditionViolation  = &Error{Kind: KindPrecondition}
	ErrOperationFailure       = &Error{Kind: KindOperation}
	ErrPostconditionViolation = &Error{Kind: KindPostcondition}
	ErrParse                  = &Error{Kind: KindParse}
	ErrTransport              = &Error{Kind: KindTransport}
)

// Error 单个检查点的失败信息
type Error struct {
	Code     string         `yaml:"code"              json:"code"`
	Kind     Kind           `yaml:"kind"              json:"kind"`
	Message  string         `yaml:"message"           json:"message"`
	Context  map[string]any `yaml:"context,omitempty" json:"context,omitempty"`
	RawError error          `yaml:"-"                 json:"-"` // 底层错误，只用于排查
}

// Error 实现 error 接口
func (e *Error) Error() string {
	var b strings.Builder
	if e.Code != "" {
		fmt.Fprintf(&b, "[%s] ", e.Code)
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.RawError != nil {
		fmt.Fprintf(&b, ": %v", e.RawError)
	}
	return b.String()
}

// Is 实现 errors.Is 接口
// 分类相同即匹配；如果 target 带有步骤编码，则编码也必须相同
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.RawError
}

var _ interface {
	Error() string
	Is(target error) bool
	Unwrap() error
} = (*Error)(nil)

// New 创建新的步骤错误
func New(code string, kind Kind, message string) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// NewWithRaw 创建新的步骤错误，包含原始错误
func NewWithRaw(code string, kind Kind, message string, rawError error) *Error {
	return &Error{
		Code:     code,
		Kind:     kind,
		Message:  message,
		RawError: rawError,
	}
}

// With 追加一条上下文，返回自身便于链式调用
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithContext 合并一组上下文
func (e *Error) WithContext(ctx map[string]any) *Error {
	for k, v := range ctx {
		e.With(k, v)
	}
	return e
}

// From 从错误链中取出 *Error
func From(err error) (*Error, bool) {
	var stepErr *Error
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}

// CodeOf 返回错误链中的步骤编码，没有时返回空字符串
func CodeOf(err error) string {
	if stepErr, ok := From(err); ok {
		return stepErr.Code
	}
	return ""
}
