/*
Package shared 领域共享内核：错误、事件、规格、聚合与工作单元接口。

错误分两层：哨兵错误只表达类别（errors.Is 判断），
*DomainError 附带实体、字段和创建处的调用栈。
HTTP 映射不在这里，见 pkg/errors。
*/
package shared

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
)

const maxStackFrames = 10

// DomainError Kind 为哨兵错误，Unwrap 返回它
type DomainError struct {
	Kind    error
	Entity  string
	Field   string
	Message string

	pcs []uintptr
}

// NewError 在调用处捕获堆栈；各领域包的构造函数都经由它
func NewError(kind error, entity, field, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Entity:  entity,
		Field:   field,
		Message: message,
		pcs:     callers(4),
	}
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }

func (e *DomainError) Stack() []string { return FormatStack(e.pcs) }

// Stacker API 层用来取错误产生处的堆栈
type Stacker interface {
	Stack() []string
}

// CaptureStack skip 语义同 runtime.Callers
func CaptureStack(skip int) []uintptr {
	return callers(skip + 1)
}

func callers(skip int) []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	return pcs[:n]
}

// FormatStack 跳过 runtime 帧，最多 maxStackFrames 帧
func FormatStack(pcs []uintptr) []string {
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	var out []string
	for len(out) < maxStackFrames {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			out = append(out, fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Function))
		}
		if !more {
			break
		}
	}
	return out
}

func NewNotFoundError(entity, id string) error {
	return NewError(ErrNotFound, entity, "", entity+" not found: "+id)
}

func NewConflictError(entity, message string) error {
	return NewError(ErrConflict, entity, "", message)
}

func NewValidationError(entity, field, reason string) error {
	return NewError(ErrInvalidInput, entity, field, reason)
}

func NewInvalidStateError(entity, reason string) error {
	return NewError(ErrInvalidState, entity, "", reason)
}
