/*
Package errors 应用错误码

领域层只暴露哨兵错误，这里翻译成对外稳定的错误码；
HTTP 状态由 api/response 再映射。
*/
package errors

import (
	"errors"
	"fmt"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
)

type ErrorCode string

// 通用
const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeTooManyRequest ErrorCode = "TOO_MANY_REQUESTS"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeInvalidState   ErrorCode = "INVALID_STATE"
)

// 拓扑
const (
	CodeTopologyNotFound   ErrorCode = "TOPOLOGY_NOT_FOUND"
	CodeDeviceNotFound     ErrorCode = "DEVICE_NOT_FOUND"
	CodeDuplicateDevice    ErrorCode = "DUPLICATE_DEVICE"
	CodeDuplicateConn      ErrorCode = "DUPLICATE_CONNECTION"
	CodeDeviceInUse        ErrorCode = "DEVICE_IN_USE"
	CodeConcurrentModify   ErrorCode = "CONCURRENT_MODIFICATION"
	CodeInvalidTopology    ErrorCode = "INVALID_TOPOLOGY"
	CodeTopologyValidation ErrorCode = "TOPOLOGY_VALIDATION_FAILED"
	CodeInvalidDevice      ErrorCode = "INVALID_DEVICE"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details []string  `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Is 错误链上是否有指定错误码的 AppError
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// 按顺序匹配，拓扑哨兵在通用哨兵前面
var sentinelCodes = []struct {
	sentinel error
	code     ErrorCode
}{
	{topology.ErrTopologyNotFound, CodeTopologyNotFound},
	{topology.ErrDeviceNotFound, CodeDeviceNotFound},
	{topology.ErrDuplicateDevice, CodeDuplicateDevice},
	{topology.ErrDuplicateConnection, CodeDuplicateConn},
	{topology.ErrDeviceInUse, CodeDeviceInUse},
	{topology.ErrConcurrentModification, CodeConcurrentModify},
	{topology.ErrInvalidTopology, CodeInvalidTopology},
	{topology.ErrTopologyValidation, CodeTopologyValidation},
	{topology.ErrInvalidDevice, CodeInvalidDevice},
	{shared.ErrNotFound, CodeNotFound},
	{shared.ErrConflict, CodeConflict},
	{shared.ErrInvalidInput, CodeValidation},
	{shared.ErrInvalidState, CodeInvalidState},
}

func codeOf(err error) ErrorCode {
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.sentinel) {
			return sc.code
		}
	}
	return CodeInternal
}

// FromDomainError 已是 AppError 原样返回；无法识别的归为 INTERNAL_ERROR
func FromDomainError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	mapped := Wrap(err, codeOf(err), err.Error())
	var verr *topology.TopologyValidationError
	if errors.As(err, &verr) {
		mapped.Message = "topology validation failed"
		mapped.Details = append([]string(nil), verr.Errors...)
	}
	return mapped
}
