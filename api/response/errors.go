package response

import (
	stderrors "errors"
	"net/http"
	"runtime"

	"microgrid/domain/shared"
	"microgrid/pkg/errors"
	"microgrid/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusByCode 错误码 -> HTTP 状态码；未登记的按 500
var statusByCode = map[errors.ErrorCode]int{
	errors.CodeBadRequest:     http.StatusBadRequest,
	errors.CodeValidation:     http.StatusBadRequest,
	errors.CodeInvalidDevice:  http.StatusBadRequest,
	errors.CodeUnauthorized:   http.StatusUnauthorized,
	errors.CodeForbidden:      http.StatusForbidden,
	errors.CodeTooManyRequest: http.StatusTooManyRequests,

	errors.CodeNotFound:         http.StatusNotFound,
	errors.CodeTopologyNotFound: http.StatusNotFound,
	errors.CodeDeviceNotFound:   http.StatusNotFound,

	errors.CodeConflict:         http.StatusConflict,
	errors.CodeDuplicateDevice:  http.StatusConflict,
	errors.CodeDuplicateConn:    http.StatusConflict,
	errors.CodeDeviceInUse:      http.StatusConflict,
	errors.CodeConcurrentModify: http.StatusConflict,

	errors.CodeInvalidState:       http.StatusUnprocessableEntity,
	errors.CodeInvalidTopology:    http.StatusUnprocessableEntity,
	errors.CodeTopologyValidation: http.StatusUnprocessableEntity,
}

// StatusFor 错误码对应的 HTTP 状态码
func StatusFor(code errors.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func requestFields(c *gin.Context) []zap.Field {
	return []zap.Field{
		zap.String("request_id", GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	}
}

// HandleError 绑定、解析等请求本身的错误，一律按 BAD_REQUEST 码返回
func HandleError(c *gin.Context, err error, message string, status int) {
	logger.Warn(message, append(requestFields(c), zap.Int("status", status), zap.Error(err))...)

	c.JSON(status, Response{
		Error:     string(errors.CodeBadRequest),
		Code:      status,
		Message:   message,
		RequestID: GetRequestID(c),
	})
}

// HandleAppError 领域/应用错误统一出口
func HandleAppError(c *gin.Context, err error) {
	appErr := errors.FromDomainError(err)
	status := StatusFor(appErr.Code)

	fields := append(requestFields(c),
		zap.String("error_code", string(appErr.Code)),
		zap.Int("status", status))
	if appErr.Err != nil {
		fields = append(fields, zap.Error(appErr.Err))
	}

	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logger.Error(message, append(fields, zap.Strings("stack", stackOf(err)))...)
		message = "internal server error"
	} else {
		logger.Warn(message, fields...)
	}

	c.JSON(status, Response{
		Error:     string(appErr.Code),
		Code:      status,
		Message:   message,
		Details:   appErr.Details,
		RequestID: GetRequestID(c),
	})
}

// stackOf 优先用错误产生处记录的堆栈，没有则取当前调用点
func stackOf(err error) []string {
	var s shared.Stacker
	if stderrors.As(err, &s) {
		if st := s.Stack(); len(st) > 0 {
			return st
		}
	}

	var pcs [8]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, n)
	for {
		f, more := frames.Next()
		if f.Function != "" {
			out = append(out, f.Function)
		}
		if !more {
			break
		}
	}
	return out
}
