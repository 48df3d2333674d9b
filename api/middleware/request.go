// Package middleware gin 中间件：请求 ID、访问日志、panic 恢复、CORS、限流
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"microgrid/api/response"
	"microgrid/infrastructure/persistence"
	"microgrid/pkg/errors"
	"microgrid/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen 客户端传入的请求 ID 超长时重新生成
const maxRequestIDLen = 128

// RequestID 沿用客户端的 X-Request-ID，没有则生成；
// 同时写入 gin.Context 与 request.Context，仓储和服务层日志都能取到
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(persistence.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog 每个请求一条日志；带路由模板和 topology_id 方便按拓扑检索
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("uri", c.Request.URL.RequestURI()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("topology_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("gin_errors", c.Errors.String()))
		}

		log := logger.WithRequestID(response.GetRequestID(c))
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Recovery panic 转成 500，堆栈只进日志
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			id := response.GetRequestID(c)
			logger.Error("panic recovered",
				zap.String("request_id", id),
				zap.String("uri", c.Request.URL.RequestURI()),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))

			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Error:     string(errors.CodeInternal),
				Code:      http.StatusInternalServerError,
				Message:   "internal server error",
				RequestID: id,
			})
		}()
		c.Next()
	}
}
