// Package ctxutil 在 gin.Context 与标准 context 之间搬运请求范围的数据
package ctxutil

import (
	"context"

	"microgrid/api/response"
	"microgrid/infrastructure/persistence"

	"github.com/gin-gonic/gin"
)

// WithRequestID 返回携带请求 ID 的 context，仓储的 SQL 日志据此关联请求
func WithRequestID(c *gin.Context) context.Context {
	return persistence.ContextWithRequestID(c.Request.Context(), response.GetRequestID(c))
}
