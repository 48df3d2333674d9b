/*
Package response 统一的 JSON 信封

	成功: { success: true, data, message, code, request_id }
	分页: 成功信封 + pagination
	失败: { success: false, error: 错误码, message, details, code, request_id }

5xx 只返回 "internal server error"，真实原因写日志。
*/
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequestIDKey gin.Context 中请求 ID 的键，由 RequestID 中间件写入
const RequestIDKey = "request_id"

type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Details   []string    `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type PaginatedResponse struct {
	Response
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination 根据总数算出页数，pageSize<=0 时视为一页
func NewPagination(page, pageSize int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, TotalItems: total}
	switch {
	case total == 0:
	case pageSize <= 0:
		p.TotalPages = 1
	default:
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return p
}

func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func ok(c *gin.Context, status int, data interface{}, message string) Response {
	return Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Code:      status,
		RequestID: GetRequestID(c),
	}
}

func HandleSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, ok(c, http.StatusOK, data, message))
}

func HandleCreated(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, ok(c, http.StatusCreated, data, message))
}

func HandleNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func HandlePaginated(c *gin.Context, data interface{}, pagination Pagination, message string) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Response:   ok(c, http.StatusOK, data, message),
		Pagination: pagination,
	})
}
