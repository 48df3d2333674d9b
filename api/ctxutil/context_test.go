package ctxutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"microgrid/api/response"
	"microgrid/infrastructure/persistence"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, persistence.RequestIDFromContext(WithRequestID(c)))

	c.Set(response.RequestIDKey, "req-7")
	assert.Equal(t, "req-7", persistence.RequestIDFromContext(WithRequestID(c)))
}
