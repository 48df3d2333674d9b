package response

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"microgrid/domain/topology"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set(RequestIDKey, "req-1")
		h(c)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, 0, NewPagination(1, 20, 0).TotalPages)
	assert.Equal(t, 1, NewPagination(1, 20, 20).TotalPages)
	assert.Equal(t, 3, NewPagination(1, 20, 41).TotalPages)
	assert.Equal(t, 1, NewPagination(1, 0, 7).TotalPages)
}

func TestSuccessEnvelopes(t *testing.T) {
	rec, body := run(t, func(c *gin.Context) { HandleCreated(c, gin.H{"id": "T1"}, "created") })
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, "T1", body["data"].(map[string]any)["id"])

	rec, body = run(t, func(c *gin.Context) {
		HandlePaginated(c, []string{"a"}, NewPagination(2, 1, 3), "page")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	page := body["pagination"].(map[string]any)
	assert.EqualValues(t, 3, page["total_pages"])
	assert.EqualValues(t, 2, page["page"])

	rec, _ = run(t, HandleNoContent)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleAppErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("load: %w", topology.ErrTopologyNotFound), http.StatusNotFound, "TOPOLOGY_NOT_FOUND"},
		{topology.ErrDuplicateDevice, http.StatusConflict, "DUPLICATE_DEVICE"},
		{stderrors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rec, body := run(t, func(c *gin.Context) { HandleAppError(c, tc.err) })
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.code, body["error"])
		assert.Equal(t, false, body["success"])
	}

	_, body := run(t, func(c *gin.Context) { HandleAppError(c, stderrors.New("secret dsn")) })
	assert.Equal(t, "internal server error", body["message"])
}

func TestHandleError(t *testing.T) {
	rec, body := run(t, func(c *gin.Context) {
		HandleError(c, stderrors.New("EOF"), "invalid request body", http.StatusBadRequest)
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", body["error"])
	assert.Equal(t, "invalid request body", body["message"])
}

func TestStatusForUnknownCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusFor("SOMETHING_NEW"))
}
