package topology

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"microgrid/api/middleware"
	"microgrid/api/response"
	topologyapp "microgrid/application/topology"
	"microgrid/infrastructure/persistence/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details []string        `json:"details"`
	Data    json.RawMessage `json:"data"`

	Pagination *response.Pagination `json:"pagination"`
}

type server struct {
	engine    *gin.Engine
	publisher *mocks.MockEventPublisher
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	publisher := mocks.NewMockEventPublisher()
	svc := topologyapp.NewApplicationService(
		mocks.NewMockTopologyRepository(),
		mocks.NewMockUnitOfWorkFactory(publisher),
		publisher, nil, nil,
	)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	NewController(svc, nil).RegisterRoutes(engine.Group("/api/v1"))
	return &server{engine: engine, publisher: publisher}
}

func (s *server) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *server) create(t *testing.T) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/topologies", map[string]any{"name": "feeder"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var topo topologyapp.TopologyResponse
	require.NoError(t, json.Unmarshal(env.Data, &topo))
	return topo.ID
}

func (s *server) addDevice(t *testing.T, topologyID, deviceType string) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/api/v1/topologies/"+topologyID+"/devices", map[string]any{"type": deviceType})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	var d topologyapp.DeviceResponse
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d.ID
}

func TestCreateAndGetTopology(t *testing.T) {
	s := newServer(t)
	id := s.create(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/topologies/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec, env = s.do(t, http.MethodGet, "/api/v1/topologies/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TOPOLOGY_NOT_FOUND", env.Error)
}

func TestCreateTopologyRequiresName(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/topologies", map[string]any{"description": "x"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestConnectionRuleViolationIs422(t *testing.T) {
	s := newServer(t)
	id := s.create(t)
	b1 := s.addDevice(t, id, "BUS")
	b2 := s.addDevice(t, id, "BUS")

	rec, env := s.do(t, http.MethodPost, "/api/v1/topologies/"+id+"/connections",
		map[string]any{"source_id": b1, "target_id": b2})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_TOPOLOGY", env.Error)
	assert.Contains(t, env.Message, "Bus devices cannot be connected directly")
}

func TestDeviceLifecycle(t *testing.T) {
	s := newServer(t)
	id := s.create(t)
	bus := s.addDevice(t, id, "BUS")
	line := s.addDevice(t, id, "LINE")

	rec, env := s.do(t, http.MethodPost, "/api/v1/topologies/"+id+"/connections",
		map[string]any{"source_id": bus, "target_id": line})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)

	rec, env = s.do(t, http.MethodDelete, "/api/v1/topologies/"+id+"/devices/"+bus, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DEVICE_IN_USE", env.Error)

	rec, env = s.do(t, http.MethodGet, "/api/v1/topologies/"+id+"/devices/"+bus+"/neighbors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var neighbors []string
	require.NoError(t, json.Unmarshal(env.Data, &neighbors))
	assert.Equal(t, []string{line}, neighbors)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/topologies/"+id+"/devices/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPathAndAnalysis(t *testing.T) {
	s := newServer(t)
	id := s.create(t)
	bus := s.addDevice(t, id, "BUS")
	line := s.addDevice(t, id, "LINE")
	s.addDevice(t, id, "LOAD")
	_, env := s.do(t, http.MethodPost, "/api/v1/topologies/"+id+"/connections",
		map[string]any{"source_id": bus, "target_id": line})
	require.True(t, env.Success, env.Message)

	rec, env := s.do(t, http.MethodGet, "/api/v1/topologies/"+id+"/path?from="+bus+"&to="+line, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var path topologyapp.PathResponse
	require.NoError(t, json.Unmarshal(env.Data, &path))
	assert.True(t, path.Found)
	assert.Equal(t, []string{bus, line}, path.Path)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/topologies/"+id+"/path?from="+bus, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/topologies/"+id+"/connectivity", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/v1/topologies/"+id+"/optimization", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/v1/topologies/"+id+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report topologyapp.ValidationResponse
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.False(t, report.IsValid, "the load is isolated")
	assert.Equal(t, "INVALID", report.Status)
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newServer(t)
	id := s.create(t)
	bus := s.addDevice(t, id, "BUS")
	line := s.addDevice(t, id, "LINE")
	_, env := s.do(t, http.MethodPost, "/api/v1/topologies/"+id+"/connections",
		map[string]any{"source_id": bus, "target_id": line})
	require.True(t, env.Success, env.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/topologies/"+id+"/export?format=yaml", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
	exported := rec.Body.Bytes()

	req = httptest.NewRequest(http.MethodPost, "/api/v1/topologies/import", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/x-yaml")
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var imported envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imported))
	var topo topologyapp.TopologyResponse
	require.NoError(t, json.Unmarshal(imported.Data, &topo))
	assert.NotEqual(t, id, topo.ID)
	assert.Len(t, topo.Devices, 2)
	assert.Len(t, topo.Connections, 1)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/topologies/"+id+"/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTopologiesFiltersByStatus(t *testing.T) {
	s := newServer(t)
	s.create(t)
	second := s.create(t)
	rec, _ := s.do(t, http.MethodPut, "/api/v1/topologies/"+second+"/status", map[string]any{"status": "complete"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodGet, "/api/v1/topologies?status=COMPLETE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []topologyapp.TopologySummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, second, list[0].ID)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(1), env.Pagination.TotalItems)

	rec, env = s.do(t, http.MethodGet, "/api/v1/topologies?page=2&page_size=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, 2, env.Pagination.TotalPages)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/topologies?page_size=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
