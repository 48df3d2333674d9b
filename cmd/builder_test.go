package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"microgrid/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "microgrid", Env: "test"},
		Server:   config.ServerConfig{Port: "0"},
		Database: config.DatabaseConfig{Driver: driver, SQLitePath: ":memory:"},
	}
}

func TestBuildServesTopologyAPI(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			app, err := NewBuilder(testConfig(driver)).Build(context.Background())
			require.NoError(t, err)
			t.Cleanup(app.release)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/topologies", bytes.NewBufferString(`{"name":"feeder"}`))
			req.Header.Set("Content-Type", "application/json")
			app.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			rec = httptest.NewRecorder()
			app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	_, err := NewBuilder(testConfig("postgres")).Build(context.Background())
	assert.Error(t, err)
}
