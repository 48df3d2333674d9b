package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"microgrid/config"
	"microgrid/infrastructure/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	t.Cleanup(SetLogger(zap.New(core)))
	return logs
}

func TestPackageFunctionsAreNoopBeforeInit(t *testing.T) {
	t.Cleanup(SetLogger(nil))

	assert.NotPanics(t, func() {
		Debug("x")
		Info("x")
		Warn("x")
		Error("x")
	})
	assert.NotNil(t, Get())
	assert.NoError(t, Sync())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestUpdateLevel(t *testing.T) {
	t.Cleanup(func() { atomLevel.SetLevel(zapcore.InfoLevel) })

	UpdateLevel("error")
	assert.Equal(t, zapcore.ErrorLevel, Level())
	UpdateLevel("bogus")
	assert.Equal(t, zapcore.InfoLevel, Level())
}

func TestFromContextCarriesRequestID(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	ctx := persistence.ContextWithRequestID(context.Background(), "req-7")
	WithTopology(ctx, "T1").Info("device added")
	FromContext(context.Background()).Info("no request")

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "T1", fields["topology_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestInitWritesToFile(t *testing.T) {
	t.Cleanup(SetLogger(nil))
	t.Cleanup(func() { atomLevel.SetLevel(zapcore.InfoLevel) })

	path := filepath.Join(t.TempDir(), "nested", "app.log")
	err := Init(&config.LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path}, "test")
	require.NoError(t, err)

	Debug("topology created", zap.String("topology_id", "T1"))
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"topology created"`)
	assert.Contains(t, string(data), `"topology_id":"T1"`)
}

func TestInitStdout(t *testing.T) {
	t.Cleanup(SetLogger(nil))

	require.NoError(t, Init(&config.LogConfig{Level: "info", Output: "stdout"}, "development"))
	assert.NotPanics(t, func() { Info("hello") })
}
