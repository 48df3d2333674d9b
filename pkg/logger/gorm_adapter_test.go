package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"microgrid/infrastructure/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormTraceLevels(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)
	g := NewGormLogger(gormlogger.Info, WithSlowThreshold(50*time.Millisecond))
	ctx := persistence.ContextWithRequestID(context.Background(), "req-1")

	g.Trace(ctx, time.Now(), sqlFn("SELECT 1", 1), nil)
	g.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT * FROM topologies", 3), nil)
	g.Trace(ctx, time.Now(), sqlFn("INSERT", 0), errors.New("duplicate key"))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "slow sql", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	for _, e := range entries {
		assert.Equal(t, "req-1", e.ContextMap()["request_id"])
		assert.Equal(t, "gorm", e.ContextMap()["component"])
	}
}

func TestGormIgnoreRecordNotFound(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	NewGormLogger(gormlogger.Warn, IgnoreRecordNotFound()).
		Trace(context.Background(), time.Now(), sqlFn("SELECT", 0), gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	NewGormLogger(gormlogger.Warn).
		Trace(context.Background(), time.Now(), sqlFn("SELECT", 0), gormlogger.ErrRecordNotFound)
	assert.Equal(t, 1, logs.Len())
}

func TestGormLogModeAndSilent(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)
	g := NewGormLogger(gormlogger.Info)

	silent := g.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), sqlFn("SELECT", 0), errors.New("boom"))
	silent.Error(context.Background(), "x")
	assert.Equal(t, 0, logs.Len())

	g.Info(context.Background(), "migrated %d tables", 4)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "migrated 4 tables", logs.All()[0].Message)

	warnOnly := g.LogMode(gormlogger.Warn)
	warnOnly.Info(context.Background(), "hidden")
	warnOnly.Trace(context.Background(), time.Now(), sqlFn("SELECT", 0), nil)
	assert.Equal(t, 1, logs.Len())
}
