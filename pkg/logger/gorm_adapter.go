package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger 把 GORM 的日志转到全局 zap logger
// 每次输出时才取全局 logger，Init 先后顺序无关
type GormLogger struct {
	level          gormlogger.LogLevel
	slow           time.Duration
	ignoreNotFound bool
}

type GormOption func(*GormLogger)

// WithSlowThreshold 0 表示关闭慢查询告警
func WithSlowThreshold(d time.Duration) GormOption {
	return func(g *GormLogger) { g.slow = d }
}

// IgnoreRecordNotFound 仓储自行把 ErrRecordNotFound 转成领域错误时使用
func IgnoreRecordNotFound() GormOption {
	return func(g *GormLogger) { g.ignoreNotFound = true }
}

func NewGormLogger(level gormlogger.LogLevel, opts ...GormOption) *GormLogger {
	g := &GormLogger{level: level, slow: defaultSlowQuery}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) entry(ctx context.Context) *zap.Logger {
	return FromContext(ctx).With(zap.String("component", "gorm"))
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.entry(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.entry(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.entry(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

// Trace 每条 SQL 回调一次：出错 > 慢查询 > 普通
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error:
		if g.ignoreNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		g.entry(ctx).Error("sql failed", append(traceFields(fc, elapsed), zap.Error(err))...)
	case g.slow > 0 && elapsed > g.slow && g.level >= gormlogger.Warn:
		g.entry(ctx).Warn("slow sql", append(traceFields(fc, elapsed), zap.Duration("threshold", g.slow))...)
	case g.level >= gormlogger.Info:
		g.entry(ctx).Info("sql", traceFields(fc, elapsed)...)
	}
}

func traceFields(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	return []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
}
