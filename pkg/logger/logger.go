/*
Package logger 全局 zap 日志

Init 之前所有函数都是空操作，测试和工具代码无需初始化即可调用。
输出目标: stdout | file | both，文件由 lumberjack 轮转。
*/
package logger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"microgrid/config"
	"microgrid/infrastructure/persistence"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log       *zap.Logger
	atomLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init 按配置构建全局 logger
func Init(cfg *config.LogConfig, env string) error {
	atomLevel.SetLevel(parseLevel(cfg.Level))

	sink, err := buildSink(cfg)
	if err != nil {
		return err
	}
	core := zapcore.NewCore(buildEncoder(cfg.Format, env), sink, atomLevel)
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

// SetLogger 替换全局 logger，返回还原函数
func SetLogger(l *zap.Logger) (restore func()) {
	prev := log
	log = l
	return func() { log = prev }
}

func buildEncoder(format, env string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	switch format {
	case "json":
		return zapcore.NewJSONEncoder(ec)
	case "console":
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	// 未指定格式: 开发环境 console，其余 json
	if env == "development" || env == "dev" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func buildSink(cfg *config.LogConfig) (zapcore.WriteSyncer, error) {
	stdout := zapcore.Lock(os.Stdout)
	if cfg.Output != "file" && cfg.Output != "both" {
		return stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefault(cfg.MaxSizeMB, 50),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 14),
		Compress:   cfg.Compress,
	})
	if cfg.Output == "both" {
		return zapcore.NewMultiWriteSyncer(stdout, file), nil
	}
	return file, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// parseLevel 无法识别的级别按 info 处理
func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func Get() *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// UpdateLevel 运行时调整级别
func UpdateLevel(level string) {
	atomLevel.SetLevel(parseLevel(level))
}

// Level 当前生效级别
func Level() zapcore.Level {
	return atomLevel.Level()
}

// Sync 刷新缓冲；stdout 为终端或管道时的 EINVAL/ENOTTY 不算错误
func Sync() error {
	if log == nil {
		return nil
	}
	err := log.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}

func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

func WithRequestID(requestID string) *zap.Logger {
	if requestID == "" {
		return Get()
	}
	return Get().With(zap.String("request_id", requestID))
}

// FromContext 带上 context 中的请求 ID
func FromContext(ctx context.Context) *zap.Logger {
	return WithRequestID(persistence.RequestIDFromContext(ctx))
}

// WithTopology 拓扑相关日志统一带 topology_id
func WithTopology(ctx context.Context, topologyID string) *zap.Logger {
	return FromContext(ctx).With(zap.String("topology_id", topologyID))
}

func Debug(msg string, fields ...zap.Field) {
	if log != nil {
		log.Debug(msg, fields...)
	}
}

func Info(msg string, fields ...zap.Field) {
	if log != nil {
		log.Info(msg, fields...)
	}
}

func Warn(msg string, fields ...zap.Field) {
	if log != nil {
		log.Warn(msg, fields...)
	}
}

func Error(msg string, fields ...zap.Field) {
	if log != nil {
		log.Error(msg, fields...)
	}
}

func Fatal(msg string, fields ...zap.Field) {
	if log != nil {
		log.Fatal(msg, fields...)
	}
}
