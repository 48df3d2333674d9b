// Package retry 工作单元事务的退避重试
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"microgrid/config"
	"microgrid/domain/topology"
	"microgrid/pkg/logger"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	mysqlDeadlock    = 1213
	mysqlLockTimeout = 1205
)

type Config struct {
	Enabled       bool
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool

	OnConcurrentModification bool
	OnDeadlock               bool
	OnLockTimeout            bool

	// Extra 额外判定，返回 true 即重试
	Extra func(error) bool
}

var DefaultConfig = Config{
	Enabled:                  true,
	MaxAttempts:              3,
	InitialDelay:             100 * time.Millisecond,
	MaxDelay:                 2 * time.Second,
	BackoffFactor:            2,
	Jitter:                   true,
	OnConcurrentModification: true,
	OnDeadlock:               true,
	OnLockTimeout:            true,
}

// Disabled 只执行一次
var Disabled = Config{}

func FromAppConfig(cfg *config.Config) Config {
	rc := cfg.Database.Retry
	return Config{
		Enabled:                  rc.Enabled,
		MaxAttempts:              rc.MaxAttempts,
		InitialDelay:             rc.InitialDelay,
		MaxDelay:                 rc.MaxDelay,
		BackoffFactor:            rc.BackoffFactor,
		Jitter:                   rc.JitterEnabled,
		OnConcurrentModification: rc.RetryOnConcurrentModification,
		OnDeadlock:               rc.RetryOnDeadlock,
		OnLockTimeout:            rc.RetryOnLockTimeout,
	}
}

// Backoff 第 attempt 次失败后的等待时间，封顶 MaxDelay，jitter 为 ±20%
func (c Config) Backoff(attempt int) time.Duration {
	if attempt <= 0 || c.InitialDelay <= 0 {
		return 0
	}
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := float64(c.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if c.MaxDelay > 0 {
		d = math.Min(d, float64(c.MaxDelay))
	}
	if c.Jitter {
		d *= 0.8 + 0.4*rand.Float64()
	}
	return time.Duration(d)
}

// Retryable 判断错误是否值得再跑一次事务
func (c Config) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if c.Extra != nil && c.Extra(err) {
		return true
	}
	if errors.Is(err, topology.ErrConcurrentModification) {
		return c.OnConcurrentModification
	}

	var myErr *mysqlDriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDeadlock:
			return c.OnDeadlock
		case mysqlLockTimeout:
			return c.OnLockTimeout
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return c.OnLockTimeout
		}
		return false
	}

	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}
	// driver 没给出类型化错误时按文本兜底
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadlock"):
		return c.OnDeadlock
	case strings.Contains(msg, "lock wait timeout"), strings.Contains(msg, "database is locked"):
		return c.OnLockTimeout
	}
	return false
}

// Do 执行 fn，可重试错误按退避再试，返回最后一次的错误
func Do(ctx context.Context, c Config, fn func(ctx context.Context) error) error {
	if !c.Enabled || c.MaxAttempts <= 1 {
		return fn(ctx)
	}

	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(ctx); err == nil || attempt >= c.MaxAttempts || !c.Retryable(err) {
			return err
		}

		wait := c.Backoff(attempt)
		logger.FromContext(ctx).Debug("retrying transaction",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
