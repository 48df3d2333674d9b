package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MICROGRID"

var defaults = map[string]any{
	"app.name":    "microgrid",
	"app.version": "1.0.0",
	"app.env":     "development",

	"server.port":               "8080",
	"server.read_timeout":       "30s",
	"server.write_timeout":      "30s",
	"server.shutdown_timeout":   "10s",
	"server.rate_limit.enabled": true,
	"server.rate_limit.rate":    100,
	"server.rate_limit.burst":   200,

	"database.driver":             DriverMemory,
	"database.host":               "localhost",
	"database.port":               "3306",
	"database.username":           "root",
	"database.password":           "",
	"database.database":           "microgrid",
	"database.sqlite_path":        "data/microgrid.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  "5m",
	"database.conn_max_idle_time": "2m",
	"database.slow_query":         "200ms",
	"database.auto_migrate":       true,
	"database.log_level":          "warn",

	"database.retry.enabled":                          true,
	"database.retry.max_attempts":                     3,
	"database.retry.initial_delay":                    "100ms",
	"database.retry.max_delay":                        "2s",
	"database.retry.backoff_factor":                   2.0,
	"database.retry.jitter_enabled":                   true,
	"database.retry.retry_on_concurrent_modification": true,
	"database.retry.retry_on_deadlock":                true,
	"database.retry.retry_on_lock_timeout":            true,

	"log.level":        "info",
	"log.format":       "console",
	"log.output":       "stdout",
	"log.file_path":    "logs/microgrid.log",
	"log.max_size_mb":  50,
	"log.max_backups":  5,
	"log.max_age_days": 14,
	"log.compress":     true,

	"cors.allow_origins":     []string{"http://localhost:3000"},
	"cors.allow_methods":     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	"cors.allow_headers":     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
	"cors.allow_credentials": true,
	"cors.max_age":           86400,

	"messaging.enabled":         false,
	"messaging.url":             "nats://localhost:4222",
	"messaging.name":            "microgrid-outbox",
	"messaging.subject_prefix":  "microgrid",
	"messaging.reconnect_wait":  "2s",
	"messaging.max_reconnects":  60,
	"messaging.connect_timeout": "5s",

	"outbox.poll_interval": "2s",
	"outbox.batch_size":    100,
	"outbox.max_retries":   5,
	"outbox.claim_timeout": "1m",

	"cache.enabled": false,
	"cache.addr":    "localhost:6379",
	"cache.db":      0,
	"cache.ttl":     "5m",
	"cache.prefix":  "microgrid:topology:",

	"worker.health_port": "8081",
}

// Load 读取配置；configPath 为空时在 . 和 ./config 下找 config.yaml，找不到只用默认值
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 只检查没有合理默认值的组合，所有问题一次性返回
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverMemory, DriverMySQL:
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("database.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Messaging.Enabled && c.Messaging.URL == "" {
		errs = append(errs, errors.New("messaging.url is required when messaging is enabled"))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, errors.New("cache.addr is required when the cache is enabled"))
	}
	return errors.Join(errs...)
}
