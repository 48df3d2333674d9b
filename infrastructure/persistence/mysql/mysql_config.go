package mysql

import (
	"context"
	"fmt"
	"net"
	"time"

	"microgrid/config"
	"microgrid/pkg/logger"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 10
	DefaultConnMaxLifetime = 10 * time.Minute
	DefaultConnMaxIdleTime = 5 * time.Minute

	ioTimeout = 10 * time.Second
)

// Pool 连接池参数，零值走默认
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

func (p *Pool) normalize() {
	if p.MaxOpen <= 0 {
		p.MaxOpen = DefaultMaxOpenConns
	}
	if p.MaxIdle <= 0 {
		p.MaxIdle = DefaultMaxIdleConns
	}
	p.MaxIdle = min(p.MaxIdle, p.MaxOpen)
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = DefaultConnMaxLifetime
	}
	if p.MaxIdleTime <= 0 {
		p.MaxIdleTime = DefaultConnMaxIdleTime
	}
}

// Connector 打开 MySQL 连接并按需迁移
type Connector struct {
	driver    *mysqldriver.Config
	pool      Pool
	logLevel  gormlogger.LogLevel
	slowQuery time.Duration
	migrate   bool
}

// NewConfig 由 database 配置段构建
func NewConfig(db config.DatabaseConfig) *Connector {
	dc := mysqldriver.NewConfig()
	dc.User = db.Username
	dc.Passwd = db.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(db.Host, db.Port)
	dc.DBName = db.Database
	dc.ParseTime = true
	dc.Loc = time.Local
	dc.Collation = "utf8mb4_unicode_ci"
	dc.ReadTimeout = ioTimeout
	dc.WriteTimeout = ioTimeout

	return &Connector{
		driver: dc,
		pool: Pool{
			MaxOpen:     db.MaxOpenConns,
			MaxIdle:     db.MaxIdleConns,
			MaxLifetime: db.ConnMaxLifetime,
			MaxIdleTime: db.ConnMaxIdleTime,
		},
		logLevel:  gormLevel(db.LogLevel),
		slowQuery: db.SlowQuery,
		migrate:   db.AutoMigrate,
	}
}

// DSN 交给驱动格式化，密码里的特殊字符不用手动转义
func (c *Connector) DSN() string {
	return c.driver.FormatDSN()
}

func gormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug", "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}

func (c *Connector) Connect(ctx context.Context) (*gorm.DB, error) {
	c.pool.normalize()

	db, err := gorm.Open(mysql.New(mysql.Config{DSN: c.DSN(), DSNConfig: c.driver}), &gorm.Config{
		Logger: logger.NewGormLogger(c.logLevel,
			logger.IgnoreRecordNotFound(),
			logger.WithSlowThreshold(c.slowQuery)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql %s: %w", c.driver.Addr, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(c.pool.MaxOpen)
	sqlDB.SetMaxIdleConns(c.pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(c.pool.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.pool.MaxIdleTime)

	if err := Ping(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", c.driver.Addr, err)
	}
	if c.migrate {
		if err := AutoMigrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	logger.Info("mysql connected",
		zap.String("addr", c.driver.Addr),
		zap.String("database", c.driver.DBName),
		zap.Int("max_open", c.pool.MaxOpen),
		zap.Bool("migrated", c.migrate),
	)
	return db, nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
