// Command worker 把 MySQL outbox 中的拓扑事件转发到 NATS（未启用 NATS 时只记日志）
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"microgrid/api"
	"microgrid/api/health"
	"microgrid/api/response"
	"microgrid/config"
	"microgrid/infrastructure/messaging"
	"microgrid/infrastructure/persistence/mysql"
	"microgrid/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var configPath = flag.String("config", "", "config file (yaml)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}

	code := 0
	if err := relay(cfg); err != nil {
		logger.Error("outbox worker exited", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	os.Exit(code)
}

func relay(cfg *config.Config) error {
	if cfg.Database.Driver != config.DriverMySQL {
		logger.Info("outbox worker needs the mysql driver, nothing to do",
			zap.String("driver", cfg.Database.Driver))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mysql.NewConfig(cfg.Database).Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = mysql.Close(db) }()

	publisher, closePublisher, err := newPublisher(cfg.Messaging)
	if err != nil {
		return err
	}
	defer closePublisher()

	outbox := mysql.NewOutboxRepository(db)
	worker, err := mysql.NewOutboxWorker(outbox, publisher, cfg.Outbox)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Worker.HealthPort,
		Handler:           api.NewEngine(cfg, health.NewController(cfg, mysqlProbe(db)), backlog{outbox}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("outbox worker started",
		zap.Duration("poll_interval", cfg.Outbox.PollInterval),
		zap.Int("batch_size", cfg.Outbox.BatchSize),
		zap.Int("max_retries", cfg.Outbox.MaxRetries),
		zap.Duration("claim_timeout", cfg.Outbox.ClaimTimeout),
		zap.Bool("nats", cfg.Messaging.Enabled),
		zap.String("health_addr", server.Addr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})

	err = g.Wait()
	logger.Info("outbox worker stopped")
	return err
}

func newPublisher(cfg config.MessagingConfig) (mysql.OutboxPublisher, func(), error) {
	if !cfg.Enabled {
		return mysql.LoggingOutboxPublisher{}, func() {}, nil
	}
	nc, err := messaging.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return messaging.NewNATSPublisher(nc, cfg.SubjectPrefix), nc.Close, nil
}

func mysqlProbe(db *gorm.DB) health.Dependency {
	return health.Dependency{
		Name: "mysql",
		Ping: func(ctx context.Context) error { return mysql.Ping(ctx, db) },
	}
}

// backlog 暴露各状态的 outbox 行数
type backlog struct {
	outbox *mysql.OutboxRepository
}

func (b backlog) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/outbox", func(c *gin.Context) {
		counts, err := b.outbox.CountByStatus(c.Request.Context())
		if err != nil {
			response.HandleAppError(c, err)
			return
		}
		response.HandleSuccess(c, counts, "outbox backlog")
	})
}
