package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"microgrid/api"
	"microgrid/api/health"
	"microgrid/api/stream"
	apitopology "microgrid/api/topology"
	topologyapp "microgrid/application/topology"
	"microgrid/config"
	"microgrid/domain/shared"
	"microgrid/domain/topology"
	"microgrid/infrastructure/cache"
	"microgrid/infrastructure/codec"
	"microgrid/infrastructure/persistence/mocks"
	"microgrid/infrastructure/persistence/mysql"
	"microgrid/infrastructure/persistence/retry"
	"microgrid/infrastructure/persistence/sqlite"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
)

// storage 一个持久化驱动装配出的全部部件
type storage struct {
	repo       topology.Repository
	uowFactory shared.UnitOfWorkFactory
	deps       []health.Dependency
	closers    []func() error
}

// AppBuilder builds an App from configuration
type AppBuilder struct {
	cfg *config.Config
}

// NewBuilder creates a new AppBuilder
func NewBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 装配顺序: 事件总线 -> 存储 -> 缓存 -> 应用服务 -> HTTP
// 出错时已打开的资源会被关闭
func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	logger.Info("Building application",
		zap.String("app", b.cfg.App.Name),
		zap.String("version", b.cfg.App.Version),
		zap.String("env", b.cfg.App.Env),
		zap.String("driver", b.cfg.Database.Driver))

	bus := shared.NewEventBus()
	hub := stream.NewHub()
	if err := bus.Subscribe(shared.AllEvents, hub); err != nil {
		return nil, err
	}

	st, err := b.openStorage(ctx, bus)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			closeAll(st.closers)
		}
	}()

	if b.cfg.Cache.Enabled {
		if err := b.attachCache(ctx, st, bus); err != nil {
			return nil, err
		}
	}

	service := topologyapp.NewApplicationService(st.repo, st.uowFactory, bus, topology.NewIDAllocator(), codec.NewRegistry())
	if err := service.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap id allocator: %w", err)
	}

	engine := api.NewEngine(b.cfg,
		health.NewController(b.cfg, st.deps...),
		apitopology.NewController(service, hub),
	)

	server := &http.Server{
		Addr:         ":" + b.cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
	}

	return &App{
		config:  b.cfg,
		server:  server,
		hub:     hub,
		closers: st.closers,
	}, nil
}

func (b *AppBuilder) openStorage(ctx context.Context, publisher shared.DomainEventPublisher) (*storage, error) {
	retryCfg := retry.FromAppConfig(b.cfg)

	switch b.cfg.Database.Driver {
	case config.DriverMySQL:
		db, err := mysql.NewConfig(b.cfg.Database).Connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return &storage{
			repo:       mysql.NewTopologyRepository(db),
			uowFactory: mysql.NewUnitOfWorkFactory(db, retryCfg, publisher),
			deps: []health.Dependency{{
				Name: "database",
				Ping: func(ctx context.Context) error { return mysql.Ping(ctx, db) },
			}},
			closers: []func() error{func() error { return mysql.Close(db) }},
		}, nil

	case config.DriverSQLite:
		path := b.cfg.Database.SQLitePath
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		logger.Info("SQLite opened", zap.String("path", path))
		return &storage{
			repo:       sqlite.NewRepository(db),
			uowFactory: sqlite.NewUnitOfWorkFactory(db, retryCfg, publisher),
			deps:       []health.Dependency{{Name: "database", Ping: pingSQL(db)}},
			closers:    []func() error{db.Close},
		}, nil

	case config.DriverMemory, "":
		logger.Warn("Using in-memory persistence, data is lost on restart")
		return &storage{
			repo:       mocks.NewMockTopologyRepository(),
			uowFactory: mocks.NewMockUnitOfWorkFactory(publisher),
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", b.cfg.Database.Driver)
}

// attachCache 用 redis 读穿缓存包装仓储，并订阅事件做提交后失效
func (b *AppBuilder) attachCache(ctx context.Context, st *storage, bus *shared.EventBus) error {
	client, err := cache.NewRedisClient(ctx, b.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	st.closers = append(st.closers, client.Close)

	cached := cache.NewRepository(st.repo, cache.NewRedisStore(client), b.cfg.Cache.TTL, b.cfg.Cache.Prefix)
	if err := bus.Subscribe(shared.AllEvents, cached.InvalidationHandler()); err != nil {
		return err
	}
	st.repo = cached
	st.deps = append(st.deps, health.Dependency{
		Name: "cache",
		Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})

	logger.Info("Topology cache enabled",
		zap.String("addr", b.cfg.Cache.Addr),
		zap.Duration("ttl", b.cfg.Cache.TTL))
	return nil
}

func pingSQL(db *sql.DB) func(ctx context.Context) error {
	return db.PingContext
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
