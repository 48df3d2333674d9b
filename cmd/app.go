package cmd

import (
	"context"
	"errors"
	"net/http"

	"microgrid/api/stream"
	"microgrid/config"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
)

// App 装配完成的 HTTP 服务
type App struct {
	config  *config.Config
	server  *http.Server
	hub     *stream.Hub
	closers []func() error
}

// Handler 供测试直接驱动路由
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run 阻塞直到 ctx 取消，随后优雅关闭
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.release()
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", zap.Duration("timeout", a.config.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	// websocket 连接不受 Shutdown 管理，先断开
	a.hub.Close()
	err := a.server.Shutdown(shutdownCtx)
	a.release()
	return err
}

func (a *App) release() {
	if err := closeAll(a.closers); err != nil {
		logger.Warn("Failed to release resources", zap.Error(err))
	}
}
