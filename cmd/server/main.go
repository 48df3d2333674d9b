// Command server 拓扑 HTTP/WebSocket 服务
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"microgrid/cmd"
	"microgrid/config"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "", "config file (yaml)")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println(cfg.App.Name, cfg.App.Version)
		return
	}
	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}

	code := 0
	if err := serve(cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	os.Exit(code)
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cmd.NewBuilder(cfg).Build(ctx)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return app.Run(ctx)
}
