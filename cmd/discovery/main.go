package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scoutline-hq/prospect-discovery/internal/app"
	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "discovery start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("discovery starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := monitoring.NewZapSink(logger.S.Desugar())

	discovery, err := app.NewDiscovery(ctx, cfg, log, sink)
	if err != nil {
		logger.ErrorObj("failed to initialize discovery", "error", err)
		return err
	}

	if err := discovery.Run(ctx); err != nil {
		return fmt.Errorf("discovery run: %w", err)
	}

	return nil
}
