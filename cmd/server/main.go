package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plugwatch/plugwatch/internal/config"
	"github.com/plugwatch/plugwatch/internal/debounce"
	"github.com/plugwatch/plugwatch/internal/engine"
	"github.com/plugwatch/plugwatch/internal/feed"
	"github.com/plugwatch/plugwatch/internal/httpapi"
	"github.com/plugwatch/plugwatch/internal/logging"
	"github.com/plugwatch/plugwatch/internal/metrics"
	"github.com/plugwatch/plugwatch/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		os.Exit(1)
	}

	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	metrics.Init()

	broadcaster := feed.New(repo, logger)
	filter := debounce.New(repo, logger)
	eng := engine.New(repo, filter, broadcaster, cfg.Timezone, logger)

	heartbeat := engine.NewHeartbeat(repo, cfg.HeartbeatInterval, logger)
	go heartbeat.Run(ctx)
	heartbeat.Kick()

	api := httpapi.New(eng, repo, broadcaster, cfg.Timezone, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr, "db", cfg.DBPath)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
