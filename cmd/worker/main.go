package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"outbound-dialer/internal/app"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/jobs"
	"outbound-dialer/pkg/logger"
)

// The worker consumes campaign run requests from the durable queue.
func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel).With("component", "worker")
	slog.SetDefault(log)

	if cfg.Jobs.AMQPURL == "" {
		log.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	a, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		log.Error("init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	a.WatchTuning(rootCtx)

	conn, ch, err := a.DialAMQP()
	if err != nil {
		log.Error("amqp init failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	log.Info("worker consuming", "queue", cfg.Jobs.Queue, "prefetch", cfg.Jobs.Prefetch)
	err = jobs.Consume(rootCtx, ch, cfg.Jobs.Queue, cfg.Jobs.Prefetch, a.Dialer, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", "err", err)
	}

	log.Info("worker stopped")
}
