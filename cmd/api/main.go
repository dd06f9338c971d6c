package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outbound-dialer/internal/app"
	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/jobs"
	"outbound-dialer/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	a, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		log.Error("init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	a.WatchTuning(rootCtx)

	// Runs outlive the request that started them; they stop with the process.
	var inline *jobs.InlineLauncher
	switch cfg.Jobs.Launcher {
	case config.LauncherAMQP:
		conn, ch, err := a.DialAMQP()
		if err != nil {
			log.Error("amqp init failed", "err", err)
			os.Exit(1)
		}
		defer conn.Close()
		launcher, err := jobs.NewAMQPLauncher(ch, cfg.Jobs.Queue)
		if err != nil {
			log.Error("amqp launcher init failed", "err", err)
			os.Exit(1)
		}
		defer launcher.Close()
		a.Dialer.UseLauncher(launcher)
	default:
		inline = jobs.NewInlineLauncher(rootCtx, a.Dialer, log)
		a.Dialer.UseLauncher(inline)
	}

	if cfg.App.RecoverOnBoot {
		n, err := a.Dialer.Recover(rootCtx)
		if err != nil {
			log.Error("campaign recovery incomplete", "err", err)
		}
		log.Info("campaign recovery finished", "launched", n)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, a, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "launcher", cfg.Jobs.Launcher)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if inline != nil {
		if err := inline.Shutdown(shutdownCtx); err != nil {
			log.Error("campaign runs did not stop in time", "err", err)
		}
	}

}
