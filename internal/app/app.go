// Package app builds the process-wide dependencies shared by the dialer binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"outbound-dialer/internal/audit"
	"outbound-dialer/internal/campaigns"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/credits"
	"outbound-dialer/internal/dialer"
	"outbound-dialer/internal/telephony"
	"outbound-dialer/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// App holds open connections and the services built on them.
type App struct {
	Config config.Config
	Log    *slog.Logger

	DB    *sql.DB
	Redis *redis.Client

	Tuning  config.TuningSource
	watcher *config.TuningWatcher

	Campaigns *campaigns.PostgresStore
	Ledger    *credits.PostgresLedger
	Audit     *audit.Service
	Clients   telephony.ClientFactory
	Dialer    *dialer.Orchestrator
}

// Open connects to Postgres and Redis and wires the dialer. The caller sets a launcher.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	a.Tuning = config.StaticTuning(cfg.Dialer)
	if cfg.App.TuningFile != "" {
		w, err := config.NewTuningWatcher(cfg.App.TuningFile, cfg.Dialer, log)
		if err != nil {
			return nil, fmt.Errorf("tuning file: %w", err)
		}
		a.watcher = w
		a.Tuning = w
	}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}
	a.DB = db

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis init: %w", err)
	}
	a.Redis = rdb

	a.Campaigns = campaigns.NewPostgresStore(db)
	a.Ledger = credits.NewPostgresLedger(db)
	a.Audit = audit.NewService(audit.NewPostgresRepo(db))
	a.Clients = RetellFactory(cfg.Telephony.BaseURL, a.Tuning)

	opts := dialer.Options{
		Store:               a.Campaigns,
		Credits:             a.Ledger,
		Clients:             a.Clients,
		Tuning:              a.Tuning,
		Leaser:              dialer.NewRedisLeaser(rdb),
		Audit:               a.Audit,
		PurchaseURLTemplate: cfg.Billing.PurchaseURLTemplate,
		Logger:              log,
	}
	if t := a.Tuning.Current(); t.AccountInflightCap > 0 {
		opts.Limiter = dialer.NewRedisInflightLimiter(rdb, t.AccountInflightCap, t.LeaseTTL, 0)
	}
	orch, err := dialer.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dialer = orch
	return a, nil
}

// RetellFactory builds per-account provider clients from the tuning in effect at construction.
func RetellFactory(baseURL string, tuning config.TuningSource) telephony.ClientFactory {
	hc := &http.Client{}
	return func(apiKey string) telephony.Client {
		t := tuning.Current()
		return telephony.NewRetellClient(apiKey, telephony.RetellOptions{
			BaseURL:     baseURL,
			HTTPClient:  hc,
			Timeout:     t.ProviderTimeout,
			MaxRetries:  t.CallRetries,
			BackoffBase: t.RetryBase,
		})
	}
}

// WatchTuning reloads the tuning file until ctx is done. It is a no-op without a file.
func (a *App) WatchTuning(ctx context.Context) {
	if a.watcher == nil {
		return
	}
	go func() {
		if err := a.watcher.Run(ctx); err != nil && ctx.Err() == nil {
			a.Log.Error("tuning watcher stopped", "err", err)
		}
	}()
}

// DialAMQP opens a connection and channel to the run queue broker.
func (a *App) DialAMQP() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(a.Config.Jobs.AMQPURL)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	return conn, ch, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
