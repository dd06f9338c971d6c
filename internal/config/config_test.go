package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:    AppConfig{Env: "local", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "dialer"},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Auth:   AuthConfig{JWTSecret: "secret"},
		Dialer: DefaultTuning(),
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.HasPrefix(err.Error(), "config errors:") {
		t.Fatalf("expected joined errors, got %q", err)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Jobs.Launcher != LauncherInline || c.Jobs.Queue != defaultQueue {
		t.Fatalf("unexpected jobs defaults: %+v", c.Jobs)
	}
	if c.Telephony.BaseURL != defaultTelephonyBaseURL {
		t.Fatalf("unexpected base url %q", c.Telephony.BaseURL)
	}
	if !strings.Contains(c.Billing.PurchaseURLTemplate, "{account_id}") {
		t.Fatalf("purchase template must carry the account placeholder")
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %s", c.Auth.AccessTokenTTL)
	}
}

func TestValidate_AMQPLauncherNeedsURL(t *testing.T) {
	c := validLocal()
	c.Jobs.Launcher = LauncherAMQP
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when AMQP_URL is missing")
	}
}

func TestValidate_RejectsBadTuning(t *testing.T) {
	c := validLocal()
	c.Dialer.LocalConcurrency = 0
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "LocalConcurrency") {
		t.Fatalf("expected LocalConcurrency error, got %v", err)
	}
}

func TestTuningFromEnv(t *testing.T) {
	t.Setenv("DIALER_LOCAL_CONCURRENCY", "5")
	t.Setenv("DIALER_BATCH_DELAY", "250ms")
	t.Setenv("DIALER_FALLBACK_SLOTS", "many")

	got, errs := tuningFromEnv(DefaultTuning())
	if len(errs) != 1 {
		t.Fatalf("expected one parse error, got %v", errs)
	}
	if got.LocalConcurrency != 5 || got.BatchDelay != 250*time.Millisecond {
		t.Fatalf("env overrides not applied: %+v", got)
	}
	if got.FallbackSlots != 10 {
		t.Fatalf("bad value must keep the default, got %d", got.FallbackSlots)
	}
}
