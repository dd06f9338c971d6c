// Package main implements dialerctl, the operator CLI for the outbound dialer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"outbound-dialer/internal/app"
	"outbound-dialer/internal/config"
	"outbound-dialer/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "dialerctl",
	Short:         "Operate the outbound campaign dialer",
	Long:          "dialerctl applies schema migrations, mints development tokens, recovers interrupted campaign runs and manages account credits.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the process logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel).With("component", "dialerctl")
	slog.SetDefault(log)
	return cfg, log, nil
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, log)
}
