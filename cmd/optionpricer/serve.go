package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lasource18/options-price-calculator/internal/app"
	"github.com/lasource18/options-price-calculator/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pricing HTTP and WebSocket API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(os.Stdout, cfg.LogLevel)

		redactedCfg := config.RedactedConfig(cfg)
		logger.Info("option pricer starting",
			slog.Int("port", redactedCfg.Server.Port),
			slog.String("api_key", redactedCfg.Server.APIKey),
			slog.String("redis_addr", redactedCfg.Redis.Addr),
			slog.Bool("redis_enabled", redactedCfg.Redis.Enabled),
		)

		application := app.New(cfg, logger)
		defer application.Close()

		// Setup signal handling for graceful shutdown.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := application.Run(ctx); err != nil {
			// context.Canceled is expected on clean shutdown.
			if !errors.Is(err, context.Canceled) {
				logger.Error("application exited with error",
					slog.String("error", err.Error()),
				)
				return err
			}
			logger.Info("application shut down gracefully")
		}

		logger.Info("option pricer stopped")
		return nil
	},
}
