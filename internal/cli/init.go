// Package cli provides common process initialization shared by
// cmd/bilancio, cmd/bilancio-worker, cmd/recurring-worker and bilancioctl.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/analytics"
	"bilancio/internal/backend"
	"bilancio/internal/config"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

// SetupLogger installs a text logger on stdout at level (debug, info, warn
// or error) as the default logger and returns it.
func SetupLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: applog.ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Bootstrap loads .env, configures logging from LOG_LEVEL and returns the
// validated configuration.
func Bootstrap() (*config.Config, *slog.Logger) {
	LoadEnvFile()
	logger := SetupLogger(os.Getenv("LOG_LEVEL"))
	return LoadAndValidateConfig(logger), logger
}

// OpenSession creates the configured backend and a session over it. The
// returned cleanup closes the session publisher and the backend.
func OpenSession(ctx context.Context, logger *slog.Logger, cfg *config.Config, clock core.Clock) (*services.Session, func(), error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s backend: %w", cfg.DataBackend, err)
	}

	if clock == nil {
		loc, err := cfg.Location()
		if err != nil {
			if res.Cleanup != nil {
				_ = res.Cleanup()
			}
			return nil, nil, err
		}
		clock = core.SystemClock{Location: loc}
	}

	session := services.NewSession(res.Store, res.Publisher, clock, nil, services.SessionConfig{
		Owner: cfg.User,
		Forecast: analytics.ForecastParams{
			HistoryMonths: cfg.ForecastHistoryMonths,
			FutureMonths:  cfg.ForecastFutureMonths,
		},
	})

	cleanup := func() {
		if err := session.Close(); err != nil {
			logger.Warn("Failed to close sync publisher", "error", err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Failed to close backend", "error", err)
			}
		}
	}
	return session, cleanup, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed once it returns.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
