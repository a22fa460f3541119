package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	applog "bilancio/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap()

	session, closeSession, err := cli.OpenSession(context.Background(), logger, cfg, nil)
	if err != nil {
		logger.Error("Failed to open session", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeSession()

	// Load the state and fire due recurring definitions once before serving.
	res, err := session.Start(context.Background())
	if err != nil {
		logger.Error("Failed to load data", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Session ready",
		"owner", cfg.User,
		"today", session.Today().String(),
		"recurring_created", len(res.Created),
		"recurring_flagged", len(res.Flagged),
		"recurring_failed", res.Failed)

	caches := cache.NewManager()
	if c := session.ForecastCache(); c != nil {
		caches.Register(c)
	}
	caches.StartCleanup(5 * time.Minute)

	srv, err := apphttp.NewServer(":"+cfg.Port, session, apphttp.ServerConfig{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger: applog.New(applog.Config{
			Handler:   logger.Handler(),
			Component: applog.ComponentHTTP,
		}),
	})
	if err != nil {
		logger.Error("Failed to configure server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
	})

	logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	slog.Info("Server stopped gracefully")
}
