package main

import (
	"context"
	"os"
	"time"

	"bilancio/internal/cli"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting recurring-worker",
		"backend", cfg.DataBackend,
		"owner", cfg.User,
		"interval", cfg.RecurringCheckInterval)

	session, closeSession, err := cli.OpenSession(context.Background(), logger, cfg, nil)
	if err != nil {
		logger.Error("Failed to open session", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeSession()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Run initial processing on startup
	res, err := session.Start(ctx)
	if err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete",
			"transactions_created", len(res.Created),
			"flagged", len(res.Flagged),
			"failed", res.Failed)
	}

	ticker := time.NewTicker(cfg.RecurringCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Recurring-worker shutdown complete")
			return
		case now := <-ticker.C:
			// Other processes may have edited the definitions since the last
			// pass, so every pass starts from a fresh load. The session runs
			// at most one check per calendar day; later ticks pick up the
			// next day.
			if err := session.Load(ctx); err != nil {
				logger.Error("Reload failed, skipping pass", "error", err)
				continue
			}
			res, err := session.RunRecurring(ctx)
			if err != nil {
				logger.Error("Periodic processing failed", "error", err)
				continue
			}
			if res.Skipped {
				logger.Debug("Recurring check already ran today")
				continue
			}
			logger.Info("Periodic processing complete",
				"transactions_created", len(res.Created),
				"flagged", len(res.Flagged),
				"failed", res.Failed,
				"next_check", now.Add(cfg.RecurringCheckInterval).Format("15:04:05"))
		}
	}
}
