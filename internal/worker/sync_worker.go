// Package worker consumes transaction-sync messages and mirrors the SQLite
// transactions they name to the remote spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/store"
)

// RecordReader looks up a queued transaction by owner and id.
type RecordReader interface {
	GetTransaction(ctx context.Context, owner string, id int64) (storage.SyncRecord, error)
}

// SyncWorker handles synchronization of transactions from SQLite to Google Sheets
type SyncWorker struct {
	records   RecordReader
	processor *services.SyncProcessor
	batchSize int
}

func NewSyncWorker(records RecordReader, processor *services.SyncProcessor, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = services.DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncWorker{
		records:   records,
		processor: processor,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP.
// A returned error makes the consumer requeue the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"owner", msg.Owner,
		"timestamp", msg.Timestamp)

	rec, err := w.records.GetTransaction(ctx, msg.Owner, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted and already mirrored; nothing left to do.
		slog.InfoContext(ctx, "Transaction no longer queued, skipping", "id", msg.ID, "owner", msg.Owner)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.processor.Sync(ctx, rec); err != nil {
		return fmt.Errorf("sync transaction to sheets: %w", err)
	}
	return nil
}

// StartupSyncCheck syncs whatever is still pending at worker startup, to
// recover from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	res, err := w.processor.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}

	if res.Synced+res.Failed == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"synced", res.Synced,
		"errors", res.Failed)
	return nil
}
