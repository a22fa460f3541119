package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bilancio/internal/storage"
	"bilancio/internal/store"
)

// SyncQueue is the SQLite side of the mirror: transactions waiting to be
// copied to (or removed from) the remote store.
type SyncQueue interface {
	PendingSync(ctx context.Context, limit int) ([]storage.SyncRecord, error)
	MarkSynced(ctx context.Context, owner string, id int64) error
	MarkSyncError(ctx context.Context, owner string, id int64, cause error) error
	SyncStats(ctx context.Context) (storage.SyncStats, error)
	RetryFailedSyncs(ctx context.Context) (int64, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

// SyncProcessor mirrors queued SQLite transactions to a remote store. It is
// driven both by AMQP messages (Sync) and by its own polling loop, which
// catches whatever the messages missed.
type SyncProcessor struct {
	queue  SyncQueue
	mirror store.TransactionStore
	config SyncProcessorConfig

	// syncMu keeps the message handler and the poller from mirroring the
	// same record twice.
	syncMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(queue SyncQueue, mirror store.TransactionStore, config SyncProcessorConfig) *SyncProcessor {
	def := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	return &SyncProcessor{
		queue:  queue,
		mirror: mirror,
		config: config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.processLogged(ctx, p.config.BatchSize)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processLogged(ctx, p.config.BatchSize)
		}
	}
}

func (p *SyncProcessor) processLogged(ctx context.Context, limit int) {
	res, err := p.ProcessPending(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to process sync batch", "error", err)
		return
	}
	if res.Synced+res.Failed > 0 {
		slog.InfoContext(ctx, "Sync batch processed", "synced", res.Synced, "failed", res.Failed)
	}
}

// SyncBatchResult counts the outcome of one ProcessPending call.
type SyncBatchResult struct {
	Synced int
	Failed int
}

// ProcessPending mirrors up to limit queued transactions. A failure on one
// record is recorded against it and does not stop the batch.
func (p *SyncProcessor) ProcessPending(ctx context.Context, limit int) (SyncBatchResult, error) {
	var res SyncBatchResult
	records, err := p.queue.PendingSync(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("get pending transactions: %w", err)
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := p.Sync(ctx, rec); err != nil {
			res.Failed++
			continue
		}
		res.Synced++
	}
	return res, nil
}

// Sync mirrors one record and records the outcome in the queue. Already
// synced records are skipped; a delete of a row the remote never had counts
// as done.
func (p *SyncProcessor) Sync(ctx context.Context, rec storage.SyncRecord) error {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	t := rec.Transaction
	if rec.Synced {
		slog.DebugContext(ctx, "Transaction already synced", "id", t.ID, "owner", t.Owner)
		return nil
	}

	var err error
	if rec.Deleted {
		err = p.mirror.DeleteTransaction(ctx, t.ID)
		if errors.Is(err, store.ErrNotFound) {
			err = nil
		}
	} else {
		var ref string
		ref, err = p.mirror.AppendTransaction(ctx, t)
		if err == nil {
			slog.InfoContext(ctx, "Synced transaction", "id", t.ID, "owner", t.Owner, "ref", ref)
		}
	}

	if err != nil {
		slog.WarnContext(ctx, "Sync failed",
			"id", t.ID,
			"owner", t.Owner,
			"deleted", rec.Deleted,
			"attempt", rec.Attempts+1,
			"error", err)
		if markErr := p.queue.MarkSyncError(ctx, t.Owner, t.ID, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", t.ID, "error", markErr)
		}
		return err
	}

	if err := p.queue.MarkSynced(ctx, t.Owner, t.ID); err != nil {
		// The mirror already has the change; the record is picked up again
		// and skipped once its status is written.
		slog.ErrorContext(ctx, "Failed to mark transaction synced", "id", t.ID, "error", err)
		return err
	}
	return nil
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncStats, error) {
	return p.queue.SyncStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.queue.RetryFailedSyncs(ctx)
}
