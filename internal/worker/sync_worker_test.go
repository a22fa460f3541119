package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/store/memory"
)

func setup(t *testing.T) (*storage.SQLiteRepository, *memory.Store, *SyncWorker) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"), "anna")
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	mirror := memory.New("")
	proc := services.NewSyncProcessor(repo, mirror, services.DefaultSyncProcessorConfig())
	return repo, mirror, NewSyncWorker(repo, proc, 2)
}

func tx(id int64) core.Transaction {
	return core.Transaction{
		ID: id, Type: core.Income, Description: "Stipendio",
		Amount: core.Money{Cents: 250000}, Category: "Stipendio", Date: "2024-04-27",
	}
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	repo, mirror, w := setup(t)

	if _, err := repo.AppendTransaction(ctx, tx(42)); err != nil {
		t.Fatalf("AppendTransaction: %v", err)
	}
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(42, "anna")); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}
	got, _ := mirror.LoadTransactions(ctx)
	if len(got) != 1 || got[0].ID != 42 {
		t.Fatalf("mirror = %+v", got)
	}

	// A redelivered message must not duplicate the row.
	if err := w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(42, "anna")); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if got, _ := mirror.LoadTransactions(ctx); len(got) != 1 {
		t.Fatalf("redelivery duplicated the row: %+v", got)
	}
}

func TestHandleSyncMessageUnknownTransactionIsAcked(t *testing.T) {
	_, _, w := setup(t)
	if err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage(7, "anna")); err != nil {
		t.Fatalf("expected nil for a purged transaction, got %v", err)
	}
}

type brokenReader struct{}

func (brokenReader) GetTransaction(context.Context, string, int64) (storage.SyncRecord, error) {
	return storage.SyncRecord{}, errors.New("database is locked")
}

func TestHandleSyncMessageStorageErrorRequeues(t *testing.T) {
	w := NewSyncWorker(brokenReader{}, nil, 0)
	if err := w.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage(1, "anna")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	repo, mirror, w := setup(t)

	for _, id := range []int64{1, 2, 3} {
		if _, err := repo.AppendTransaction(ctx, tx(id)); err != nil {
			t.Fatalf("AppendTransaction: %v", err)
		}
	}
	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("StartupSyncCheck: %v", err)
	}
	if got, _ := mirror.LoadTransactions(ctx); len(got) != 3 {
		t.Fatalf("mirror has %d rows, want 3", len(got))
	}
	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("second StartupSyncCheck: %v", err)
	}
}
