package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/store"
)

// SyncPublisher announces stored transactions to downstream mirrors.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id int64, owner string) error
	Close() error
}

// TransactionService stores transactions and publishes a sync message for
// each one it stores.
type TransactionService struct {
	store     store.TransactionStore
	publisher SyncPublisher
	ids       core.IDGenerator
	owner     string
}

// NewTransactionService wires a store with an optional publisher (nil
// disables sync messages).
func NewTransactionService(s store.TransactionStore, publisher SyncPublisher, ids core.IDGenerator, owner string) *TransactionService {
	if ids == nil {
		ids = core.NewTimestampIDs()
	}
	return &TransactionService{store: s, publisher: publisher, ids: ids, owner: owner}
}

// CreateTransaction validates t, assigns an id and owner when missing and
// stores it. The stored record is returned.
func (s *TransactionService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if s.store == nil {
		return core.Transaction{}, errors.New("transaction service not properly initialized")
	}
	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	if t.ID == 0 {
		t.ID = s.ids.NextID()
	}
	if t.Owner == "" {
		t.Owner = s.owner
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	ref, err := s.store.AppendTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogTransactionCreated(ctx, t, ref)

	if err := s.publishSync(ctx, t); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", t.ID, "error", err)
		// The transaction is stored; mirrors catch up from the sync column.
	}
	return t, nil
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *TransactionService) publishSync(ctx context.Context, t core.Transaction) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishTransactionSync(ctx, t.ID, t.Owner)
}

// Close releases the publisher connection.
func (s *TransactionService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
