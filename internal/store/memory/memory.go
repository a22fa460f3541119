// Package memory keeps an owner's collections in process memory, optionally
// mirrored to JSON files in a directory (family-budget-<kind>-<owner>.json).
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

const (
	kindTransactions = "transactions"
	kindBudgets      = "budgets"
	kindRecurring    = "recurring"
	kindGoals        = "goals"
)

type Store struct {
	mu    sync.Mutex
	owner string
	dir   string // empty: no file persistence

	txs       []core.Transaction
	budgets   []core.Budget
	recurring []core.RecurringDefinition
	goals     []core.Goal
}

var _ store.Store = (*Store)(nil)

// New returns a purely in-memory store.
func New(owner string) *Store {
	return &Store{owner: owner}
}

// NewFromDir returns a store backed by JSON files under dir. Existing files
// are read once; every save rewrites the affected file.
func NewFromDir(dir, owner string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := &Store{owner: owner, dir: dir}

	var err error
	if s.txs, err = readCollection[core.Transaction](s.path(kindTransactions)); err != nil {
		return nil, err
	}
	if s.budgets, err = readCollection[core.Budget](s.path(kindBudgets)); err != nil {
		return nil, err
	}
	if s.recurring, err = readCollection[core.RecurringDefinition](s.path(kindRecurring)); err != nil {
		return nil, err
	}
	if s.goals, err = readCollection[core.Goal](s.path(kindGoals)); err != nil {
		return nil, err
	}
	return s, nil
}

// FileName is the file a collection of kind is persisted to for owner.
func FileName(kind, owner string) string {
	return fmt.Sprintf("family-budget-%s-%s.json", kind, owner)
}

func (s *Store) path(kind string) string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, FileName(kind, s.owner))
}

func (s *Store) LoadTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...), nil
}

// AppendTransaction stores t and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.Owner == "" {
		t.Owner = s.owner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(append([]core.Transaction(nil), s.txs...), t)
	if err := writeCollection(s.path(kindTransactions), next); err != nil {
		return "", err
	}
	s.txs = next
	return fmt.Sprintf("mem:%d", len(s.txs)), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]core.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		if t.ID != id {
			next = append(next, t)
		}
	}
	if len(next) == len(s.txs) {
		return fmt.Errorf("transaction %d: %w", id, store.ErrNotFound)
	}
	if err := writeCollection(s.path(kindTransactions), next); err != nil {
		return err
	}
	s.txs = next
	return nil
}

func (s *Store) LoadBudgets(_ context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Budget(nil), s.budgets...), nil
}

func (s *Store) SaveBudgets(_ context.Context, budgets []core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeCollection(s.path(kindBudgets), budgets); err != nil {
		return err
	}
	s.budgets = append([]core.Budget(nil), budgets...)
	return nil
}

func (s *Store) LoadRecurring(_ context.Context) ([]core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RecurringDefinition(nil), s.recurring...), nil
}

func (s *Store) SaveRecurring(_ context.Context, defs []core.RecurringDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeCollection(s.path(kindRecurring), defs); err != nil {
		return err
	}
	s.recurring = append([]core.RecurringDefinition(nil), defs...)
	return nil
}

func (s *Store) LoadGoals(_ context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Goal(nil), s.goals...), nil
}

func (s *Store) SaveGoals(_ context.Context, goals []core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeCollection(s.path(kindGoals), goals); err != nil {
		return err
	}
	s.goals = append([]core.Goal(nil), goals...)
	return nil
}

// readCollection decodes a JSON array record by record. A record that does
// not decode is logged and dropped; a missing file is an empty collection.
func readCollection[T any](path string) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	out, skipped, err := DecodeRecords[T](b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if skipped > 0 {
		slog.Warn("Skipped malformed records", "file", filepath.Base(path), "skipped", skipped)
	}
	return out, nil
}

// DecodeRecords decodes a JSON array of T leniently, returning the records
// that decoded and how many were dropped. Only a payload that is not an array
// at all is an error.
func DecodeRecords[T any](b []byte) ([]T, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, 0, err
	}
	out := make([]T, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped, nil
}

func writeCollection[T any](path string, items []T) error {
	if path == "" {
		return nil
	}
	if items == nil {
		items = []T{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
