// Package store declares the persistence ports the application core depends
// on. Every adapter is bound to a single owner when it is constructed.
package store

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	TransactionReader interface {
		// LoadTransactions returns the last successfully saved transactions.
		LoadTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, id int64) error
	}

	TransactionStore interface {
		TransactionReader
		TransactionWriter
		TransactionDeleter
	}

	// BudgetStore, RecurringStore and GoalStore persist whole collections:
	// Save replaces what was stored before.
	BudgetStore interface {
		LoadBudgets(ctx context.Context) ([]core.Budget, error)
		SaveBudgets(ctx context.Context, budgets []core.Budget) error
	}

	RecurringStore interface {
		LoadRecurring(ctx context.Context) ([]core.RecurringDefinition, error)
		SaveRecurring(ctx context.Context, defs []core.RecurringDefinition) error
	}

	GoalStore interface {
		LoadGoals(ctx context.Context) ([]core.Goal, error)
		SaveGoals(ctx context.Context, goals []core.Goal) error
	}

	// Store is the full set of ports a session needs.
	Store interface {
		TransactionStore
		BudgetStore
		RecurringStore
		GoalStore
	}
)

// Composite assembles a Store from independent adapters, e.g. transactions
// on a remote backend with the other collections kept locally.
type Composite struct {
	TransactionStore
	BudgetStore
	RecurringStore
	GoalStore
}

var _ Store = Composite{}
