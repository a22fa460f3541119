// Package storage is the SQLite repository: every collection of every owner,
// plus the per-transaction sync state used to mirror transactions elsewhere.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/store"

	_ "modernc.org/sqlite"
)

// MaxSyncAttempts bounds how often a transaction is offered for mirroring.
const MaxSyncAttempts = 5

// SQLiteRepository serves one owner's data. Views for other owners share the
// same connection pool (see ForOwner).
type SQLiteRepository struct {
	db    *sql.DB
	owner string
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath, owner string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, owner: owner}, nil
}

// ForOwner returns a view of the same database scoped to owner. Closing any
// view closes the shared pool.
func (r *SQLiteRepository) ForOwner(owner string) *SQLiteRepository {
	return &SQLiteRepository{db: r.db, owner: owner}
}

func (r *SQLiteRepository) Owner() string {
	return r.owner
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, description, amount_cents, category, date, owner
		FROM transactions
		WHERE owner = ? AND deleted_at IS NULL
		ORDER BY date, id`, r.owner)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(&t.ID, &t.Type, &t.Description, &t.Amount.Cents, &t.Category, &t.Date, &t.Owner); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppendTransaction inserts t as pending sync and returns its id.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner, type, description, amount_cents, category, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, r.owner, string(t.Type), t.Description, t.Amount.Cents, t.Category, t.Date)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"owner", r.owner,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"date", t.Date)

	return strconv.FormatInt(t.ID, 10), nil
}

// DeleteTransaction soft-deletes the row and queues the deletion for sync.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET deleted_at = CURRENT_TIMESTAMP, sync_status = 'pending', sync_attempts = 0, last_sync_error = NULL
		WHERE owner = ? AND id = ? AND deleted_at IS NULL`, r.owner, id)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// SyncRecord is a transaction together with its mirroring state.
type SyncRecord struct {
	Transaction core.Transaction
	Deleted     bool
	Synced      bool
	Attempts    int
	CreatedAt   time.Time
}

// GetTransaction returns one transaction of any owner, deleted or not.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner string, id int64) (SyncRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, description, amount_cents, category, date, owner,
		       deleted_at IS NOT NULL, sync_status = 'synced', sync_attempts, created_at
		FROM transactions
		WHERE owner = ? AND id = ?`, owner, id)
	rec, err := scanSyncRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRecord{}, fmt.Errorf("transaction %d: %w", id, store.ErrNotFound)
	}
	return rec, err
}

// PendingSync returns up to limit transactions of any owner waiting to be
// mirrored, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]SyncRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, description, amount_cents, category, date, owner,
		       deleted_at IS NOT NULL, sync_status = 'synced', sync_attempts, created_at
		FROM transactions
		WHERE sync_status IN ('pending', 'error') AND sync_attempts < ?
		ORDER BY created_at, id
		LIMIT ?`, MaxSyncAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	defer rows.Close()

	var out []SyncRecord
	for rows.Next() {
		rec, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncRecord(s scanner) (SyncRecord, error) {
	var (
		rec       SyncRecord
		createdAt any
	)
	t := &rec.Transaction
	if err := s.Scan(&t.ID, &t.Type, &t.Description, &t.Amount.Cents, &t.Category, &t.Date, &t.Owner,
		&rec.Deleted, &rec.Synced, &rec.Attempts, &createdAt); err != nil {
		return SyncRecord{}, fmt.Errorf("scan sync record: %w", err)
	}
	rec.CreatedAt = parseTimestamp(createdAt)
	return rec, nil
}

// parseTimestamp accepts the driver's time.Time or SQLite's text form.
func parseTimestamp(v any) time.Time {
	switch ts := v.(type) {
	case time.Time:
		return ts
	case string:
		if t, err := time.Parse(time.DateTime, ts); err == nil {
			return t
		}
	case []byte:
		if t, err := time.Parse(time.DateTime, string(ts)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MarkSynced records a successful mirror. Deleted rows are purged once their
// deletion has been mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, owner string, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE owner = ? AND id = ? AND deleted_at IS NOT NULL`, owner, id); err != nil {
		return fmt.Errorf("purge deleted transaction: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'synced', last_sync_error = NULL
		WHERE owner = ? AND id = ?`, owner, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "owner", owner)
	return nil
}

// MarkSyncError records a failed mirror attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, owner string, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET sync_status = 'error', sync_attempts = sync_attempts + 1, last_sync_error = ?
		WHERE owner = ? AND id = ?`, msg, owner, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "owner", owner, "error", msg)
	return nil
}

// RetryFailedSyncs makes every exhausted transaction eligible again.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'pending', sync_attempts = 0
		WHERE sync_status = 'error'`)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return res.RowsAffected()
}

// SyncStats counts transactions per sync status.
type SyncStats struct {
	Pending int64
	Synced  int64
	Failed  int64
}

func (r *SQLiteRepository) SyncStats(ctx context.Context) (SyncStats, error) {
	var s SyncStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN sync_status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sync_status = 'synced' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sync_status = 'error' THEN 1 ELSE 0 END), 0)
		FROM transactions`).Scan(&s.Pending, &s.Synced, &s.Failed)
	if err != nil {
		return SyncStats{}, fmt.Errorf("sync stats: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) LoadBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, limit_cents, alert_enabled
		FROM budgets WHERE owner = ? ORDER BY position`, r.owner)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.Limit.Cents, &b.AlertEnabled); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	return r.replaceAll(ctx, "budgets", len(budgets), func(tx *sql.Tx, i int) error {
		b := budgets[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budgets (id, owner, position, category, limit_cents, alert_enabled)
			VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, r.owner, i, b.Category, b.Limit.Cents, b.AlertEnabled)
		return err
	})
}

func (r *SQLiteRepository) LoadRecurring(ctx context.Context) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, description, amount_cents, category, frequency, next_occurrence, active, owner
		FROM recurring WHERE owner = ? ORDER BY position`, r.owner)
	if err != nil {
		return nil, fmt.Errorf("query recurring: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringDefinition
	for rows.Next() {
		var d core.RecurringDefinition
		if err := rows.Scan(&d.ID, &d.Type, &d.Description, &d.Amount.Cents, &d.Category,
			&d.Frequency, &d.NextOccurrence, &d.Active, &d.Owner); err != nil {
			return nil, fmt.Errorf("scan recurring: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveRecurring(ctx context.Context, defs []core.RecurringDefinition) error {
	return r.replaceAll(ctx, "recurring", len(defs), func(tx *sql.Tx, i int) error {
		d := defs[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recurring (id, owner, position, type, description, amount_cents, category, frequency, next_occurrence, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, r.owner, i, string(d.Type), d.Description, d.Amount.Cents, d.Category,
			string(d.Frequency), d.NextOccurrence, d.Active)
		return err
	})
}

func (r *SQLiteRepository) LoadGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, target_cents, current_cents, deadline, icon
		FROM goals WHERE owner = ? ORDER BY position`, r.owner)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var g core.Goal
		if err := rows.Scan(&g.ID, &g.Name, &g.Target.Cents, &g.Current.Cents, &g.Deadline, &g.Icon); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveGoals(ctx context.Context, goals []core.Goal) error {
	return r.replaceAll(ctx, "goals", len(goals), func(tx *sql.Tx, i int) error {
		g := goals[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goals (id, owner, position, name, target_cents, current_cents, deadline, icon)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, r.owner, i, g.Name, g.Target.Cents, g.Current.Cents, g.Deadline, g.Icon)
		return err
	})
}

// replaceAll swaps the owner's rows of table for n new rows in one
// transaction. table is always a constant from this package.
func (r *SQLiteRepository) replaceAll(ctx context.Context, table string, n int, insert func(*sql.Tx, int) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s save: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE owner = ?", r.owner); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	for i := 0; i < n; i++ {
		if err := insert(tx, i); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s save: %w", table, err)
	}
	return nil
}
