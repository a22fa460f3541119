package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

// saveAttempts bounds how often the advanced definitions are written before
// the pass is rolled back.
const saveAttempts = 3

// RecurringProcessor runs a scheduling pass and persists its outcome: each
// materialized transaction is stored, then the advanced definitions are saved.
type RecurringProcessor struct {
	scheduler    *Scheduler
	transactions *TransactionService
	recurring    store.RecurringStore
}

func NewRecurringProcessor(scheduler *Scheduler, transactions *TransactionService, recurring store.RecurringStore) *RecurringProcessor {
	return &RecurringProcessor{
		scheduler:    scheduler,
		transactions: transactions,
		recurring:    recurring,
	}
}

// ProcessResult reports a persisted pass.
type ProcessResult struct {
	Created     []core.Transaction
	Definitions []core.RecurringDefinition
	Flagged     []FlaggedDefinition
	// Failed counts occurrences whose transaction could not be stored, or
	// was rolled back; their definitions were left unadvanced.
	Failed int
	// Skipped is set when the daily check already ran and nothing was done.
	Skipped bool
}

// ProcessDue loads the definitions from the store and processes them.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (ProcessResult, error) {
	if p.recurring == nil {
		return ProcessResult{}, errors.New("processor not properly initialized")
	}
	defs, err := p.recurring.LoadRecurring(ctx)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("load recurring definitions: %w", err)
	}
	return p.Process(ctx, defs, today)
}

// Process fires the due definitions in defs. A definition is only advanced
// once its transaction has been stored, so a failed write is retried on the
// next pass. The definitions are saved when at least one advanced; if that
// save keeps failing, the stored transactions are deleted again and the
// definitions keep their previous occurrence.
func (p *RecurringProcessor) Process(ctx context.Context, defs []core.RecurringDefinition, today core.Date) (ProcessResult, error) {
	if p.scheduler == nil || p.transactions == nil || p.recurring == nil {
		return ProcessResult{}, errors.New("processor not properly initialized")
	}

	run := p.scheduler.Run(defs, today)
	res := ProcessResult{
		Definitions: append([]core.RecurringDefinition(nil), defs...),
		Flagged:     run.Flagged,
	}

	slog.InfoContext(ctx, "Processing recurring definitions",
		"total", len(defs),
		"due", len(run.Occurrences)+len(run.Flagged),
		"processing_date", today.String())

	for _, f := range run.Flagged {
		slog.WarnContext(ctx, "Recurring definition cannot be advanced",
			"recurring_id", f.DefinitionID,
			"error", f.Err)
	}

	var applied []int
	for _, occ := range run.Occurrences {
		created, err := p.transactions.CreateTransaction(ctx, occ.Transaction)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from recurring definition",
				"recurring_id", occ.Next.ID,
				"description", occ.Next.Description,
				"error", err)
			res.Failed++
			continue
		}
		res.Created = append(res.Created, created)
		res.Definitions[occ.Index] = occ.Next
		applied = append(applied, occ.Index)

		slog.InfoContext(ctx, "Created transaction from recurring definition",
			"recurring_id", occ.Next.ID,
			"transaction_id", created.ID,
			"amount_cents", created.Amount.Cents,
			"frequency", occ.Next.Frequency,
			"next_occurrence", occ.Next.NextOccurrence)
	}

	if len(res.Created) > 0 {
		if err := p.saveDefinitions(ctx, res.Definitions); err != nil {
			p.rollback(ctx, &res, defs, applied)
			return res, fmt.Errorf("save recurring definitions: %w", err)
		}
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"created", len(res.Created),
		"flagged", len(res.Flagged),
		"failed", res.Failed)

	return res, nil
}

func (p *RecurringProcessor) saveDefinitions(ctx context.Context, defs []core.RecurringDefinition) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = p.recurring.SaveRecurring(ctx, defs); err == nil {
			return nil
		}
		slog.WarnContext(ctx, "Failed to save recurring definitions",
			"attempt", attempt,
			"error", err)
		if attempt == saveAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return err
}

// rollback deletes the transactions of a pass whose definitions could not be
// saved and restores those definitions in res. A transaction that cannot be
// deleted stays in res.Created with its definition advanced, matching what
// the transaction store holds.
func (p *RecurringProcessor) rollback(ctx context.Context, res *ProcessResult, original []core.RecurringDefinition, applied []int) {
	ctx = context.WithoutCancel(ctx)
	kept := make([]core.Transaction, 0, len(res.Created))
	for i, t := range res.Created {
		idx := applied[i]
		if err := p.transactions.DeleteTransaction(ctx, t.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to roll back recurring transaction",
				"recurring_id", original[idx].ID,
				"transaction_id", t.ID,
				"error", err)
			kept = append(kept, t)
			continue
		}
		res.Definitions[idx] = original[idx]
		res.Failed++
	}
	res.Created = kept
}
