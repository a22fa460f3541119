package services

import (
	"fmt"

	"bilancio/internal/core"
)

// Scheduler decides which recurring definitions fire on a day, builds the
// transactions they produce and steps them to their next occurrence. It
// holds no collection state; callers pass definitions in and persist what
// comes back.
type Scheduler struct {
	cal core.Calendar
	ids core.IDGenerator
}

// NewScheduler uses the Gregorian calendar and timestamp ids when cal or ids
// are nil.
func NewScheduler(cal core.Calendar, ids core.IDGenerator) *Scheduler {
	if cal == nil {
		cal = core.Gregorian{}
	}
	if ids == nil {
		ids = core.NewTimestampIDs()
	}
	return &Scheduler{cal: cal, ids: ids}
}

// Occurrence is one firing of a definition during a pass.
type Occurrence struct {
	// Index is the definition's position in the slice given to Run.
	Index       int
	Transaction core.Transaction
	// Next is the definition advanced by one period.
	Next core.RecurringDefinition
}

// FlaggedDefinition is a due definition that could not be advanced.
type FlaggedDefinition struct {
	DefinitionID int64
	Err          error
}

// RunResult is the outcome of one scheduling pass.
type RunResult struct {
	Occurrences []Occurrence
	// Definitions is the input with every fired definition replaced by its
	// advanced copy.
	Definitions []core.RecurringDefinition
	Flagged     []FlaggedDefinition
}

// Created lists the transactions materialized during the pass.
func (r RunResult) Created() []core.Transaction {
	out := make([]core.Transaction, 0, len(r.Occurrences))
	for _, o := range r.Occurrences {
		out = append(out, o.Transaction)
	}
	return out
}

// Due returns the definitions that fire on today.
func (s *Scheduler) Due(defs []core.RecurringDefinition, today core.Date) []core.RecurringDefinition {
	key := today.String()
	var out []core.RecurringDefinition
	for _, d := range defs {
		if d.IsDue(key) {
			out = append(out, d)
		}
	}
	return out
}

// Materialize builds the transaction def produces on today. The transaction
// is dated today, not at the scheduled occurrence.
func (s *Scheduler) Materialize(def core.RecurringDefinition, today core.Date) core.Transaction {
	return core.Transaction{
		ID:          s.ids.NextID(),
		Type:        def.Type,
		Description: def.Description + core.GeneratedSuffix,
		Amount:      def.Amount,
		Category:    def.Category,
		Date:        today.String(),
		Owner:       def.Owner,
	}
}

// Advance returns def with NextOccurrence moved exactly one period past its
// current value. def itself is not modified. An unknown frequency or an
// unparseable NextOccurrence is an error and the returned copy is unchanged.
func (s *Scheduler) Advance(def core.RecurringDefinition) (core.RecurringDefinition, error) {
	a, err := GetAdvancer(def.Frequency)
	if err != nil {
		return def, err
	}
	from, err := core.ParseDate(def.NextOccurrence)
	if err != nil {
		return def, fmt.Errorf("next occurrence of %d: %w", def.ID, err)
	}
	def.NextOccurrence = a.Advance(s.cal, from).String()
	return def, nil
}

// Run fires every due definition once. A definition more than one period
// behind still fires once per pass and catches up on later passes. Due
// definitions that cannot be advanced are flagged and produce nothing. The
// input slice is not modified.
func (s *Scheduler) Run(defs []core.RecurringDefinition, today core.Date) RunResult {
	res := RunResult{Definitions: append([]core.RecurringDefinition(nil), defs...)}
	key := today.String()

	for i, d := range defs {
		if !d.IsDue(key) {
			continue
		}
		next, err := s.Advance(d)
		if err != nil {
			res.Flagged = append(res.Flagged, FlaggedDefinition{DefinitionID: d.ID, Err: err})
			continue
		}
		res.Occurrences = append(res.Occurrences, Occurrence{
			Index:       i,
			Transaction: s.Materialize(d, today),
			Next:        next,
		})
		res.Definitions[i] = next
	}
	return res
}
