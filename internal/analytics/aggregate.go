// Package analytics holds the pure computations over a transaction set:
// monthly aggregation, trailing averages, the flat-average forecast, budget
// checks and the dashboard summaries built on them.
//
// Nothing here performs I/O or keeps state between calls.
package analytics

import (
	"sort"

	"bilancio/internal/core"
)

// Aggregates maps a YYYY-MM month key to that month's totals.
type Aggregates map[string]core.MonthlyAggregate

// AggregateMonthly sums income and expenses per month.
//
// Records that cannot be bucketed are skipped rather than failing the whole
// set: an unparseable date, a negative amount or an unknown type.
func AggregateMonthly(txs []core.Transaction) Aggregates {
	out := make(Aggregates)
	for _, t := range txs {
		if !aggregatable(t) {
			continue
		}
		key, _ := t.MonthKey()
		agg := out[key]
		agg.MonthKey = key
		switch t.Type {
		case core.Income:
			agg.Income = agg.Income.Add(t.Amount)
		case core.Expense:
			agg.Expenses = agg.Expenses.Add(t.Amount)
		}
		out[key] = agg
	}
	return out
}

// Skipped returns the records AggregateMonthly leaves out.
func Skipped(txs []core.Transaction) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if !aggregatable(t) {
			out = append(out, t)
		}
	}
	return out
}

func aggregatable(t core.Transaction) bool {
	if !t.Type.Valid() || t.Amount.Cents < 0 {
		return false
	}
	_, ok := t.MonthKey()
	return ok
}

// Keys returns the month keys in ascending (chronological) order.
func (a Aggregates) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the totals for key, zero-valued when the month has no records.
func (a Aggregates) Get(key string) core.MonthlyAggregate {
	if agg, ok := a[key]; ok {
		return agg
	}
	return core.MonthlyAggregate{MonthKey: key}
}

// InMonth filters txs to the given month key, dropping malformed records.
func InMonth(txs []core.Transaction, monthKey string) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if !aggregatable(t) {
			continue
		}
		if key, _ := t.MonthKey(); key == monthKey {
			out = append(out, t)
		}
	}
	return out
}

// ExpensesByCategory sums expense amounts per category for one month.
func ExpensesByCategory(txs []core.Transaction, monthKey string) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, t := range InMonth(txs, monthKey) {
		if t.Type != core.Expense {
			continue
		}
		out[t.Category] = out[t.Category].Add(t.Amount)
	}
	return out
}
