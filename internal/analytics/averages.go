package analytics

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Averages are trailing monthly means in currency units.
type Averages struct {
	AvgIncome     decimal.Decimal
	AvgExpenses   decimal.Decimal
	MonthsCounted int
}

// CalculateAverages averages the historyMonths most recent months present in
// agg. The divisor is the number of months actually found, so a window larger
// than the history averages over what exists. With no months (or a
// non-positive window) both averages are zero.
func CalculateAverages(agg Aggregates, historyMonths int) Averages {
	if historyMonths <= 0 || len(agg) == 0 {
		return Averages{AvgIncome: decimal.Zero, AvgExpenses: decimal.Zero}
	}

	keys := agg.Keys()
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > historyMonths {
		keys = keys[:historyMonths]
	}

	var income, expenses int64
	for _, k := range keys {
		income += agg[k].Income.Cents
		expenses += agg[k].Expenses.Cents
	}

	count := decimal.NewFromInt(int64(len(keys)))
	return Averages{
		AvgIncome:     decimal.New(income, -2).Div(count),
		AvgExpenses:   decimal.New(expenses, -2).Div(count),
		MonthsCounted: len(keys),
	}
}

// AvgBalance is AvgIncome minus AvgExpenses.
func (a Averages) AvgBalance() decimal.Decimal {
	return a.AvgIncome.Sub(a.AvgExpenses)
}
