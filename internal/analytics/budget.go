package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// AlertThresholdPercent is the share of a limit at which an alert fires.
const AlertThresholdPercent = 90

type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertExceeded AlertLevel = "exceeded"
)

// BudgetStatus is the spend of one budget's category in a month.
type BudgetStatus struct {
	BudgetID     int64
	Category     string
	Spent        core.Money
	Limit        core.Money
	AlertEnabled bool
	// Percentage is zero when Limit is not positive.
	Percentage decimal.Decimal
}

// Computable reports whether Limit allows a percentage at all.
func (s BudgetStatus) Computable() bool {
	return s.Limit.Cents > 0
}

// Remaining is Limit minus Spent; negative once the budget is exceeded.
func (s BudgetStatus) Remaining() core.Money {
	return core.Money{Cents: s.Limit.Cents - s.Spent.Cents}
}

// BudgetAlert signals a category at or above the alert threshold.
type BudgetAlert struct {
	Category   string
	Spent      core.Money
	Limit      core.Money
	Percentage decimal.Decimal
}

// Level is exceeded at or above 100% of the limit, warning below.
func (a BudgetAlert) Level() AlertLevel {
	if a.Spent.Cents >= a.Limit.Cents {
		return AlertExceeded
	}
	return AlertWarning
}

// BudgetStatuses reports the month's spend for every budget, in input order.
func BudgetStatuses(budgets []core.Budget, txs []core.Transaction, monthKey string) []BudgetStatus {
	spent := ExpensesByCategory(txs, monthKey)
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st := BudgetStatus{
			BudgetID:     b.ID,
			Category:     b.Category,
			Spent:        spent[b.Category],
			Limit:        b.Limit,
			AlertEnabled: b.AlertEnabled,
			Percentage:   decimal.Zero,
		}
		if st.Computable() {
			st.Percentage = percentOf(st.Spent, st.Limit)
		}
		out = append(out, st)
	}
	return out
}

// CheckBudgets returns an alert for each alert-enabled budget whose category
// spend in monthKey reached 90% of its limit. Budgets with a non-positive
// limit never alert. The threshold is compared in integer cents so 90% is
// exact.
func CheckBudgets(budgets []core.Budget, txs []core.Transaction, monthKey string) []BudgetAlert {
	var alerts []BudgetAlert
	for _, st := range BudgetStatuses(budgets, txs, monthKey) {
		if !st.AlertEnabled || !st.Computable() {
			continue
		}
		if st.Spent.Cents*100 < st.Limit.Cents*AlertThresholdPercent {
			continue
		}
		alerts = append(alerts, BudgetAlert{
			Category:   st.Category,
			Spent:      st.Spent,
			Limit:      st.Limit,
			Percentage: st.Percentage,
		})
	}
	return alerts
}

// ExceededBudgets lists the budgets whose spend is strictly above the limit.
func ExceededBudgets(budgets []core.Budget, txs []core.Transaction, monthKey string) []BudgetStatus {
	var out []BudgetStatus
	for _, st := range BudgetStatuses(budgets, txs, monthKey) {
		if st.Spent.Cents > st.Limit.Cents {
			out = append(out, st)
		}
	}
	return out
}

// CategoryBreakdown returns the month's expenses per category, largest first.
func CategoryBreakdown(txs []core.Transaction, monthKey string) []core.CategoryAmount {
	byCat := ExpensesByCategory(txs, monthKey)
	out := make([]core.CategoryAmount, 0, len(byCat))
	for name, amt := range byCat {
		out = append(out, core.CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func percentOf(part, whole core.Money) decimal.Decimal {
	return decimal.NewFromInt(part.Cents).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(whole.Cents))
}
