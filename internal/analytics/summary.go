package analytics

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// TrendMonths is the length of the dashboard trend line.
const TrendMonths = 6

// MonthSummary compares a month with the one before it.
type MonthSummary struct {
	Current  core.MonthlyAggregate
	Previous core.MonthlyAggregate

	// Percent changes against the previous month; zero when the previous
	// value is zero. BalanceChange is relative to |previous balance|.
	IncomeChange  decimal.Decimal
	ExpenseChange decimal.Decimal
	BalanceChange decimal.Decimal

	// SavingsRate is balance/income*100, zero without income.
	SavingsRate decimal.Decimal
}

func Summarize(txs []core.Transaction, today core.Date) MonthSummary {
	monthly := AggregateMonthly(txs)
	cur := monthly.Get(today.MonthKey())
	prev := monthly.Get(today.FirstOfMonth(-1).MonthKey())

	return MonthSummary{
		Current:       cur,
		Previous:      prev,
		IncomeChange:  change(cur.Income.Cents, prev.Income.Cents),
		ExpenseChange: change(cur.Expenses.Cents, prev.Expenses.Cents),
		BalanceChange: change(cur.Balance().Cents, prev.Balance().Cents),
		SavingsRate:   savingsRate(cur),
	}
}

// Trend returns TrendMonths consecutive months ending at today's month,
// zero-filled where there are no records.
func Trend(txs []core.Transaction, today core.Date) []core.MonthlyAggregate {
	monthly := AggregateMonthly(txs)
	out := make([]core.MonthlyAggregate, 0, TrendMonths)
	for i := TrendMonths - 1; i >= 0; i-- {
		out = append(out, monthly.Get(today.FirstOfMonth(-i).MonthKey()))
	}
	return out
}

func change(cur, prev int64) decimal.Decimal {
	if prev == 0 {
		return decimal.Zero
	}
	base := prev
	if base < 0 {
		base = -base
	}
	return decimal.NewFromInt(cur - prev).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(base))
}

func savingsRate(m core.MonthlyAggregate) decimal.Decimal {
	if m.Income.Cents <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.Balance().Cents).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(m.Income.Cents))
}

type InsightKind string

const (
	InsightTopCategory     InsightKind = "top_category"
	InsightGoodSavings     InsightKind = "good_savings"
	InsightLowSavings      InsightKind = "low_savings"
	InsightOverspending    InsightKind = "overspending"
	InsightBudgetsExceeded InsightKind = "budgets_exceeded"
)

// GoodSavingsRate is the savings rate above which the month is praised.
var GoodSavingsRate = decimal.NewFromInt(20)

type Insight struct {
	Kind  InsightKind
	Title string
	Text  string
}

// Insights derives rule-based observations about today's month: the largest
// expense category, the savings rate and any exceeded budgets.
func Insights(txs []core.Transaction, budgets []core.Budget, today core.Date) []Insight {
	month := today.MonthKey()
	var out []Insight

	breakdown := CategoryBreakdown(txs, month)
	cur := AggregateMonthly(txs).Get(month)
	if len(breakdown) > 0 && cur.Expenses.Cents > 0 {
		top := breakdown[0]
		share := percentOf(top.Amount, cur.Expenses)
		out = append(out, Insight{
			Kind:  InsightTopCategory,
			Title: "Top category",
			Text:  fmt.Sprintf("%s accounts for %s%% of your expenses (%s)", top.Name, share.StringFixed(0), top.Amount),
		})
	}

	rate := savingsRate(cur)
	switch {
	case rate.GreaterThan(GoodSavingsRate):
		out = append(out, Insight{
			Kind:  InsightGoodSavings,
			Title: "Great savings",
			Text:  fmt.Sprintf("You are saving %s%% of your income.", rate.StringFixed(0)),
		})
	case rate.IsPositive():
		out = append(out, Insight{
			Kind:  InsightLowSavings,
			Title: "Room to improve",
			Text:  fmt.Sprintf("Savings rate is %s%%; the suggested target is %s%%.", rate.StringFixed(0), GoodSavingsRate),
		})
	default:
		out = append(out, Insight{
			Kind:  InsightOverspending,
			Title: "Watch out",
			Text:  "You are spending more than you earn this month.",
		})
	}

	if exceeded := ExceededBudgets(budgets, txs, month); len(exceeded) > 0 {
		names := make([]string, 0, len(exceeded))
		for _, st := range exceeded {
			names = append(names, st.Category)
		}
		out = append(out, Insight{
			Kind:  InsightBudgetsExceeded,
			Title: "Budgets exceeded",
			Text:  fmt.Sprintf("%d budget(s) exceeded this month: %s", len(exceeded), strings.Join(names, ", ")),
		})
	}

	return out
}
