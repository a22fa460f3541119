package analytics

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

func tx(id int64, typ core.TransactionType, cents int64, category, date string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        typ,
		Description: "t",
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Date:        date,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateMonthlyTotals(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Income, 250000, "Stipendio", "2024-01-27"),
		tx(2, core.Expense, 4550, "Alimentari", "2024-01-03"),
		tx(3, core.Expense, 1000, "Trasporti", "2024-02-10"),
		tx(4, core.Income, 30000, "Freelance", "2024-02-28"),
		tx(5, core.Expense, 99, "Altro", "2023-12-31"),
	}

	agg := AggregateMonthly(txs)

	var income, expenses, wantIncome, wantExpenses int64
	for _, a := range agg {
		income += a.Income.Cents
		expenses += a.Expenses.Cents
	}
	for _, x := range txs {
		if x.Type == core.Income {
			wantIncome += x.Amount.Cents
		} else {
			wantExpenses += x.Amount.Cents
		}
	}
	if income != wantIncome || expenses != wantExpenses {
		t.Fatalf("totals = %d/%d, want %d/%d", income, expenses, wantIncome, wantExpenses)
	}

	jan := agg["2024-01"]
	if jan.MonthKey != "2024-01" || jan.Income.Cents != 250000 || jan.Expenses.Cents != 4550 {
		t.Fatalf("unexpected january aggregate: %+v", jan)
	}
	if got := agg.Keys(); !reflect.DeepEqual(got, []string{"2023-12", "2024-01", "2024-02"}) {
		t.Fatalf("Keys() = %v", got)
	}
}

func TestAggregateMonthlySkipsMalformed(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, 1000, "Casa", "2024-03-01"),
		tx(2, core.Expense, 500, "Casa", "03/01/2024"),
		tx(3, core.Expense, 500, "Casa", ""),
		tx(4, core.Expense, -700, "Casa", "2024-03-02"),
		tx(5, "transfer", 800, "Casa", "2024-03-02"),
	}

	agg := AggregateMonthly(txs)
	if len(agg) != 1 || agg["2024-03"].Expenses.Cents != 1000 {
		t.Fatalf("malformed records should be skipped, got %+v", agg)
	}
	if skipped := Skipped(txs); len(skipped) != 4 {
		t.Fatalf("Skipped() returned %d records, want 4", len(skipped))
	}
}

func TestAggregateMonthlyIsIdempotent(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Income, 1000, "Altro", "2024-05-01"),
		tx(2, core.Expense, 300, "Altro", "2024-05-02"),
	}
	before := append([]core.Transaction(nil), txs...)

	first := AggregateMonthly(txs)
	second := AggregateMonthly(txs)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation not idempotent: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(before, txs) {
		t.Fatalf("aggregation mutated its input")
	}
}

func TestCalculateAveragesEmpty(t *testing.T) {
	avg := CalculateAverages(Aggregates{}, 3)
	if !avg.AvgIncome.IsZero() || !avg.AvgExpenses.IsZero() || avg.MonthsCounted != 0 {
		t.Fatalf("expected zero averages, got %+v", avg)
	}
	if !CalculateAverages(nil, 0).AvgBalance().IsZero() {
		t.Fatalf("expected zero balance")
	}
}

func TestCalculateAveragesWindowLargerThanHistory(t *testing.T) {
	agg := AggregateMonthly([]core.Transaction{
		tx(1, core.Income, 10000, "Altro", "2024-01-05"),
		tx(2, core.Income, 30000, "Altro", "2024-02-05"),
		tx(3, core.Expense, 5000, "Casa", "2024-02-06"),
	})

	avg := CalculateAverages(agg, 5)
	if avg.MonthsCounted != 2 {
		t.Fatalf("MonthsCounted = %d, want 2", avg.MonthsCounted)
	}
	if !avg.AvgIncome.Equal(dec("200")) || !avg.AvgExpenses.Equal(dec("25")) {
		t.Fatalf("averages = %s/%s, want 200/25", avg.AvgIncome, avg.AvgExpenses)
	}
}

func TestCalculateAveragesUsesMostRecentMonths(t *testing.T) {
	agg := AggregateMonthly([]core.Transaction{
		tx(1, core.Expense, 100000, "Casa", "2023-11-01"),
		tx(2, core.Expense, 1000, "Casa", "2023-12-01"),
		tx(3, core.Expense, 2000, "Casa", "2024-01-01"),
	})

	avg := CalculateAverages(agg, 2)
	if avg.MonthsCounted != 2 || !avg.AvgExpenses.Equal(dec("15")) {
		t.Fatalf("got %+v, want 2 months averaging 15", avg)
	}
}

func forecastFixture() []core.Transaction {
	var txs []core.Transaction
	months := []string{"2023-08", "2023-09", "2023-10", "2023-11", "2023-12", "2024-01", "2024-02", "2024-03"}
	expenses := map[string]int64{"2024-01": 90000, "2024-02": 120000, "2024-03": 150000}
	for i, m := range months {
		txs = append(txs, tx(int64(i*2+1), core.Income, 200000, "Stipendio", m+"-27"))
		e, ok := expenses[m]
		if !ok {
			e = 10000
		}
		txs = append(txs, tx(int64(i*2+2), core.Expense, e, "Casa", m+"-05"))
	}
	return txs
}

func TestGenerateForecast(t *testing.T) {
	today := core.NewDate(2024, 4, 15)
	f := GenerateForecast(forecastFixture(), ForecastParams{HistoryMonths: 3, FutureMonths: 3}, today)

	wantHist := []string{"2023-10", "2023-11", "2023-12", "2024-01", "2024-02", "2024-03"}
	if !reflect.DeepEqual(f.HistoricalMonths, wantHist) {
		t.Fatalf("HistoricalMonths = %v", f.HistoricalMonths)
	}
	if !reflect.DeepEqual(f.FutureMonths, []string{"2024-05", "2024-06", "2024-07"}) {
		t.Fatalf("FutureMonths = %v", f.FutureMonths)
	}
	if f.MonthsCounted != 3 {
		t.Fatalf("MonthsCounted = %d", f.MonthsCounted)
	}
	if !f.AvgIncome.Equal(dec("2000")) || !f.AvgExpenses.Equal(dec("1200")) || !f.AvgBalance.Equal(dec("800")) {
		t.Fatalf("averages = %s/%s/%s", f.AvgIncome, f.AvgExpenses, f.AvgBalance)
	}
	if !f.ProjectedSavings().Equal(dec("2400")) {
		t.Fatalf("ProjectedSavings = %s", f.ProjectedSavings())
	}
}

func TestForecastSeriesContinuity(t *testing.T) {
	f := GenerateForecast(forecastFixture(), ForecastParams{HistoryMonths: 2, FutureMonths: 4}, core.NewDate(2024, 4, 1))

	labels := f.Labels()
	if len(f.HistoricalMonths)+len(f.FutureMonths) != len(labels) {
		t.Fatalf("labels length mismatch: %d", len(labels))
	}
	series := f.Series()
	if len(series) != len(labels) {
		t.Fatalf("series length %d, labels %d", len(series), len(labels))
	}
	for i, p := range series {
		if p.MonthKey != labels[i] {
			t.Fatalf("point %d labelled %s, want %s", i, p.MonthKey, labels[i])
		}
		projected := i >= f.ProjectionStart()
		if p.Projected != projected {
			t.Fatalf("point %d projected=%v", i, p.Projected)
		}
		if projected && (!p.Income.Equal(f.AvgIncome) || !p.Expenses.Equal(f.AvgExpenses) || !p.Balance.Equal(f.AvgBalance)) {
			t.Fatalf("projected point %d is not flat: %+v", i, p)
		}
	}
	last := series[f.ProjectionStart()-1]
	if last.MonthKey != "2024-03" || !last.Expenses.Equal(dec("1500")) || !last.Balance.Equal(dec("500")) {
		t.Fatalf("last observed point = %+v", last)
	}
}

func TestGenerateForecastEmpty(t *testing.T) {
	f := GenerateForecast(nil, ForecastParams{}, core.NewDate(2024, 12, 10))
	if len(f.HistoricalMonths) != 0 || f.MonthsCounted != 0 {
		t.Fatalf("expected no history, got %+v", f)
	}
	if !reflect.DeepEqual(f.FutureMonths, []string{"2025-01", "2025-02", "2025-03"}) {
		t.Fatalf("defaults not applied: %v", f.FutureMonths)
	}
	for _, p := range f.Series() {
		if !p.Income.IsZero() || !p.Expenses.IsZero() || !p.Balance.IsZero() {
			t.Fatalf("expected flat zero forecast, got %+v", p)
		}
	}
}

func budget(category string, limitCents int64, alert bool) core.Budget {
	return core.Budget{ID: 1, Category: category, Limit: core.Money{Cents: limitCents}, AlertEnabled: alert}
}

func TestCheckBudgetsThreshold(t *testing.T) {
	const month = "2024-04"
	cases := []struct {
		name      string
		spent     int64
		wantAlert bool
		wantLevel AlertLevel
	}{
		{"below threshold", 89999, false, ""},
		{"exactly ninety percent", 90000, true, AlertWarning},
		{"at limit", 100000, true, AlertExceeded},
		{"over limit", 120000, true, AlertExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			txs := []core.Transaction{
				tx(1, core.Expense, tc.spent, "Casa", month+"-10"),
				tx(2, core.Income, 500000, "Casa", month+"-11"),
				tx(3, core.Expense, 999999, "Casa", "2024-03-10"),
			}
			alerts := CheckBudgets([]core.Budget{budget("Casa", 100000, true)}, txs, month)
			if !tc.wantAlert {
				if len(alerts) != 0 {
					t.Fatalf("expected no alert, got %+v", alerts)
				}
				return
			}
			if len(alerts) != 1 {
				t.Fatalf("expected one alert, got %+v", alerts)
			}
			if alerts[0].Level() != tc.wantLevel {
				t.Fatalf("Level() = %s, want %s", alerts[0].Level(), tc.wantLevel)
			}
			wantPct := decimal.NewFromInt(tc.spent).Div(decimal.NewFromInt(1000))
			if !alerts[0].Percentage.Equal(wantPct) {
				t.Fatalf("Percentage = %s, want %s", alerts[0].Percentage, wantPct)
			}
		})
	}
}

func TestCheckBudgetsExceededPercentage(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 150000, "Viaggi", "2024-04-02")}
	alerts := CheckBudgets([]core.Budget{budget("Viaggi", 100000, true)}, txs, "2024-04")
	if len(alerts) != 1 || !alerts[0].Percentage.GreaterThan(decimal.NewFromInt(100)) {
		t.Fatalf("expected percentage above 100, got %+v", alerts)
	}
}

func TestCheckBudgetsSuppressed(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 5000, "Casa", "2024-04-02")}
	budgets := []core.Budget{
		budget("Casa", 0, true),
		budget("Casa", 1000, false),
	}
	if alerts := CheckBudgets(budgets, txs, "2024-04"); len(alerts) != 0 {
		t.Fatalf("expected suppressed alerts, got %+v", alerts)
	}

	statuses := BudgetStatuses(budgets, txs, "2024-04")
	if statuses[0].Computable() || !statuses[0].Percentage.IsZero() {
		t.Fatalf("zero limit should not compute a percentage: %+v", statuses[0])
	}
	if statuses[1].Remaining().Cents != -4000 {
		t.Fatalf("Remaining() = %d", statuses[1].Remaining().Cents)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, 1000, "Casa", "2024-04-01"),
		tx(2, core.Expense, 3000, "Alimentari", "2024-04-02"),
		tx(3, core.Expense, 500, "Casa", "2024-04-03"),
		tx(4, core.Income, 9000, "Stipendio", "2024-04-03"),
	}
	got := CategoryBreakdown(txs, "2024-04")
	want := []core.CategoryAmount{
		{Name: "Alimentari", Amount: core.Money{Cents: 3000}},
		{Name: "Casa", Amount: core.Money{Cents: 1500}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CategoryBreakdown = %+v", got)
	}
}
