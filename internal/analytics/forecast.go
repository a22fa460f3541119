package analytics

import (
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

const (
	DefaultHistoryMonths = 3
	DefaultFutureMonths  = 3

	// HistoricalWindow is how many observed months a forecast displays. It is
	// independent of HistoryMonths, which only drives the averages.
	HistoricalWindow = 6
)

type ForecastParams struct {
	HistoryMonths int
	FutureMonths  int
}

// WithDefaults replaces non-positive values with the documented defaults.
func (p ForecastParams) WithDefaults() ForecastParams {
	if p.HistoryMonths <= 0 {
		p.HistoryMonths = DefaultHistoryMonths
	}
	if p.FutureMonths <= 0 {
		p.FutureMonths = DefaultFutureMonths
	}
	return p
}

// Forecast is an observed series followed by a flat projection.
type Forecast struct {
	HistoricalMonths []string
	MonthlyData      Aggregates
	FutureMonths     []string
	AvgIncome        decimal.Decimal
	AvgExpenses      decimal.Decimal
	AvgBalance       decimal.Decimal
	MonthsCounted    int
}

// ForecastPoint is one labelled value of the combined series.
type ForecastPoint struct {
	MonthKey  string
	Income    decimal.Decimal
	Expenses  decimal.Decimal
	Balance   decimal.Decimal
	Projected bool
}

// GenerateForecast aggregates txs, averages the last HistoryMonths months and
// projects FutureMonths months after today's month at those averages.
func GenerateForecast(txs []core.Transaction, params ForecastParams, today core.Date) Forecast {
	params = params.WithDefaults()

	monthly := AggregateMonthly(txs)
	avg := CalculateAverages(monthly, params.HistoryMonths)

	historical := monthly.Keys()
	if len(historical) > HistoricalWindow {
		historical = historical[len(historical)-HistoricalWindow:]
	}

	future := make([]string, 0, params.FutureMonths)
	for i := 1; i <= params.FutureMonths; i++ {
		future = append(future, today.FirstOfMonth(i).MonthKey())
	}

	return Forecast{
		HistoricalMonths: historical,
		MonthlyData:      monthly,
		FutureMonths:     future,
		AvgIncome:        avg.AvgIncome,
		AvgExpenses:      avg.AvgExpenses,
		AvgBalance:       avg.AvgBalance(),
		MonthsCounted:    avg.MonthsCounted,
	}
}

// ProjectionStart is the index of the first projected point in Labels.
func (f Forecast) ProjectionStart() int {
	return len(f.HistoricalMonths)
}

// Labels lists historical then future month keys.
func (f Forecast) Labels() []string {
	labels := make([]string, 0, len(f.HistoricalMonths)+len(f.FutureMonths))
	labels = append(labels, f.HistoricalMonths...)
	return append(labels, f.FutureMonths...)
}

// Series returns one point per label: actual totals for observed months and
// the constant averages for projected months.
func (f Forecast) Series() []ForecastPoint {
	points := make([]ForecastPoint, 0, len(f.HistoricalMonths)+len(f.FutureMonths))
	for _, m := range f.HistoricalMonths {
		agg := f.MonthlyData.Get(m)
		points = append(points, ForecastPoint{
			MonthKey: m,
			Income:   agg.Income.Decimal(),
			Expenses: agg.Expenses.Decimal(),
			Balance:  agg.Balance().Decimal(),
		})
	}
	for _, m := range f.FutureMonths {
		points = append(points, ForecastPoint{
			MonthKey:  m,
			Income:    f.AvgIncome,
			Expenses:  f.AvgExpenses,
			Balance:   f.AvgBalance,
			Projected: true,
		})
	}
	return points
}

// ProjectedSavings is the average balance over the projected months.
func (f Forecast) ProjectedSavings() decimal.Decimal {
	return f.AvgBalance.Mul(decimal.NewFromInt(int64(len(f.FutureMonths))))
}
