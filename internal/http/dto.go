package http

import (
	"github.com/shopspring/decimal"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
)

// Decimal values computed by analytics are encoded as JSON strings by
// shopspring/decimal; money amounts stay plain numbers.

type transactionRequest struct {
	Type        core.TransactionType `json:"type"`
	Description string               `json:"description"`
	Amount      core.Money           `json:"amount"`
	Category    string               `json:"category"`
	Date        string               `json:"date"`
}

func (req transactionRequest) transaction() core.Transaction {
	return core.Transaction{
		Type:        req.Type,
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Category:    sanitizeInput(req.Category),
		Date:        sanitizeInput(req.Date),
	}
}

type budgetRequest struct {
	Category     string     `json:"category"`
	Limit        core.Money `json:"limit"`
	AlertEnabled *bool      `json:"alertEnabled"`
}

type recurringRequest struct {
	Type           core.TransactionType `json:"type"`
	Description    string               `json:"description"`
	Amount         core.Money           `json:"amount"`
	Category       string               `json:"category"`
	Frequency      core.Frequency       `json:"frequency"`
	NextOccurrence string               `json:"nextOccurrence"`
}

func (req recurringRequest) definition() core.RecurringDefinition {
	return core.RecurringDefinition{
		Type:           req.Type,
		Description:    sanitizeInput(req.Description),
		Amount:         req.Amount,
		Category:       sanitizeInput(req.Category),
		Frequency:      req.Frequency,
		NextOccurrence: sanitizeInput(req.NextOccurrence),
	}
}

type goalRequest struct {
	Name     string     `json:"name"`
	Target   core.Money `json:"target"`
	Current  core.Money `json:"current"`
	Deadline string     `json:"deadline"`
	Icon     string     `json:"icon"`
}

type progressRequest struct {
	Amount core.Money `json:"amount"`
}

type goalResponse struct {
	core.Goal
	Reached bool `json:"reached"`
}

func newGoalResponse(g core.Goal) goalResponse {
	return goalResponse{Goal: g, Reached: g.Reached()}
}

type budgetStatusResponse struct {
	BudgetID     int64           `json:"budgetId"`
	Category     string          `json:"category"`
	Spent        core.Money      `json:"spent"`
	Limit        core.Money      `json:"limit"`
	Remaining    core.Money      `json:"remaining"`
	Percentage   decimal.Decimal `json:"percentage"`
	AlertEnabled bool            `json:"alertEnabled"`
}

type budgetAlertResponse struct {
	Category   string               `json:"category"`
	Spent      core.Money           `json:"spent"`
	Limit      core.Money           `json:"limit"`
	Percentage decimal.Decimal      `json:"percentage"`
	Level      analytics.AlertLevel `json:"level"`
}

type forecastPoint struct {
	Month     string          `json:"month"`
	Income    decimal.Decimal `json:"income"`
	Expenses  decimal.Decimal `json:"expenses"`
	Balance   decimal.Decimal `json:"balance"`
	Projected bool            `json:"projected"`
}

type forecastResponse struct {
	HistoryMonths    int             `json:"historyMonths"`
	FutureMonths     int             `json:"futureMonths"`
	MonthsCounted    int             `json:"monthsCounted"`
	AvgIncome        decimal.Decimal `json:"avgIncome"`
	AvgExpenses      decimal.Decimal `json:"avgExpenses"`
	AvgBalance       decimal.Decimal `json:"avgBalance"`
	ProjectedSavings decimal.Decimal `json:"projectedSavings"`
	ProjectionStart  int             `json:"projectionStart"`
	Labels           []string        `json:"labels"`
	Series           []forecastPoint `json:"series"`
}

func newForecastResponse(f analytics.Forecast, params analytics.ForecastParams) forecastResponse {
	series := f.Series()
	points := make([]forecastPoint, 0, len(series))
	for _, p := range series {
		points = append(points, forecastPoint{
			Month:     p.MonthKey,
			Income:    p.Income.Round(2),
			Expenses:  p.Expenses.Round(2),
			Balance:   p.Balance.Round(2),
			Projected: p.Projected,
		})
	}
	return forecastResponse{
		HistoryMonths:    params.HistoryMonths,
		FutureMonths:     len(f.FutureMonths),
		MonthsCounted:    f.MonthsCounted,
		AvgIncome:        f.AvgIncome.Round(2),
		AvgExpenses:      f.AvgExpenses.Round(2),
		AvgBalance:       f.AvgBalance.Round(2),
		ProjectedSavings: f.ProjectedSavings().Round(2),
		ProjectionStart:  f.ProjectionStart(),
		Labels:           f.Labels(),
		Series:           points,
	}
}

type monthTotals struct {
	Month    string     `json:"month"`
	Income   core.Money `json:"income"`
	Expenses core.Money `json:"expenses"`
	Balance  core.Money `json:"balance"`
}

func newMonthTotals(a core.MonthlyAggregate) monthTotals {
	return monthTotals{Month: a.MonthKey, Income: a.Income, Expenses: a.Expenses, Balance: a.Balance()}
}

type summaryResponse struct {
	Current       monthTotals     `json:"current"`
	Previous      monthTotals     `json:"previous"`
	IncomeChange  decimal.Decimal `json:"incomeChange"`
	ExpenseChange decimal.Decimal `json:"expenseChange"`
	BalanceChange decimal.Decimal `json:"balanceChange"`
	SavingsRate   decimal.Decimal `json:"savingsRate"`
}

type insightResponse struct {
	Kind  analytics.InsightKind `json:"kind"`
	Title string                `json:"title"`
	Text  string                `json:"text"`
}

type recurringRunResponse struct {
	Created []core.Transaction `json:"created"`
	Flagged []flaggedResponse  `json:"flagged"`
	Failed  int                `json:"failed"`
	Skipped bool               `json:"skipped"`
}

type flaggedResponse struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}
