package core

// MonthlyAggregate holds the income and expense totals of one month.
type MonthlyAggregate struct {
	MonthKey string `json:"monthKey"`
	Income   Money  `json:"income"`
	Expenses Money  `json:"expenses"`
}

// Balance is income minus expenses.
func (a MonthlyAggregate) Balance() Money {
	return Money{Cents: a.Income.Cents - a.Expenses.Cents}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}
