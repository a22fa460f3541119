// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring definitions: each
// frequency has an Advancer that moves a next-occurrence date forward by
// exactly one period.
package services

import (
	"fmt"

	"bilancio/internal/core"
)

// Advancer is the strategy interface for stepping a recurring date forward.
type Advancer interface {
	// Advance returns the occurrence one period after from.
	Advance(cal core.Calendar, from core.Date) core.Date
}

// DailyAdvancer moves one calendar day forward.
type DailyAdvancer struct{}

func (DailyAdvancer) Advance(cal core.Calendar, from core.Date) core.Date {
	return cal.AddDays(from, 1)
}

// WeeklyAdvancer moves seven days forward.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Advance(cal core.Calendar, from core.Date) core.Date {
	return cal.AddDays(from, 7)
}

// MonthlyAdvancer moves one calendar month forward. Days past the end of the
// target month roll into the following one (Jan 31 -> Mar 2 in a leap year).
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Advance(cal core.Calendar, from core.Date) core.Date {
	return cal.AddMonths(from, 1)
}

// YearlyAdvancer moves one calendar year forward (Feb 29 -> Mar 1).
type YearlyAdvancer struct{}

func (YearlyAdvancer) Advance(cal core.Calendar, from core.Date) core.Date {
	return cal.AddYears(from, 1)
}

// advancers maps frequencies to their strategies.
var advancers = map[core.Frequency]Advancer{
	core.Daily:   DailyAdvancer{},
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// GetAdvancer returns the strategy for frequency, or an error wrapping
// core.ErrInvalidFrequency.
func GetAdvancer(frequency core.Frequency) (Advancer, error) {
	a, ok := advancers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return a, nil
}
