package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// GeneratedSuffix marks transactions materialized from a recurring definition.
const GeneratedSuffix = " (Ricorrente)"

type (
	TransactionType string

	Frequency string

	// Transaction is a single income or expense record. Amount is always a
	// positive magnitude; Type alone decides the cash-flow sign.
	Transaction struct {
		ID          int64           `json:"id"`
		Type        TransactionType `json:"type"`
		Description string          `json:"description"`
		Amount      Money           `json:"amount"`
		Category    string          `json:"category"`
		Date        string          `json:"date"` // YYYY-MM-DD
		Owner       string          `json:"owner,omitempty"`
	}

	// RecurringDefinition is a template that spawns transactions. Only
	// NextOccurrence and Active change after creation.
	RecurringDefinition struct {
		ID             int64           `json:"id"`
		Type           TransactionType `json:"type"`
		Description    string          `json:"description"`
		Amount         Money           `json:"amount"`
		Category       string          `json:"category"`
		Frequency      Frequency       `json:"frequency"`
		NextOccurrence string          `json:"nextOccurrence"` // YYYY-MM-DD
		Active         bool            `json:"active"`
		Owner          string          `json:"owner,omitempty"`
	}

	// Budget is a monthly spending limit for one expense category.
	Budget struct {
		ID           int64  `json:"id"`
		Category     string `json:"category"`
		Limit        Money  `json:"limit"`
		AlertEnabled bool   `json:"alertEnabled"`
	}

	Goal struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Target   Money  `json:"target"`
		Current  Money  `json:"current"`
		Deadline string `json:"deadline"`
		Icon     string `json:"icon,omitempty"`
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty name")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
)

// Valid reports whether t is one of the two known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// MonthKey returns the YYYY-MM bucket of the transaction date. ok is false
// when the date does not parse.
func (t Transaction) MonthKey() (key string, ok bool) {
	d, err := ParseDate(t.Date)
	if err != nil {
		return "", false
	}
	return d.MonthKey(), true
}

// Signed returns the amount in cents with the sign implied by Type.
func (t Transaction) Signed() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	return nil
}

func (r RecurringDefinition) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, r.Type)
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Frequency)
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if _, err := ParseDate(r.NextOccurrence); err != nil {
		return fmt.Errorf("invalid next occurrence: %w", err)
	}
	return nil
}

// IsDue reports whether the definition should fire on today. Both dates are
// YYYY-MM-DD, so string comparison is chronological.
func (r RecurringDefinition) IsDue(today string) bool {
	return r.Active && r.NextOccurrence <= today
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return b.Limit.ValidatePositive()
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Target.ValidatePositive(); err != nil {
		return err
	}
	if g.Current.Cents < 0 || g.Current.Cents > g.Target.Cents {
		return fmt.Errorf("%w: current must be between 0 and target", ErrInvalidAmount)
	}
	if _, err := ParseDate(g.Deadline); err != nil {
		return fmt.Errorf("invalid deadline: %w", err)
	}
	return nil
}

// WithProgress returns the goal with Current set to amount, clamped to
// [0, Target].
func (g Goal) WithProgress(amount Money) Goal {
	switch {
	case amount.Cents < 0:
		g.Current = Money{}
	case amount.Cents > g.Target.Cents:
		g.Current = g.Target
	default:
		g.Current = amount
	}
	return g
}

func (g Goal) Reached() bool {
	return g.Target.Cents > 0 && g.Current.Cents >= g.Target.Cents
}
