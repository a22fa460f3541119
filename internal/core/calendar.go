package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar day at UTC midnight.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day. Out-of-range values are
// normalized the way time.Date does (2024-02-30 becomes 2024-03-01).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM bucket for d.
func (d Date) MonthKey() string {
	return d.Format(MonthLayout)
}

// FirstOfMonth returns the first day of d's month shifted by offset months.
// Starting from day 1 means no month-length normalization can occur.
func (d Date) FirstOfMonth(offset int) Date {
	return NewDate(d.Year(), int(d.Month())+offset, 1)
}

// Calendar is the date arithmetic used by recurrence rules.
type Calendar interface {
	AddDays(d Date, n int) Date
	AddMonths(d Date, n int) Date
	AddYears(d Date, n int) Date
}

// Gregorian implements Calendar with time.AddDate. Month and year steps
// keep the day-of-month and let overflow roll into the next month:
//
//	2024-01-31 + 1 month = 2024-03-02
//	2023-01-31 + 1 month = 2023-03-03
//	2024-02-29 + 1 year  = 2025-03-01
type Gregorian struct{}

func (Gregorian) AddDays(d Date, n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

func (Gregorian) AddMonths(d Date, n int) Date {
	return Date{Time: d.AddDate(0, n, 0)}
}

func (Gregorian) AddYears(d Date, n int) Date {
	return Date{Time: d.AddDate(n, 0, 0)}
}

// Clock provides "today".
type Clock interface {
	Today() Date
}

// SystemClock reads the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() Date {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// FixedClock always returns the same day.
type FixedClock struct {
	Day Date
}

func (c FixedClock) Today() Date {
	return c.Day
}

// IDGenerator hands out fresh record ids.
type IDGenerator interface {
	NextID() int64
}

// TimestampIDs issues millisecond timestamps, bumped by one whenever two
// calls land in the same millisecond, so ids stay unique and increasing.
type TimestampIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewTimestampIDs() *TimestampIDs {
	return &TimestampIDs{now: time.Now}
}

func (g *TimestampIDs) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// SequenceIDs issues Start, Start+1, ... and is meant for tests and tools
// that need reproducible ids.
type SequenceIDs struct {
	mu   sync.Mutex
	next int64
}

func NewSequenceIDs(start int64) *SequenceIDs {
	return &SequenceIDs{next: start}
}

func (g *SequenceIDs) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next
	g.next++
	return id
}
