package core

import (
	"testing"
	"time"
)

func TestGregorianRollover(t *testing.T) {
	cal := Gregorian{}
	cases := []struct {
		name string
		got  Date
		want string
	}{
		{"day", cal.AddDays(NewDate(2024, 2, 28), 1), "2024-02-29"},
		{"week across year", cal.AddDays(NewDate(2024, 12, 28), 7), "2025-01-04"},
		{"month end leap year", cal.AddMonths(NewDate(2024, 1, 31), 1), "2024-03-02"},
		{"month end common year", cal.AddMonths(NewDate(2023, 1, 31), 1), "2023-03-03"},
		{"thirty-first into thirty-day month", cal.AddMonths(NewDate(2024, 3, 31), 1), "2024-05-01"},
		{"december to january", cal.AddMonths(NewDate(2024, 12, 15), 1), "2025-01-15"},
		{"leap day yearly", cal.AddYears(NewDate(2024, 2, 29), 1), "2025-03-01"},
	}
	for _, tc := range cases {
		if tc.got.String() != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, tc.got, tc.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-04-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MonthKey() != "2024-04" || d.String() != "2024-04-15" {
		t.Fatalf("unexpected date %v", d)
	}
	for _, bad := range []string{"", "2024-4-15", "2024-13-01", "15/04/2024"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestFirstOfMonth(t *testing.T) {
	d := NewDate(2024, 1, 31)
	if got := d.FirstOfMonth(1).MonthKey(); got != "2024-02" {
		t.Fatalf("next month = %s", got)
	}
	if got := d.FirstOfMonth(12).MonthKey(); got != "2025-01" {
		t.Fatalf("twelve months later = %s", got)
	}
	if got := d.FirstOfMonth(-1).MonthKey(); got != "2023-12" {
		t.Fatalf("previous month = %s", got)
	}
}

func TestTimestampIDsAreUnique(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := &TimestampIDs{now: func() time.Time { return fixed }}
	a, b, c := g.NextID(), g.NextID(), g.NextID()
	if !(a < b && b < c) {
		t.Fatalf("ids not increasing: %d %d %d", a, b, c)
	}
	if a != fixed.UnixMilli() {
		t.Fatalf("first id should be the timestamp, got %d", a)
	}
}

func TestSystemClockUsesLocation(t *testing.T) {
	d := SystemClock{}.Today()
	if d.Hour() != 0 || d.Location() != time.UTC {
		t.Fatalf("Today should be UTC midnight, got %v", d.Time)
	}
}
