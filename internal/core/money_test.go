package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, true},
		{"0,00", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 1250})
	if err != nil || string(b) != "12.50" {
		t.Fatalf("marshal = %s, %v", b, err)
	}

	cases := []struct {
		in   string
		want int64
	}{
		{`12.5`, 1250},
		{`"7.99"`, 799},
		{`0.005`, 1},
		{`100`, 10000},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if m.Cents != tc.want {
			t.Fatalf("unmarshal %s = %d, want %d", tc.in, m.Cents, tc.want)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"dieci"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}
