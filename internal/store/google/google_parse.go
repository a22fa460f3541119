package google

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// parseRows converts sheet values into transactions. The header row and rows
// that do not describe a transaction are skipped and counted. Rows of other
// owners are dropped silently; rows without an owner belong to everyone.
func parseRows(values [][]any, owner string) ([]core.Transaction, int) {
	var (
		out     []core.Transaction
		skipped int
	)
	for i, row := range values {
		cols := toStrings(row)
		if i == 0 && isHeader(cols) {
			continue
		}
		if isBlank(cols) {
			continue
		}
		t, ok := parseRow(cols)
		if !ok {
			skipped++
			continue
		}
		if owner != "" && t.Owner != "" && t.Owner != owner {
			continue
		}
		out = append(out, t)
	}
	return out, skipped
}

func parseRow(cols []string) (core.Transaction, bool) {
	if len(cols) < 6 {
		return core.Transaction{}, false
	}
	id, err := strconv.ParseInt(cols[0], 10, 64)
	if err != nil {
		return core.Transaction{}, false
	}
	cents, ok := parseAmount(cols[4])
	if !ok {
		return core.Transaction{}, false
	}
	t := core.Transaction{
		ID:          id,
		Date:        cols[1],
		Type:        core.TransactionType(strings.ToLower(cols[2])),
		Description: cols[3],
		Amount:      core.Money{Cents: cents},
		Category:    cols[5],
	}
	if len(cols) > 6 {
		t.Owner = cols[6]
	}
	if !t.Type.Valid() {
		return core.Transaction{}, false
	}
	if _, err := core.ParseDate(t.Date); err != nil {
		return core.Transaction{}, false
	}
	return t, true
}

// findRow returns the zero-based row index whose first column is id, or -1.
func findRow(values [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i
		}
	}
	return -1
}

// parseAmount accepts "12.50", "12,50" and plain numbers.
func parseAmount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return core.MoneyFromDecimal(d).Cents, true
}

func isHeader(cols []string) bool {
	return len(cols) > 0 && strings.EqualFold(cols[0], "id")
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
