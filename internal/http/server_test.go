package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/store/memory"
)

func newTestServer(t *testing.T, rate int) *Server {
	t.Helper()
	session := services.NewSession(memory.New("anna"), nil,
		core.FixedClock{Day: core.NewDate(2024, 4, 15)}, core.NewSequenceIDs(1000),
		services.SessionConfig{Owner: "anna"})
	srv, err := NewServer(":0", session, ServerConfig{RateLimitPerMinute: rate})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.limiter.Stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, 100)
	rr := do(t, srv, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "ok" || body["today"] != "2024-04-15" {
		t.Fatalf("unexpected body: %v", body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, 100)

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"type":"expense","description":"Spesa","amount":42.5,"category":"Alimentari","date":"2024-04-10"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[core.Transaction](t, rr)
	if created.ID == 0 || created.Amount.Cents != 4250 {
		t.Fatalf("unexpected transaction: %+v", created)
	}

	list := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions", ""))
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}

	rr = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", rr.Code)
	}
}

func TestCreateTransactionRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, 100)
	tests := []struct {
		name string
		body string
	}{
		{"negative amount", `{"type":"expense","description":"x","amount":-5,"category":"c","date":"2024-04-10"}`},
		{"bad type", `{"type":"gift","description":"x","amount":1,"category":"c","date":"2024-04-10"}`},
		{"bad date", `{"type":"income","description":"x","amount":1,"category":"c","date":"10/04/2024"}`},
		{"unknown field", `{"type":"income","description":"x","amount":1,"category":"c","date":"2024-04-10","extra":1}`},
		{"not json", `type=income`},
		{"two objects", `{"type":"income"}{"type":"income"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s, want 400", rr.Code, rr.Body.String())
			}
			if decode[errorResponse](t, rr).Error == "" {
				t.Error("missing error message")
			}
		})
	}

	if rr := do(t, srv, http.MethodDelete, "/api/transactions/abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id status=%d, want 400", rr.Code)
	}
}

func TestBudgetsAndAlerts(t *testing.T) {
	srv := newTestServer(t, 100)

	rr := do(t, srv, http.MethodPost, "/api/budgets", `{"category":"Svago","limit":100}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("upsert status=%d body=%s", rr.Code, rr.Body.String())
	}
	budget := decode[core.Budget](t, rr)
	if !budget.AlertEnabled {
		t.Error("alerts should default to enabled")
	}

	// Same category keeps the id.
	again := decode[core.Budget](t, do(t, srv, http.MethodPost, "/api/budgets", `{"category":"Svago","limit":100,"alertEnabled":true}`))
	if again.ID != budget.ID {
		t.Fatalf("upsert changed id %d -> %d", budget.ID, again.ID)
	}

	do(t, srv, http.MethodPost, "/api/transactions",
		`{"type":"expense","description":"Cinema","amount":95,"category":"Svago","date":"2024-04-12"}`)

	alerts := decode[[]budgetAlertResponse](t, do(t, srv, http.MethodGet, "/api/budgets/alerts", ""))
	if len(alerts) != 1 || alerts[0].Category != "Svago" || alerts[0].Level != "warning" {
		t.Fatalf("alerts = %+v", alerts)
	}

	statuses := decode[[]budgetStatusResponse](t, do(t, srv, http.MethodGet, "/api/budgets/status", ""))
	if len(statuses) != 1 || statuses[0].Remaining.Cents != 500 || statuses[0].Percentage.String() != "95" {
		t.Fatalf("statuses = %+v", statuses)
	}

	if rr := do(t, srv, http.MethodDelete, fmt.Sprintf("/api/budgets/%d", budget.ID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/budgets", `{"category":"","limit":100}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty category status=%d, want 400", rr.Code)
	}
}

func TestRecurringRunAndToggle(t *testing.T) {
	srv := newTestServer(t, 100)

	rr := do(t, srv, http.MethodPost, "/api/recurring",
		`{"type":"expense","description":"Affitto","amount":800,"category":"Casa","frequency":"monthly","nextOccurrence":"2024-04-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	def := decode[core.RecurringDefinition](t, rr)
	if !def.Active {
		t.Fatal("new definitions are active")
	}

	run := decode[recurringRunResponse](t, do(t, srv, http.MethodPost, "/api/recurring/run", ""))
	if len(run.Created) != 1 || run.Created[0].Description != "Affitto"+core.GeneratedSuffix || run.Created[0].Date != "2024-04-15" {
		t.Fatalf("run = %+v", run)
	}
	again := decode[recurringRunResponse](t, do(t, srv, http.MethodPost, "/api/recurring/run", ""))
	if !again.Skipped || len(again.Created) != 0 {
		t.Fatalf("second run on the same day = %+v", again)
	}

	defs := decode[[]core.RecurringDefinition](t, do(t, srv, http.MethodGet, "/api/recurring", ""))
	if len(defs) != 1 || defs[0].NextOccurrence != "2024-05-01" {
		t.Fatalf("definitions = %+v", defs)
	}

	toggled := decode[core.RecurringDefinition](t, do(t, srv, http.MethodPost, fmt.Sprintf("/api/recurring/%d/toggle", def.ID), ""))
	if toggled.Active {
		t.Fatal("toggle should deactivate")
	}
	if rr := do(t, srv, http.MethodPost, "/api/recurring/999/toggle", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("toggle unknown status=%d, want 404", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/recurring",
		`{"type":"expense","description":"x","amount":1,"category":"c","frequency":"hourly","nextOccurrence":"2024-04-01"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad frequency status=%d, want 400", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, fmt.Sprintf("/api/recurring/%d", def.ID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
}

func TestGoalProgress(t *testing.T) {
	srv := newTestServer(t, 100)

	rr := do(t, srv, http.MethodPost, "/api/goals", `{"name":"Vacanze","target":1000,"deadline":"2024-08-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	goal := decode[goalResponse](t, rr)

	updated := decode[goalResponse](t, do(t, srv, http.MethodPost, fmt.Sprintf("/api/goals/%d/progress", goal.ID), `{"amount":1500}`))
	if updated.Current.Cents != 100000 || !updated.Reached {
		t.Fatalf("progress not clamped to target: %+v", updated)
	}
	if rr := do(t, srv, http.MethodPost, fmt.Sprintf("/api/goals/%d/progress", goal.ID), `{"amount":-1}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative progress status=%d, want 400", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, fmt.Sprintf("/api/goals/%d", goal.ID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if goals := decode[[]goalResponse](t, do(t, srv, http.MethodGet, "/api/goals", "")); len(goals) != 0 {
		t.Fatalf("goals = %+v", goals)
	}
}

func TestForecastAndDashboards(t *testing.T) {
	srv := newTestServer(t, 100)
	for _, body := range []string{
		`{"type":"income","description":"Stipendio","amount":2000,"category":"Lavoro","date":"2024-03-27"}`,
		`{"type":"expense","description":"Spesa","amount":500,"category":"Alimentari","date":"2024-03-05"}`,
		`{"type":"income","description":"Stipendio","amount":2000,"category":"Lavoro","date":"2024-04-01"}`,
		`{"type":"expense","description":"Spesa","amount":1000,"category":"Alimentari","date":"2024-04-05"}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/forecast?history=2&future=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("forecast status=%d body=%s", rr.Code, rr.Body.String())
	}
	f := decode[forecastResponse](t, rr)
	wantLabels := []string{"2024-03", "2024-04", "2024-05", "2024-06"}
	if strings.Join(f.Labels, ",") != strings.Join(wantLabels, ",") {
		t.Fatalf("labels = %v, want %v", f.Labels, wantLabels)
	}
	if f.ProjectionStart != 2 || f.AvgExpenses.String() != "750" || f.AvgBalance.String() != "1250" {
		t.Fatalf("forecast = %+v", f)
	}
	if !f.Series[3].Projected || f.Series[0].Projected {
		t.Fatalf("projection flags wrong: %+v", f.Series)
	}

	for _, q := range []string{"history=0", "future=abc", "future=61"} {
		if rr := do(t, srv, http.MethodGet, "/api/forecast?"+q, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("forecast?%s status=%d, want 400", q, rr.Code)
		}
	}

	sum := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/api/summary", ""))
	if sum.Current.Balance.Cents != 100000 || sum.ExpenseChange.String() != "100" || sum.SavingsRate.String() != "50" {
		t.Fatalf("summary = %+v", sum)
	}

	trend := decode[[]monthTotals](t, do(t, srv, http.MethodGet, "/api/trend", ""))
	if len(trend) != 6 || trend[5].Month != "2024-04" || trend[0].Month != "2023-11" {
		t.Fatalf("trend = %+v", trend)
	}

	cats := decode[[]core.CategoryAmount](t, do(t, srv, http.MethodGet, "/api/categories", ""))
	if len(cats) != 1 || cats[0].Name != "Alimentari" {
		t.Fatalf("categories = %+v", cats)
	}

	if rr := do(t, srv, http.MethodGet, "/api/insights", ""); rr.Code != http.StatusOK {
		t.Fatalf("insights status=%d", rr.Code)
	}
}

func TestMiddlewareRejections(t *testing.T) {
	srv := newTestServer(t, 2)

	if rr := do(t, srv, http.MethodGet, "/.git/config", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("probe status=%d, want 400", rr.Code)
	}

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/transactions", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodGet, "/api/transactions", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if decode[errorResponse](t, rr).RequestID == "" {
		t.Error("error body should carry the request id")
	}
}
