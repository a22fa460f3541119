package http

import (
	"net/http"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

const (
	maxHistoryMonths = 120
	maxFutureMonths  = 60
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Transactions())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.session.AddTransaction(r.Context(), req.transaction())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.session.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Budgets())
}

// handleUpsertBudget creates or replaces the budget of a category. Alerts
// are enabled unless the request turns them off.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	alert := req.AlertEnabled == nil || *req.AlertEnabled
	b, err := s.session.UpsertBudget(r.Context(), sanitizeInput(req.Category), req.Limit, alert)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.session.DeleteBudget(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.session.Alerts()
	out := make([]budgetAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, budgetAlertResponse{
			Category:   a.Category,
			Spent:      a.Spent,
			Limit:      a.Limit,
			Percentage: a.Percentage.Round(1),
			Level:      a.Level(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.session.BudgetStatuses()
	out := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, budgetStatusResponse{
			BudgetID:     st.BudgetID,
			Category:     st.Category,
			Spent:        st.Spent,
			Limit:        st.Limit,
			Remaining:    st.Remaining(),
			Percentage:   st.Percentage.Round(1),
			AlertEnabled: st.AlertEnabled,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Recurring())
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	def, err := s.session.AddRecurring(r.Context(), req.definition())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleToggleRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	def, err := s.session.ToggleRecurring(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.session.DeleteRecurring(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunRecurring runs the daily recurrence check. Per-definition failures
// are part of the response; only a failure of the pass itself is an error.
// After a completed check the same day, the response is marked skipped.
func (s *Server) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.RunRecurring(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := recurringRunResponse{
		Created: res.Created,
		Flagged: make([]flaggedResponse, 0, len(res.Flagged)),
		Failed:  res.Failed,
		Skipped: res.Skipped,
	}
	if out.Created == nil {
		out.Created = []core.Transaction{}
	}
	for _, f := range res.Flagged {
		out.Flagged = append(out.Flagged, flaggedResponse{ID: f.DefinitionID, Error: f.Err.Error()})
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Recurring pass requested",
		applog.FieldOperation, applog.OpRecur,
		"created", len(res.Created),
		"flagged", len(res.Flagged),
		"failed", res.Failed,
		"skipped", res.Skipped)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals := s.session.Goals()
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.session.AddGoal(r.Context(), core.Goal{
		Name:     sanitizeInput(req.Name),
		Target:   req.Target,
		Current:  req.Current,
		Deadline: sanitizeInput(req.Deadline),
		Icon:     sanitizeInput(req.Icon),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGoalResponse(g))
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req progressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount.Cents < 0 {
		writeError(w, r, http.StatusBadRequest, "amount cannot be negative")
		return
	}
	g, err := s.session.UpdateGoalProgress(r.Context(), id, req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGoalResponse(g))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.session.DeleteGoal(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleForecast accepts optional history and future month counts; absent
// values take the configured defaults.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	history, err := queryInt(r, "history", maxHistoryMonths)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	future, err := queryInt(r, "future", maxFutureMonths)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	params := analytics.ForecastParams{HistoryMonths: history, FutureMonths: future}
	f := s.session.Forecast(params)
	if params.HistoryMonths == 0 {
		params.HistoryMonths = s.session.ForecastDefaults().HistoryMonths
	}
	writeJSON(w, http.StatusOK, newForecastResponse(f, params))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum := s.session.Summary()
	writeJSON(w, http.StatusOK, summaryResponse{
		Current:       newMonthTotals(sum.Current),
		Previous:      newMonthTotals(sum.Previous),
		IncomeChange:  sum.IncomeChange.Round(1),
		ExpenseChange: sum.ExpenseChange.Round(1),
		BalanceChange: sum.BalanceChange.Round(1),
		SavingsRate:   sum.SavingsRate.Round(1),
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	trend := s.session.Trend()
	out := make([]monthTotals, 0, len(trend))
	for _, m := range trend {
		out = append(out, newMonthTotals(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.session.Categories()
	if cats == nil {
		cats = []core.CategoryAmount{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights := s.session.Insights()
	out := make([]insightResponse, 0, len(insights))
	for _, in := range insights {
		out = append(out, insightResponse{Kind: in.Kind, Title: in.Title, Text: in.Text})
	}
	writeJSON(w, http.StatusOK, out)
}
