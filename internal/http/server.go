// Package http serves the JSON API over a services.Session.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

// maxBodyBytes bounds request bodies; every payload is a single small record.
const maxBodyBytes = 64 << 10

// ServerConfig tunes the middleware stack.
type ServerConfig struct {
	RateLimitPerMinute int
	// TrustedProxies are CIDRs, besides private networks, whose forwarding
	// headers are honored.
	TrustedProxies []string
	Logger         *applog.Logger
}

type Server struct {
	http.Server
	session *services.Session
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	guard   *security.Guard

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, session *services.Session, cfg ServerConfig) (*Server, error) {
	guard, err := security.NewGuard(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentHTTP})
	}

	s := &Server{
		session: session,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(guard.ClientIP, logger),
		guard:   guard,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleUpsertBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)
	mux.HandleFunc("GET /api/budgets/alerts", s.handleBudgetAlerts)
	mux.HandleFunc("GET /api/budgets/status", s.handleBudgetStatus)

	mux.HandleFunc("GET /api/recurring", s.handleListRecurring)
	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("POST /api/recurring/run", s.handleRunRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/toggle", s.handleToggleRecurring)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("POST /api/goals/{id}/progress", s.handleGoalProgress)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)

	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/insights", s.handleInsights)

	// The tracer wraps everything so rejected requests are logged too.
	var h http.Handler = mux
	h = s.limiter.Middleware(guard.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, retry later")
	})(h)
	h = guard.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"today":  s.session.Today().String(),
		"requests": map[string]any{
			"total":         tm.TotalRequests,
			"avgDurationUs": tm.AverageResponseTime,
			"rateLimited":   rm.TotalHits,
			"activeClients": rm.ClientCount,
			"blockedProbes": s.guard.Blocked(),
		},
	})
}
