package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/analytics"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/store"
)

var (
	// ErrNotFound is returned when an id does not match any record.
	ErrNotFound = store.ErrNotFound
	// ErrInvalidInput wraps validation failures of user-supplied records.
	ErrInvalidInput = errors.New("invalid input")
)

// SessionConfig tunes a Session.
type SessionConfig struct {
	Owner    string
	Forecast analytics.ForecastParams
	// CacheSize and CacheTTL bound the forecast cache.
	CacheSize int
	CacheTTL  time.Duration
}

// Session is the application state of one owner: the four collections plus
// the services that change them. Mutations are serialized, and every read
// observes a fully applied state.
type Session struct {
	mu sync.RWMutex

	store        store.Store
	transactions *TransactionService
	processor    *RecurringProcessor
	clock        core.Clock
	ids          core.IDGenerator
	forecasts    cache.Cache[analytics.Forecast]
	params       analytics.ForecastParams
	owner        string

	started bool
	version uint64
	// lastCheck is the day of the last completed recurrence check.
	lastCheck string

	txs       []core.Transaction
	budgets   []core.Budget
	recurring []core.RecurringDefinition
	goals     []core.Goal
}

// NewSession builds a session over st. publisher may be nil.
func NewSession(st store.Store, publisher SyncPublisher, clock core.Clock, ids core.IDGenerator, cfg SessionConfig) *Session {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if ids == nil {
		ids = core.NewTimestampIDs()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 32
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	txService := NewTransactionService(st, publisher, ids, cfg.Owner)
	return &Session{
		store:        st,
		transactions: txService,
		processor:    NewRecurringProcessor(NewScheduler(core.Gregorian{}, ids), txService, st),
		clock:        clock,
		ids:          ids,
		forecasts:    cache.NewLRUCache[analytics.Forecast](cfg.CacheSize, cfg.CacheTTL),
		params:       cfg.Forecast.WithDefaults(),
		owner:        cfg.Owner,
	}
}

// ForecastCache exposes the cache so it can be registered for cleanup.
func (s *Session) ForecastCache() cache.Cleaner {
	if c, ok := s.forecasts.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// ForecastDefaults are the parameters used for non-positive request values.
func (s *Session) ForecastDefaults() analytics.ForecastParams {
	return s.params
}

// Today is the session clock's current day.
func (s *Session) Today() core.Date {
	return s.clock.Today()
}

// Load reads all four collections concurrently and replaces the in-memory
// state. Nothing is replaced when any load fails.
func (s *Session) Load(ctx context.Context) error {
	var (
		txs       []core.Transaction
		budgets   []core.Budget
		recurring []core.RecurringDefinition
		goals     []core.Goal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		txs, err = s.store.LoadTransactions(gctx)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		budgets, err = s.store.LoadBudgets(gctx)
		if err != nil {
			return fmt.Errorf("load budgets: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		recurring, err = s.store.LoadRecurring(gctx)
		if err != nil {
			return fmt.Errorf("load recurring: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		goals, err = s.store.LoadGoals(gctx)
		if err != nil {
			return fmt.Errorf("load goals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs, s.budgets, s.recurring, s.goals = txs, budgets, recurring, goals
	s.changed()

	slog.InfoContext(ctx, "Session loaded",
		"owner", s.owner,
		"transactions", len(txs),
		"budgets", len(budgets),
		"recurring", len(recurring),
		"goals", len(goals))
	return nil
}

// Start loads the state and runs the recurrence pass once for the session.
// Later calls return an empty result without touching the state.
func (s *Session) Start(ctx context.Context) (ProcessResult, error) {
	s.mu.Lock()
	started := s.started
	s.started = true
	s.mu.Unlock()
	if started {
		return ProcessResult{}, nil
	}

	if err := s.Load(ctx); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return ProcessResult{}, err
	}
	return s.RunRecurring(ctx)
}

// RunRecurring is the daily recurrence check: it fires the due recurring
// definitions and applies the outcome to the state before any other read or
// write can proceed. Once a check has completed, further calls on the same
// day return a Skipped result, so each definition advances at most one
// period per day. A failed check is retried on the next call.
func (s *Session) RunRecurring(ctx context.Context) (ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.clock.Today()
	if s.lastCheck == today.String() {
		return ProcessResult{Skipped: true}, nil
	}

	res, err := s.processor.Process(ctx, s.recurring, today)
	if len(res.Created) > 0 {
		s.txs = append(s.txs, res.Created...)
		s.recurring = res.Definitions
		s.changed()
	}
	if err == nil {
		s.lastCheck = today.String()
	}
	return res, err
}

// changed invalidates derived results. Callers hold mu.
func (s *Session) changed() {
	s.version++
	s.forecasts.Purge()
}

func (s *Session) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]core.Transaction, 0, len(s.txs)), s.txs...)
}

func (s *Session) Budgets() []core.Budget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]core.Budget, 0, len(s.budgets)), s.budgets...)
}

func (s *Session) Recurring() []core.RecurringDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]core.RecurringDefinition, 0, len(s.recurring)), s.recurring...)
}

func (s *Session) Goals() []core.Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(make([]core.Goal, 0, len(s.goals)), s.goals...)
}

// AddTransaction stores a new transaction and returns it with its id.
func (s *Session) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.transactions.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, invalid(err)
	}
	s.txs = append(s.txs, created)
	s.changed()
	return created, nil
}

func (s *Session) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, t := range s.txs {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err := s.transactions.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.txs = append(s.txs[:idx:idx], s.txs[idx+1:]...)
	s.changed()
	return nil
}

// UpsertBudget sets the limit of category's budget, creating the budget when
// the category has none. An existing budget keeps its id.
func (s *Session) UpsertBudget(ctx context.Context, category string, limit core.Money, alertEnabled bool) (core.Budget, error) {
	b := core.Budget{Category: strings.TrimSpace(category), Limit: limit, AlertEnabled: alertEnabled}
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]core.Budget(nil), s.budgets...)
	found := false
	for i := range next {
		if next[i].Category == b.Category {
			b.ID = next[i].ID
			next[i] = b
			found = true
			break
		}
	}
	if !found {
		b.ID = s.ids.NextID()
		next = append(next, b)
	}

	if err := s.store.SaveBudgets(ctx, next); err != nil {
		return core.Budget{}, fmt.Errorf("save budgets: %w", err)
	}
	s.budgets = next
	s.changed()
	return b, nil
}

func (s *Session) DeleteBudget(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := without(s.budgets, func(b core.Budget) bool { return b.ID == id })
	if !ok {
		return fmt.Errorf("budget %d: %w", id, ErrNotFound)
	}
	if err := s.store.SaveBudgets(ctx, next); err != nil {
		return fmt.Errorf("save budgets: %w", err)
	}
	s.budgets = next
	s.changed()
	return nil
}

// AddRecurring creates an active definition. Its first occurrence must be a
// valid date; it may lie in the past, in which case the next pass fires it.
func (s *Session) AddRecurring(ctx context.Context, def core.RecurringDefinition) (core.RecurringDefinition, error) {
	def.Description = strings.TrimSpace(def.Description)
	def.Category = strings.TrimSpace(def.Category)
	def.Active = true
	if def.Owner == "" {
		def.Owner = s.owner
	}
	if err := def.Validate(); err != nil {
		return core.RecurringDefinition{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	def.ID = s.ids.NextID()
	next := append(append([]core.RecurringDefinition(nil), s.recurring...), def)
	if err := s.store.SaveRecurring(ctx, next); err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("save recurring: %w", err)
	}
	s.recurring = next
	s.changed()
	return def, nil
}

// ToggleRecurring flips the active flag and returns the updated definition.
func (s *Session) ToggleRecurring(ctx context.Context, id int64) (core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]core.RecurringDefinition(nil), s.recurring...)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		next[i].Active = !next[i].Active
		if err := s.store.SaveRecurring(ctx, next); err != nil {
			return core.RecurringDefinition{}, fmt.Errorf("save recurring: %w", err)
		}
		s.recurring = next
		s.changed()
		return next[i], nil
	}
	return core.RecurringDefinition{}, fmt.Errorf("recurring %d: %w", id, ErrNotFound)
}

func (s *Session) DeleteRecurring(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := without(s.recurring, func(d core.RecurringDefinition) bool { return d.ID == id })
	if !ok {
		return fmt.Errorf("recurring %d: %w", id, ErrNotFound)
	}
	if err := s.store.SaveRecurring(ctx, next); err != nil {
		return fmt.Errorf("save recurring: %w", err)
	}
	s.recurring = next
	s.changed()
	return nil
}

func (s *Session) AddGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.Name = strings.TrimSpace(g.Name)
	if err := g.Validate(); err != nil {
		return core.Goal{}, invalid(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g.ID = s.ids.NextID()
	next := append(append([]core.Goal(nil), s.goals...), g)
	if err := s.store.SaveGoals(ctx, next); err != nil {
		return core.Goal{}, fmt.Errorf("save goals: %w", err)
	}
	s.goals = next
	return g, nil
}

// UpdateGoalProgress sets the saved amount of a goal, clamped to its target.
func (s *Session) UpdateGoalProgress(ctx context.Context, id int64, amount core.Money) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]core.Goal(nil), s.goals...)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		next[i] = next[i].WithProgress(amount)
		if err := s.store.SaveGoals(ctx, next); err != nil {
			return core.Goal{}, fmt.Errorf("save goals: %w", err)
		}
		s.goals = next
		return next[i], nil
	}
	return core.Goal{}, fmt.Errorf("goal %d: %w", id, ErrNotFound)
}

func (s *Session) DeleteGoal(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := without(s.goals, func(g core.Goal) bool { return g.ID == id })
	if !ok {
		return fmt.Errorf("goal %d: %w", id, ErrNotFound)
	}
	if err := s.store.SaveGoals(ctx, next); err != nil {
		return fmt.Errorf("save goals: %w", err)
	}
	s.goals = next
	return nil
}

// Forecast returns the forecast for params (non-positive fields take the
// session defaults). Results are cached until the data changes.
func (s *Session) Forecast(params analytics.ForecastParams) analytics.Forecast {
	if params.HistoryMonths <= 0 {
		params.HistoryMonths = s.params.HistoryMonths
	}
	if params.FutureMonths <= 0 {
		params.FutureMonths = s.params.FutureMonths
	}
	today := s.clock.Today()

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := fmt.Sprintf("%d|%d|%d|%s", s.version, params.HistoryMonths, params.FutureMonths, today)
	if f, ok := s.forecasts.Get(key); ok {
		return f
	}
	f := analytics.GenerateForecast(s.txs, params, today)
	s.forecasts.Set(key, f)
	return f
}

// Alerts checks the budgets against today's month.
func (s *Session) Alerts() []analytics.BudgetAlert {
	today := s.clock.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return analytics.CheckBudgets(s.budgets, s.txs, today.MonthKey())
}

func (s *Session) BudgetStatuses() []analytics.BudgetStatus {
	today := s.clock.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return analytics.BudgetStatuses(s.budgets, s.txs, today.MonthKey())
}

func (s *Session) Summary() analytics.MonthSummary {
	today := s.clock.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return analytics.Summarize(s.txs, today)
}

func (s *Session) Trend() []core.MonthlyAggregate {
	today := s.clock.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return analytics.Trend(s.txs, today)
}

// Categories is the current month's expense breakdown.
func (s *Session) Categories() []core.CategoryAmount {
	today := s.clock.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return analytics.CategoryBreakdown(s.txs, today.MonthKey())
}

func (s *Session) Insights() []analytics.Insight {
	today := s.clock.Today()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return analytics.Insights(s.txs, s.budgets, today)
}

// Close releases the publisher.
func (s *Session) Close() error {
	return s.transactions.Close()
}

func invalid(err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return err
	}
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrInvalidDate, core.ErrInvalidType,
		core.ErrInvalidFrequency, core.ErrEmptyDescription, core.ErrEmptyCategory,
		core.ErrEmptyName, core.ErrDescriptionLong,
	} {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return err
}

// without returns items minus the first match and whether one was found.
func without[T any](items []T, match func(T) bool) ([]T, bool) {
	for i, it := range items {
		if match(it) {
			out := make([]T, 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...), true
		}
	}
	return items, false
}
