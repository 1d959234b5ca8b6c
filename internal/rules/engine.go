package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/metrics"
	"github.com/seclog/agent/internal/store"
)

const (
	// DefaultInterval is the pause between evaluation passes.
	DefaultInterval = 60 * time.Second

	// windowMinutes and maxEvents bound the event slice each pass
	// evaluates; dedupWindow and dedupLimit bound the stored alerts
	// consulted for duplicate suppression.
	windowMinutes = 15
	maxEvents     = 1000
	dedupWindow   = 15
	dedupLimit    = 100

	// stopTimeout bounds the join in Stop.
	stopTimeout = 5 * time.Second
)

// EngineStore is the slice of the store the engine needs.
type EngineStore interface {
	RecentEventsForAnalysis(ctx context.Context, minutes, limit int) ([]event.Event, error)
	QueryAlerts(ctx context.Context, q store.AlertQuery) ([]event.Alert, int, error)
	InsertAlert(ctx context.Context, a event.Alert) (int64, error)
}

// Engine periodically evaluates the rule catalog over recent events and
// persists the alerts that survive deduplication.
type Engine struct {
	store    EngineStore
	catalog  []Rule
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewEngine creates an engine over the given catalog. An interval ≤ 0 uses
// DefaultInterval.
func NewEngine(st EngineStore, catalog []Rule, logger *slog.Logger, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		store:    st,
		catalog:  catalog,
		logger:   logger,
		interval: interval,
	}
}

// Catalog returns the engine's rules in evaluation order.
func (e *Engine) Catalog() []Rule {
	return e.catalog
}

// Start launches the background evaluation loop. Calling Start while running
// is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.logger.Warn("rule engine already running")
		return
	}
	e.running = true
	e.done = make(chan struct{})

	e.wg.Add(1)
	go e.run(e.done)
	e.logger.Info("rule engine started",
		slog.Duration("interval", e.interval),
		slog.Int("rules", len(e.catalog)),
	)
}

// Stop halts the loop and waits up to five seconds for the worker to exit.
// It is safe to call Stop when the engine is not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.done)
	e.mu.Unlock()

	joined := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
		e.logger.Info("rule engine stopped")
	case <-time.After(stopTimeout):
		e.logger.Warn("rule engine stop timed out")
	}
}

// run evaluates immediately, then sleeps between passes in one-second
// slices so Stop is observed promptly even with long intervals.
func (e *Engine) run(done chan struct{}) {
	defer e.wg.Done()

	for {
		e.EvaluateNow(context.Background())

		remaining := e.interval
		for remaining > 0 {
			slice := time.Second
			if remaining < slice {
				slice = remaining
			}
			select {
			case <-done:
				return
			case <-time.After(slice):
			}
			remaining -= slice
		}
	}
}

// EvaluateNow runs one full evaluation pass: pull the recent event slice,
// run every enabled rule, and insert the candidate alerts that are not
// duplicates of a recently stored one. It returns the number of alerts
// inserted.
func (e *Engine) EvaluateNow(ctx context.Context) int {
	started := time.Now()
	defer func() {
		metrics.AnalysisRuns.Inc()
		metrics.AnalysisDuration.Observe(time.Since(started).Seconds())
	}()

	events, err := e.store.RecentEventsForAnalysis(ctx, windowMinutes, maxEvents)
	if err != nil {
		e.logger.Error("cannot load events for analysis", slog.Any("error", err))
		metrics.StoreErrors.Inc()
		return 0
	}

	inserted := 0
	for _, rule := range e.catalog {
		if !rule.Enabled() {
			continue
		}
		for _, alert := range e.evaluateRule(rule, events) {
			dup, err := e.isDuplicate(ctx, alert)
			if err != nil {
				e.logger.Error("alert dedup lookup failed",
					slog.String("rule", rule.Name()),
					slog.Any("error", err),
				)
				metrics.StoreErrors.Inc()
				continue
			}
			if dup {
				continue
			}
			id, err := e.store.InsertAlert(ctx, alert)
			if err != nil {
				e.logger.Error("cannot insert alert",
					slog.String("rule", rule.Name()),
					slog.Any("error", err),
				)
				metrics.StoreErrors.Inc()
				continue
			}
			inserted++
			metrics.AlertsGenerated.WithLabelValues(alert.AlertType).Inc()
			e.logger.Info("alert generated",
				slog.Int64("id", id),
				slog.String("alert_type", alert.AlertType),
				slog.String("severity", alert.Severity),
				slog.String("description", alert.Description),
			)
		}
	}
	return inserted
}

// evaluateRule runs one rule with panic isolation: a panicking rule is
// logged by name and treated as having produced no alerts.
func (e *Engine) evaluateRule(rule Rule, events []event.Event) (alerts []event.Alert) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule panicked",
				slog.String("rule", rule.Name()),
				slog.Any("panic", fmt.Sprint(r)),
			)
			alerts = nil
		}
	}()
	return rule.Evaluate(events)
}

// isDuplicate reports whether an identical (alert_type, description) pair
// was stored within the dedup window.
func (e *Engine) isDuplicate(ctx context.Context, a event.Alert) (bool, error) {
	recent, _, err := e.store.QueryAlerts(ctx, store.AlertQuery{
		AlertType:    a.AlertType,
		SinceMinutes: dedupWindow,
		Limit:        dedupLimit,
	})
	if err != nil {
		return false, err
	}
	for _, r := range recent {
		if r.Description == a.Description {
			return true, nil
		}
	}
	return false, nil
}
