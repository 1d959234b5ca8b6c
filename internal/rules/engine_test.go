package rules_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/rules"
	"github.com/seclog/agent/internal/store"
)

// fakeStore is an in-memory EngineStore.
type fakeStore struct {
	mu       sync.Mutex
	events   []event.Event
	alerts   []event.Alert
	eventErr error
}

func (s *fakeStore) RecentEventsForAnalysis(ctx context.Context, minutes, limit int) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventErr != nil {
		return nil, s.eventErr
	}
	return append([]event.Event(nil), s.events...), nil
}

func (s *fakeStore) QueryAlerts(ctx context.Context, q store.AlertQuery) ([]event.Alert, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Alert
	for _, a := range s.alerts {
		if q.AlertType != "" && a.AlertType != q.AlertType {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (s *fakeStore) InsertAlert(ctx context.Context, a event.Alert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.alerts) + 1)
	s.alerts = append(s.alerts, a)
	return a.ID, nil
}

func (s *fakeStore) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// fakeRule is a scriptable detector.
type fakeRule struct {
	name    string
	enabled bool
	eval    func([]event.Event) []event.Alert
}

func (r *fakeRule) Name() string  { return r.name }
func (r *fakeRule) Enabled() bool { return r.enabled }

func (r *fakeRule) Evaluate(events []event.Event) []event.Alert {
	return r.eval(events)
}

func engineLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticAlert(alertType, desc string) func([]event.Event) []event.Alert {
	return func([]event.Event) []event.Alert {
		return []event.Alert{{
			AlertType:   alertType,
			Severity:    event.SeverityHigh,
			Description: desc,
		}}
	}
}

func TestEvaluateNow_InsertsFromEnabledRules(t *testing.T) {
	st := &fakeStore{}
	catalog := []rules.Rule{
		&fakeRule{name: "a", enabled: true, eval: staticAlert("TYPE_A", "alert a")},
		&fakeRule{name: "b", enabled: false, eval: staticAlert("TYPE_B", "alert b")},
		&fakeRule{name: "c", enabled: true, eval: staticAlert("TYPE_C", "alert c")},
	}
	e := rules.NewEngine(st, catalog, engineLogger(), time.Minute)

	if n := e.EvaluateNow(context.Background()); n != 2 {
		t.Fatalf("EvaluateNow = %d, want 2", n)
	}
	if st.alertCount() != 2 {
		t.Fatalf("stored %d alerts, want 2", st.alertCount())
	}
	for _, a := range st.alerts {
		if a.AlertType == "TYPE_B" {
			t.Error("disabled rule's alert was stored")
		}
	}
}

func TestEvaluateNow_SuppressesDuplicates(t *testing.T) {
	st := &fakeStore{}
	catalog := []rules.Rule{
		&fakeRule{name: "a", enabled: true, eval: staticAlert("TYPE_A", "same thing")},
	}
	e := rules.NewEngine(st, catalog, engineLogger(), time.Minute)

	if n := e.EvaluateNow(context.Background()); n != 1 {
		t.Fatalf("first pass inserted %d, want 1", n)
	}
	// The second pass produces an identical alert and must skip it.
	if n := e.EvaluateNow(context.Background()); n != 0 {
		t.Fatalf("second pass inserted %d, want 0", n)
	}
	if st.alertCount() != 1 {
		t.Fatalf("stored %d alerts, want 1", st.alertCount())
	}
}

func TestEvaluateNow_DifferentDescriptionIsNotADuplicate(t *testing.T) {
	st := &fakeStore{}
	st.alerts = []event.Alert{{AlertType: "TYPE_A", Description: "old wording"}}
	catalog := []rules.Rule{
		&fakeRule{name: "a", enabled: true, eval: staticAlert("TYPE_A", "new wording")},
	}
	e := rules.NewEngine(st, catalog, engineLogger(), time.Minute)

	if n := e.EvaluateNow(context.Background()); n != 1 {
		t.Fatalf("EvaluateNow = %d, want 1", n)
	}
}

func TestEvaluateNow_PanickingRuleIsIsolated(t *testing.T) {
	st := &fakeStore{}
	catalog := []rules.Rule{
		&fakeRule{name: "boom", enabled: true, eval: func([]event.Event) []event.Alert {
			panic("rule bug")
		}},
		&fakeRule{name: "ok", enabled: true, eval: staticAlert("TYPE_OK", "still works")},
	}
	e := rules.NewEngine(st, catalog, engineLogger(), time.Minute)

	if n := e.EvaluateNow(context.Background()); n != 1 {
		t.Fatalf("EvaluateNow = %d, want 1 from the surviving rule", n)
	}
}

func TestEvaluateNow_StoreErrorYieldsZero(t *testing.T) {
	st := &fakeStore{eventErr: errors.New("database is locked")}
	catalog := []rules.Rule{
		&fakeRule{name: "a", enabled: true, eval: staticAlert("TYPE_A", "alert a")},
	}
	e := rules.NewEngine(st, catalog, engineLogger(), time.Minute)

	if n := e.EvaluateNow(context.Background()); n != 0 {
		t.Fatalf("EvaluateNow = %d, want 0 when events cannot be loaded", n)
	}
}

func TestEvaluateNow_RulesSeeTheEventSlice(t *testing.T) {
	st := &fakeStore{events: []event.Event{
		{ID: 1, EventType: event.TypeAuthFailure},
		{ID: 2, EventType: event.TypeAuthFailure},
	}}
	var seen int
	catalog := []rules.Rule{
		&fakeRule{name: "counter", enabled: true, eval: func(events []event.Event) []event.Alert {
			seen = len(events)
			return nil
		}},
	}
	e := rules.NewEngine(st, catalog, engineLogger(), time.Minute)
	e.EvaluateNow(context.Background())
	if seen != 2 {
		t.Fatalf("rule saw %d events, want 2", seen)
	}
}

func TestEngine_LoopEvaluatesOnInterval(t *testing.T) {
	st := &fakeStore{}
	var mu sync.Mutex
	passes := 0
	catalog := []rules.Rule{
		&fakeRule{name: "tick", enabled: true, eval: func([]event.Event) []event.Alert {
			mu.Lock()
			passes++
			mu.Unlock()
			return nil
		}},
	}
	e := rules.NewEngine(st, catalog, engineLogger(), 20*time.Millisecond)
	e.Start()
	defer e.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := passes
		mu.Unlock()
		if n >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("engine loop did not evaluate twice before deadline")
}

func TestEngine_FirstPassRunsImmediately(t *testing.T) {
	st := &fakeStore{}
	var mu sync.Mutex
	passes := 0
	catalog := []rules.Rule{
		&fakeRule{name: "tick", enabled: true, eval: func([]event.Event) []event.Alert {
			mu.Lock()
			passes++
			mu.Unlock()
			return nil
		}},
	}
	// An hour-long interval: the only way a pass happens inside the test
	// deadline is the immediate one on startup.
	e := rules.NewEngine(st, catalog, engineLogger(), time.Hour)
	e.Start()
	defer e.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := passes
		mu.Unlock()
		if n >= 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no evaluation pass ran at startup")
}

func TestEngine_StartTwiceAndStopTwice(t *testing.T) {
	st := &fakeStore{}
	e := rules.NewEngine(st, nil, engineLogger(), time.Minute)

	e.Start()
	e.Start()
	e.Stop()
	e.Stop()

	// The engine restarts cleanly after a stop.
	e.Start()
	e.Stop()
}

func TestEngine_StopWithoutStart(t *testing.T) {
	e := rules.NewEngine(&fakeStore{}, nil, engineLogger(), time.Minute)
	e.Stop()
}
