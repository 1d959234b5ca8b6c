package mock_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/mock"
	"github.com/seclog/agent/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "mock.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGenerator_EventsAreValid(t *testing.T) {
	g := mock.NewGenerator(1)
	events := g.Events(50)
	if len(events) != 50 {
		t.Fatalf("generated %d events, want 50", len(events))
	}
	for i, e := range events {
		if e.EventType == "" {
			t.Fatalf("events[%d] has no event_type", i)
		}
		if e.RawMessage == "" {
			t.Fatalf("events[%d] has no raw_message", i)
		}
		if e.Platform != event.PlatformLinux {
			t.Fatalf("events[%d].Platform = %q, want linux", i, e.Platform)
		}
		if e.EventTime.IsZero() {
			t.Fatalf("events[%d] has no event_time", i)
		}
	}
}

func TestGenerator_EventsAreBackdated(t *testing.T) {
	g := mock.NewGenerator(2)
	events := g.Events(10)
	for i := 1; i < len(events); i++ {
		if events[i].EventTime.After(events[i-1].EventTime) {
			t.Fatalf("events[%d] is newer than events[%d]", i, i-1)
		}
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a := mock.NewGenerator(42).Events(20)
	b := mock.NewGenerator(42).Events(20)
	for i := range a {
		if a[i].EventType != b[i].EventType || a[i].User != b[i].User || a[i].SrcIP != b[i].SrcIP {
			t.Fatalf("event %d differs between identically seeded generators", i)
		}
	}
}

func TestGenerator_AlertsAreValid(t *testing.T) {
	g := mock.NewGenerator(3)
	for i, a := range g.Alerts(30) {
		if a.AlertType == "" || a.Description == "" {
			t.Fatalf("alerts[%d] incomplete: %+v", i, a)
		}
		if !event.ValidStatus(a.Status) {
			t.Fatalf("alerts[%d].Status = %q, not a valid status", i, a.Status)
		}
		if len(a.RelatedEventIDs) == 0 {
			t.Fatalf("alerts[%d] has no related events", i)
		}
	}
}

func TestSeed_PopulatesAnEmptyStore(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	events, alerts, err := mock.Seed(ctx, st, testLogger())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if events != 100 || alerts != 15 {
		t.Fatalf("seeded %d events and %d alerts, want 100 and 15", events, alerts)
	}

	_, total, err := st.QueryEvents(ctx, store.EventQuery{Limit: 1})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if total != 100 {
		t.Fatalf("store holds %d events, want 100", total)
	}
}

func TestSeed_SkipsAPopulatedStore(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if _, _, err := mock.Seed(ctx, st, testLogger()); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	events, alerts, err := mock.Seed(ctx, st, testLogger())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if events != 0 || alerts != 0 {
		t.Fatalf("second seed inserted %d events and %d alerts, want none", events, alerts)
	}
}
