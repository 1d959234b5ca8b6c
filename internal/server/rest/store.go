package rest

import (
	"context"

	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/store"
)

// Store is the subset of store.Store methods used by the REST handlers.
// Defining an interface allows handlers to be tested with a mock store
// without touching a real database file.
type Store interface {
	// QueryEvents returns events matching the filter plus the unpaged
	// match count.
	QueryEvents(ctx context.Context, q store.EventQuery) ([]event.Event, int, error)

	// QueryAlerts returns alerts matching the filter plus the unpaged
	// match count.
	QueryAlerts(ctx context.Context, q store.AlertQuery) ([]event.Alert, int, error)

	// InsertEvent persists an externally submitted event.
	InsertEvent(ctx context.Context, e event.Event) (int64, error)

	// UpdateAlertStatus sets an alert's status; false means the status
	// value was invalid or no such alert exists.
	UpdateAlertStatus(ctx context.Context, id int64, status string) (bool, error)

	// Stats returns the dashboard aggregates.
	Stats(ctx context.Context) (store.Stats, error)
}
