// Package store is the durable persistence layer for security events and
// alerts, backed by a WAL-mode SQLite database.
//
// # Concurrency
//
// SQLite allows a single writer; the pool is limited to one connection so
// every operation serializes through it and is atomic from the caller's view.
// WAL journal mode lets the HTTP adapter's reads proceed while the pipeline
// writes.
//
// # Schema
//
// Two tables, events and alerts, are created on open if absent, together
// with the indexes the query surface and the rule engine rely on. Events are
// immutable once inserted; only an alert's status column is ever updated.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seclog/agent/internal/event"
	_ "modernc.org/sqlite" // register "sqlite" driver with database/sql
)

// timeLayout is the fixed-width UTC format used for every stored timestamp.
// Fixed width keeps lexicographic string comparison equal to chronological
// order, which the range filters depend on.
const timeLayout = "2006-01-02 15:04:05.000000000"

// DefaultQueryLimit caps result pages when the caller does not ask for an
// explicit limit.
const DefaultQueryLimit = 100

const ddl = `
CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at  TEXT    NOT NULL,
    event_time  TEXT    NOT NULL,
    host        TEXT,
    process     TEXT,
    pid         INTEGER,
    event_type  TEXT    NOT NULL,
    user        TEXT,
    src_ip      TEXT,
    dst_ip      TEXT,
    severity    TEXT    NOT NULL DEFAULT 'info',
    log_source  TEXT,
    platform    TEXT    NOT NULL DEFAULT 'linux',
    raw_message TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_type_time ON events (event_type, event_time);
CREATE INDEX IF NOT EXISTS idx_events_user_time ON events (user, event_time);
CREATE INDEX IF NOT EXISTS idx_events_ip_time   ON events (src_ip, event_time);
CREATE INDEX IF NOT EXISTS idx_events_severity  ON events (severity);
CREATE INDEX IF NOT EXISTS idx_events_source    ON events (log_source);

CREATE TABLE IF NOT EXISTS alerts (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at        TEXT    NOT NULL,
    alert_type        TEXT    NOT NULL,
    severity          TEXT    NOT NULL DEFAULT 'medium',
    description       TEXT    NOT NULL,
    related_event_ids TEXT,
    status            TEXT    NOT NULL DEFAULT 'active'
);
CREATE INDEX IF NOT EXISTS idx_alerts_created         ON alerts (created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_severity_status ON alerts (severity, status);
CREATE INDEX IF NOT EXISTS idx_alerts_type_time       ON alerts (alert_type, created_at);
`

// Store is the SQLite-backed event/alert store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, enables WAL mode, and applies
// the schema. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	// Single writer: serialise all statements through one connection to
	// avoid "database is locked" under concurrent inserts.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEvent persists e and returns its assigned id. The event's severity is
// normalized to the canonical lowercase set and a zero EventTime falls back
// to the ingest time. An empty RawMessage is rejected: every stored event
// keeps its original line verbatim.
func (s *Store) InsertEvent(ctx context.Context, e event.Event) (int64, error) {
	if e.RawMessage == "" {
		return 0, errors.New("store: event has empty raw_message")
	}
	if e.EventType == "" {
		return 0, errors.New("store: event has empty event_type")
	}

	now := time.Now().UTC()
	eventTime := e.EventTime
	if eventTime.IsZero() {
		eventTime = now
	}
	platform := e.Platform
	if platform == "" {
		platform = event.PlatformLinux
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events
			(created_at, event_time, host, process, pid, event_type,
			 user, src_ip, dst_ip, severity, log_source, platform, raw_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		now.Format(timeLayout),
		eventTime.UTC().Format(timeLayout),
		nullableStr(e.Host),
		nullableStr(e.Process),
		nullableInt(e.PID),
		e.EventType,
		nullableStr(e.User),
		nullableStr(e.SrcIP),
		nullableStr(e.DstIP),
		event.NormalizeSeverity(e.Severity),
		nullableStr(e.LogSource),
		platform,
		e.RawMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert event id: %w", err)
	}
	return id, nil
}

// InsertAlert persists a and returns its assigned id. A missing status
// defaults to active and the severity is normalized on the way in.
func (s *Store) InsertAlert(ctx context.Context, a event.Alert) (int64, error) {
	if a.AlertType == "" {
		return 0, errors.New("store: alert has empty alert_type")
	}

	status := a.Status
	if status == "" {
		status = event.StatusActive
	}
	severity := a.Severity
	if severity == "" {
		severity = event.SeverityMedium
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
			(created_at, alert_type, severity, description, related_event_ids, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(timeLayout),
		a.AlertType,
		event.NormalizeSeverity(severity),
		a.Description,
		joinIDs(a.RelatedEventIDs),
		status,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert alert id: %w", err)
	}
	return id, nil
}

// UpdateAlertStatus sets the status of the alert identified by id. It returns
// false when status is not one of the accepted values or no such alert
// exists; events are never updated through any code path.
func (s *Store) UpdateAlertStatus(ctx context.Context, id int64, status string) (bool, error) {
	if !event.ValidStatus(status) {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return false, fmt.Errorf("store: update alert %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: update alert %d: %w", id, err)
	}
	return n > 0, nil
}

// RecentEventsForAnalysis returns up to limit events from the last minutes,
// newest first. It is the slice the rule engine evaluates on every pass.
func (s *Store) RecentEventsForAnalysis(ctx context.Context, minutes, limit int) ([]event.Event, error) {
	events, _, err := s.QueryEvents(ctx, EventQuery{
		SinceMinutes: minutes,
		Limit:        limit,
	})
	return events, err
}

// --- internal helpers ---

// nullableStr converts an empty string to nil, stored as SQL NULL.
func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt converts a zero int to nil, stored as SQL NULL.
func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

// joinIDs serializes related event ids as a comma-separated string, or NULL
// when there are none.
func joinIDs(ids []int64) any {
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// splitIDs parses the comma-separated id column back into a slice.
func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// parseTime reads a stored timestamp back into a time.Time.
func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
