package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seclog/agent/internal/event"
)

// EventQuery holds the optional filters for QueryEvents. String filters are
// exact matches except User, SrcIP, and Search, which match substrings
// case-insensitively. A Limit ≤ 0 means unlimited.
type EventQuery struct {
	EventType string
	Platform  string
	User      string
	SrcIP     string
	Severity  string
	LogSource string
	// Search matches raw_message, user, src_ip, or process.
	Search string

	// SinceMinutes restricts to events whose event_time falls within the
	// last N minutes. From/To are absolute bounds on event_time.
	SinceMinutes int
	From         time.Time
	To           time.Time

	Limit  int
	Offset int
}

// AlertQuery holds the optional filters for QueryAlerts; time filters apply
// to created_at. A Limit ≤ 0 means unlimited.
type AlertQuery struct {
	AlertType string
	Severity  string
	Status    string

	SinceMinutes int
	From         time.Time
	To           time.Time

	Limit  int
	Offset int
}

// QueryEvents returns events matching q ordered by event_time descending
// (id descending as tie-break, so paging is stable on a quiescent store),
// together with the unpaged match count.
func (s *Store) QueryEvents(ctx context.Context, q EventQuery) ([]event.Event, int, error) {
	where := "1=1"
	var args []any

	add := func(clause string, vals ...any) {
		where += " AND " + clause
		args = append(args, vals...)
	}

	if q.EventType != "" {
		add("event_type = ?", q.EventType)
	}
	if q.Platform != "" {
		add("platform = ?", q.Platform)
	}
	if q.User != "" {
		add("user LIKE '%' || ? || '%'", q.User)
	}
	if q.SrcIP != "" {
		add("src_ip LIKE '%' || ? || '%'", q.SrcIP)
	}
	if q.Severity != "" {
		add("severity = ?", q.Severity)
	}
	if q.LogSource != "" {
		add("log_source = ?", q.LogSource)
	}
	if q.Search != "" {
		add(`(raw_message LIKE '%' || ? || '%'
			OR user LIKE '%' || ? || '%'
			OR src_ip LIKE '%' || ? || '%'
			OR process LIKE '%' || ? || '%')`,
			q.Search, q.Search, q.Search, q.Search)
	}
	if q.SinceMinutes > 0 {
		since := time.Now().UTC().Add(-time.Duration(q.SinceMinutes) * time.Minute)
		add("event_time >= ?", since.Format(timeLayout))
	}
	if !q.From.IsZero() {
		add("event_time >= ?", q.From.UTC().Format(timeLayout))
	}
	if !q.To.IsZero() {
		add("event_time <= ?", q.To.UTC().Format(timeLayout))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count events: %w", err)
	}

	sqlStr := `
		SELECT id, created_at, event_time, host, process, pid, event_type,
		       user, src_ip, dst_ip, severity, log_source, platform, raw_message
		FROM   events
		WHERE  ` + where + `
		ORDER  BY event_time DESC, id DESC`
	sqlStr, args = paginate(sqlStr, args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// QueryAlerts returns alerts matching q ordered by created_at descending
// (id descending as tie-break), together with the unpaged match count.
func (s *Store) QueryAlerts(ctx context.Context, q AlertQuery) ([]event.Alert, int, error) {
	where := "1=1"
	var args []any

	add := func(clause string, vals ...any) {
		where += " AND " + clause
		args = append(args, vals...)
	}

	if q.AlertType != "" {
		add("alert_type = ?", q.AlertType)
	}
	if q.Severity != "" {
		add("severity = ?", q.Severity)
	}
	if q.Status != "" {
		add("status = ?", q.Status)
	}
	if q.SinceMinutes > 0 {
		since := time.Now().UTC().Add(-time.Duration(q.SinceMinutes) * time.Minute)
		add("created_at >= ?", since.Format(timeLayout))
	}
	if !q.From.IsZero() {
		add("created_at >= ?", q.From.UTC().Format(timeLayout))
	}
	if !q.To.IsZero() {
		add("created_at <= ?", q.To.UTC().Format(timeLayout))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alerts WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count alerts: %w", err)
	}

	sqlStr := `
		SELECT id, created_at, alert_type, severity, description,
		       related_event_ids, status
		FROM   alerts
		WHERE  ` + where + `
		ORDER  BY created_at DESC, id DESC`
	sqlStr, args = paginate(sqlStr, args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []event.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, total, rows.Err()
}

// paginate appends LIMIT/OFFSET clauses. SQLite requires a LIMIT before
// OFFSET, so an unlimited query with an offset uses LIMIT -1.
func paginate(sqlStr string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, limit)
	} else if offset > 0 {
		sqlStr += " LIMIT -1"
	}
	if offset > 0 {
		sqlStr += " OFFSET ?"
		args = append(args, offset)
	}
	return sqlStr, args
}

// scanner is satisfied by both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (event.Event, error) {
	var (
		e                    event.Event
		createdAt, eventTime string
		host, process        sql.NullString
		pid                  sql.NullInt64
		user, srcIP, dstIP   sql.NullString
		logSource            sql.NullString
	)
	err := sc.Scan(
		&e.ID, &createdAt, &eventTime,
		&host, &process, &pid,
		&e.EventType,
		&user, &srcIP, &dstIP,
		&e.Severity, &logSource, &e.Platform, &e.RawMessage,
	)
	if err != nil {
		return event.Event{}, err
	}
	e.CreatedAt = parseTime(createdAt)
	e.EventTime = parseTime(eventTime)
	e.Host = host.String
	e.Process = process.String
	e.PID = int(pid.Int64)
	e.User = user.String
	e.SrcIP = srcIP.String
	e.DstIP = dstIP.String
	e.LogSource = logSource.String
	return e, nil
}

func scanAlert(sc scanner) (event.Alert, error) {
	var (
		a          event.Alert
		createdAt  string
		relatedIDs sql.NullString
	)
	err := sc.Scan(
		&a.ID, &createdAt, &a.AlertType, &a.Severity,
		&a.Description, &relatedIDs, &a.Status,
	)
	if err != nil {
		return event.Alert{}, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.RelatedEventIDs = splitIDs(relatedIDs.String)
	return a, nil
}
