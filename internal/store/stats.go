package store

import (
	"context"
	"fmt"
	"time"

	"github.com/seclog/agent/internal/event"
)

// IPCount is one entry of the top-source-IPs ranking.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// UserCount is one entry of the top-users ranking.
type UserCount struct {
	User  string `json:"user"`
	Count int    `json:"count"`
}

// HourCount is one bucket of the 24-hour event histogram.
type HourCount struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// Stats is the aggregate snapshot served to the dashboard.
type Stats struct {
	TotalEvents int `json:"total_events"`
	TotalAlerts int `json:"total_alerts"`

	EventsByType     map[string]int `json:"events_by_type"`
	EventsByOS       map[string]int `json:"events_by_os"`
	EventsBySeverity map[string]int `json:"events_by_severity"`
	AlertsBySeverity map[string]int `json:"alerts_by_severity"`
	AlertsByStatus   map[string]int `json:"alerts_by_status"`

	TopSourceIPs []IPCount   `json:"top_source_ips"`
	TopUsers     []UserCount `json:"top_users"`
	HourlyEvents []HourCount `json:"hourly_events"`

	FailedLogins     int `json:"failed_logins"`
	SuccessfulLogins int `json:"successful_logins"`
	UniqueIPs        int `json:"unique_ips"`
}

// Stats derives the dashboard aggregates in a single pass over both tables'
// indexes: totals, per-dimension counts, top-10 rankings, the last-24-hours
// hourly histogram, and the login counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		EventsByType:     map[string]int{},
		EventsByOS:       map[string]int{},
		EventsBySeverity: map[string]int{},
		AlertsBySeverity: map[string]int{},
		AlertsByStatus:   map[string]int{},
		TopSourceIPs:     []IPCount{},
		TopUsers:         []UserCount{},
		HourlyEvents:     []HourCount{},
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&st.TotalEvents); err != nil {
		return st, fmt.Errorf("store: stats total events: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&st.TotalAlerts); err != nil {
		return st, fmt.Errorf("store: stats total alerts: %w", err)
	}

	for _, g := range []struct {
		query string
		dest  map[string]int
	}{
		{`SELECT event_type, COUNT(*) FROM events GROUP BY event_type`, st.EventsByType},
		{`SELECT platform, COUNT(*) FROM events GROUP BY platform`, st.EventsByOS},
		{`SELECT severity, COUNT(*) FROM events GROUP BY severity`, st.EventsBySeverity},
		{`SELECT severity, COUNT(*) FROM alerts GROUP BY severity`, st.AlertsBySeverity},
		{`SELECT status, COUNT(*) FROM alerts GROUP BY status`, st.AlertsByStatus},
	} {
		if err := s.groupCount(ctx, g.query, g.dest); err != nil {
			return st, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT src_ip, COUNT(*) AS n
		FROM   events
		WHERE  src_ip IS NOT NULL AND src_ip != ''
		GROUP  BY src_ip
		ORDER  BY n DESC
		LIMIT  10`)
	if err != nil {
		return st, fmt.Errorf("store: stats top ips: %w", err)
	}
	for rows.Next() {
		var c IPCount
		if err := rows.Scan(&c.IP, &c.Count); err != nil {
			rows.Close()
			return st, fmt.Errorf("store: stats top ips: %w", err)
		}
		st.TopSourceIPs = append(st.TopSourceIPs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("store: stats top ips: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT user, COUNT(*) AS n
		FROM   events
		WHERE  user IS NOT NULL AND user != ''
		GROUP  BY user
		ORDER  BY n DESC
		LIMIT  10`)
	if err != nil {
		return st, fmt.Errorf("store: stats top users: %w", err)
	}
	for rows.Next() {
		var c UserCount
		if err := rows.Scan(&c.User, &c.Count); err != nil {
			rows.Close()
			return st, fmt.Errorf("store: stats top users: %w", err)
		}
		st.TopUsers = append(st.TopUsers, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("store: stats top users: %w", err)
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour).Format(timeLayout)
	rows, err = s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d %H:00:00', event_time) AS hour, COUNT(*)
		FROM   events
		WHERE  event_time >= ?
		GROUP  BY hour
		ORDER  BY hour`, cutoff)
	if err != nil {
		return st, fmt.Errorf("store: stats hourly: %w", err)
	}
	for rows.Next() {
		var c HourCount
		if err := rows.Scan(&c.Hour, &c.Count); err != nil {
			rows.Close()
			return st, fmt.Errorf("store: stats hourly: %w", err)
		}
		st.HourlyEvents = append(st.HourlyEvents, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("store: stats hourly: %w", err)
	}

	// Legacy ingestors wrote FAILED_LOGIN/SUCCESS_LOGIN; count both spellings.
	st.FailedLogins = st.EventsByType[event.TypeAuthFailure] + st.EventsByType[event.TypeFailedLogin]
	st.SuccessfulLogins = st.EventsByType[event.TypeAuthSuccess] + st.EventsByType[event.TypeSuccessLogin]

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT src_ip) FROM events
		WHERE  src_ip IS NOT NULL AND src_ip != ''`,
	).Scan(&st.UniqueIPs); err != nil {
		return st, fmt.Errorf("store: stats unique ips: %w", err)
	}

	return st, nil
}

// groupCount runs a two-column (key, count) GROUP BY query into dest.
func (s *Store) groupCount(ctx context.Context, query string, dest map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("store: stats group: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("store: stats group scan: %w", err)
		}
		if key != "" {
			dest[key] = n
		}
	}
	return rows.Err()
}
