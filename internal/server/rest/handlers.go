package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/store"
	"github.com/seclog/agent/internal/tailer"
)

// maxQueryLimit caps the per-request page size.
const maxQueryLimit = 1000

// writeError writes an HTTP error response with a JSON body containing an
// "error" field. It is a thin wrapper around writeJSONError for use in
// handler functions.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSONError(w, code, msg)
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// RuleStatus is one row of the rules listing.
type RuleStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Server holds the dependencies needed by the REST handlers. Sources and
// Rules are snapshot functions so the handlers stay decoupled from the
// pipeline's concrete types.
type Server struct {
	store   Store
	sources func() map[string]tailer.FileStatus
	rules   func() []RuleStatus
}

// NewServer creates a Server over the given store. sources and rules may be
// nil; the corresponding endpoints then report empty collections.
func NewServer(st Store, sources func() map[string]tailer.FileStatus, rules func() []RuleStatus) *Server {
	return &Server{store: st, sources: sources, rules: rules}
}

// handleHealthz responds to GET /healthz.
//
// This endpoint does not require authentication and returns HTTP 200 with a
// simple JSON body so load balancers and orchestrators can verify liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetEvents responds to GET /api/events.
//
// Supported query parameters, all optional:
//
//	event_type    – exact event type filter
//	platform      – exact platform filter
//	user          – substring match on user
//	src_ip        – substring match on src_ip
//	severity      – exact severity filter
//	log_source    – exact log source filter
//	search        – free-text search over raw_message, user, src_ip, process
//	since_minutes – only events from the last N minutes
//	from, to      – RFC3339 bounds on event_time
//	limit         – page size (default 100, max 1000)
//	offset        – pagination offset (default 0)
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	eq := store.EventQuery{
		EventType: q.Get("event_type"),
		Platform:  q.Get("platform"),
		User:      q.Get("user"),
		SrcIP:     q.Get("src_ip"),
		Severity:  q.Get("severity"),
		LogSource: q.Get("log_source"),
		Search:    q.Get("search"),
		Limit:     store.DefaultQueryLimit,
	}

	var ok bool
	if eq.SinceMinutes, ok = intParam(w, q.Get("since_minutes"), "since_minutes"); !ok {
		return
	}
	if eq.From, ok = timeParam(w, q.Get("from"), "from"); !ok {
		return
	}
	if eq.To, ok = timeParam(w, q.Get("to"), "to"); !ok {
		return
	}
	if eq.Limit, eq.Offset, ok = pageParams(w, q.Get("limit"), q.Get("offset")); !ok {
		return
	}

	events, total, err := s.store.QueryEvents(r.Context(), eq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}
	if events == nil {
		events = []event.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events":      events,
		"total_count": total,
		"limit":       eq.Limit,
		"offset":      eq.Offset,
	})
}

// handlePostEvent responds to POST /api/events, accepting one event from an
// external submitter. The body is an Event JSON object; event_type and
// raw_message are required.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var e event.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON event object")
		return
	}
	if e.EventType == "" || e.RawMessage == "" {
		writeError(w, http.StatusBadRequest, "'event_type' and 'raw_message' are required")
		return
	}

	id, err := s.store.InsertEvent(r.Context(), e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store event")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// handleGetAlerts responds to GET /api/alerts.
//
// Supported query parameters, all optional: alert_type, severity, status,
// since_minutes, from, to (RFC3339, on created_at), limit, offset.
func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	aq := store.AlertQuery{
		AlertType: q.Get("alert_type"),
		Severity:  q.Get("severity"),
		Status:    q.Get("status"),
		Limit:     store.DefaultQueryLimit,
	}

	var ok bool
	if aq.SinceMinutes, ok = intParam(w, q.Get("since_minutes"), "since_minutes"); !ok {
		return
	}
	if aq.From, ok = timeParam(w, q.Get("from"), "from"); !ok {
		return
	}
	if aq.To, ok = timeParam(w, q.Get("to"), "to"); !ok {
		return
	}
	if aq.Limit, aq.Offset, ok = pageParams(w, q.Get("limit"), q.Get("offset")); !ok {
		return
	}

	alerts, total, err := s.store.QueryAlerts(r.Context(), aq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query alerts")
		return
	}
	if alerts == nil {
		alerts = []event.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":      alerts,
		"total_count": total,
		"limit":       aq.Limit,
		"offset":      aq.Offset,
	})
}

// handlePatchAlert responds to PATCH /api/alerts/{id}.
//
// The body must be {"status": "..."} with one of the accepted status
// values. Returns 400 for a malformed id, body, or status value, 404 when
// the alert does not exist.
func (s *Server) handlePatchAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "'id' must be a positive integer")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"status\": \"...\"}")
		return
	}
	if !event.ValidStatus(body.Status) {
		writeError(w, http.StatusBadRequest,
			"'status' must be one of: active, acknowledged, resolved, dismissed")
		return
	}

	updated, err := s.store.UpdateAlertStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
}

// handleGetStats responds to GET /api/stats with the dashboard aggregates.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGetLogSources responds to GET /api/log-sources with the monitored
// file status map keyed by path.
func (s *Server) handleGetLogSources(w http.ResponseWriter, r *http.Request) {
	sources := map[string]tailer.FileStatus{}
	if s.sources != nil {
		sources = s.sources()
	}
	writeJSON(w, http.StatusOK, sources)
}

// handleGetRules responds to GET /api/rules with the catalog listing.
func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	rules := []RuleStatus{}
	if s.rules != nil {
		rules = s.rules()
	}
	writeJSON(w, http.StatusOK, rules)
}

// --- query parameter helpers ---

// intParam parses an optional non-negative integer parameter. On a bad value
// it writes a 400 response and returns ok=false.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "'"+name+"' must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// timeParam parses an optional RFC3339 parameter.
func timeParam(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "'"+name+"' must be a valid RFC3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

// pageParams parses limit and offset with defaults and the global cap.
func pageParams(w http.ResponseWriter, limitStr, offsetStr string) (limit, offset int, ok bool) {
	limit = store.DefaultQueryLimit
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "'limit' must be a positive integer")
			return 0, 0, false
		}
		if n > maxQueryLimit {
			n = maxQueryLimit
		}
		limit = n
	}
	if offsetStr != "" {
		n, err := strconv.Atoi(offsetStr)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "'offset' must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
