// Package metrics defines the daemon's Prometheus instrumentation. The
// collectors are registered on the default registry at init and exposed by
// the HTTP adapter's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesRead counts raw lines delivered by the tailers, per log source.
	LinesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seclog_lines_read_total",
		Help: "Raw log lines read from monitored files.",
	}, []string{"log_source"})

	// EventsStored counts parsed events persisted to the store, per type.
	EventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seclog_events_stored_total",
		Help: "Parsed security events inserted into the store.",
	}, []string{"event_type"})

	// ParseMisses counts lines that matched no parser pattern.
	ParseMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seclog_parse_misses_total",
		Help: "Lines read that produced no security event.",
	}, []string{"log_source"})

	// StoreErrors counts failed store operations.
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seclog_store_errors_total",
		Help: "Store operations that returned an error.",
	})

	// AlertsGenerated counts alerts inserted by the rule engine, per type.
	AlertsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seclog_alerts_generated_total",
		Help: "Alerts generated by the rule engine after deduplication.",
	}, []string{"alert_type"})

	// AnalysisRuns counts rule engine evaluation passes.
	AnalysisRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seclog_analysis_runs_total",
		Help: "Completed rule engine evaluation passes.",
	})

	// AnalysisDuration observes the wall time of an evaluation pass.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seclog_analysis_duration_seconds",
		Help:    "Duration of rule engine evaluation passes.",
		Buckets: prometheus.DefBuckets,
	})
)
