// Package pipeline wires the tailers, parsers, store, and rule engine into
// the running daemon and owns their start/stop ordering.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/seclog/agent/internal/config"
	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/metrics"
	"github.com/seclog/agent/internal/parser"
	"github.com/seclog/agent/internal/rules"
	"github.com/seclog/agent/internal/store"
	"github.com/seclog/agent/internal/tailer"
)

// PathSource maps one well-known log path to its source family.
type PathSource struct {
	Path   string
	Source event.LogSource
}

// DefaultLogPaths is the auto-discovery set: each path is enrolled only if
// it exists and is readable at startup. Debian and RHEL spellings are both
// listed; whichever exists wins.
func DefaultLogPaths() []PathSource {
	return []PathSource{
		{"/var/log/auth.log", event.SourceAuth},
		{"/var/log/secure", event.SourceAuth},
		{"/var/log/syslog", event.SourceSyslog},
		{"/var/log/messages", event.SourceSyslog},
		{"/var/log/kern.log", event.SourceKernel},
		{"/var/log/ufw.log", event.SourceFirewall},
		{"/var/log/firewalld", event.SourceFirewall},
		{"/var/log/audit/audit.log", event.SourceAudit},
	}
}

// EventStore is the slice of the store the pipeline writes to.
type EventStore interface {
	InsertEvent(ctx context.Context, e event.Event) (int64, error)
}

// Pipeline owns the multi-reader and the rule engine and feeds parsed
// events into the store.
type Pipeline struct {
	store  EventStore
	engine *rules.Engine
	reader *tailer.MultiReader
	logger *slog.Logger

	paths []PathSource
}

// Option configures optional Pipeline behaviour.
type Option func(*Pipeline)

// WithLogPaths overrides the auto-discovery set, mainly for tests.
func WithLogPaths(paths []PathSource) Option {
	return func(p *Pipeline) { p.paths = paths }
}

// New assembles a pipeline from cfg. The engine's catalog is built from the
// rules section; extra paths from the monitor section are appended to the
// discovery set.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  st,
		logger: logger,
		paths:  DefaultLogPaths(),
	}
	for _, ps := range cfg.Monitor.ExtraPaths {
		p.paths = append(p.paths, PathSource{ps.Path, event.LogSource(ps.Source)})
	}
	for _, opt := range opts {
		opt(p)
	}

	poll := time.Duration(cfg.Monitor.PollIntervalMS) * time.Millisecond
	p.reader = tailer.NewMultiReader(p.handleLine, logger, poll)
	p.engine = rules.NewEngine(
		st,
		rules.Catalog(cfg.Rules),
		logger,
		time.Duration(cfg.Analysis.IntervalSeconds)*time.Second,
	)
	return p
}

// Engine exposes the rule engine for the HTTP adapter's rules listing.
func (p *Pipeline) Engine() *rules.Engine { return p.engine }

// Status reports the monitored files keyed by path.
func (p *Pipeline) Status() map[string]tailer.FileStatus {
	return p.reader.Status()
}

// Start discovers readable log paths, enrolls a tailer for each, and starts
// the reader and the rule engine. A host with no readable paths still runs:
// the engine evaluates whatever the store already holds, and the condition
// is logged once.
func (p *Pipeline) Start() {
	enrolled := 0
	for _, ps := range p.paths {
		if !readable(ps.Path) {
			continue
		}
		if p.reader.Add(ps.Path, ps.Source) {
			enrolled++
		}
	}
	if enrolled == 0 {
		p.logger.Warn("no readable log files found; running analysis only " +
			"(root privileges are usually required to read system logs)")
	}

	p.reader.Start()
	p.engine.Start()
	p.logger.Info("pipeline started", slog.Int("files", enrolled))
}

// Stop halts the components in reverse start order.
func (p *Pipeline) Stop() {
	p.engine.Stop()
	p.reader.Stop()
	p.logger.Info("pipeline stopped")
}

// handleLine is the tailer sink: parse the line with its source's parser
// and persist the event. Unparseable lines are counted and dropped.
func (p *Pipeline) handleLine(line string, source event.LogSource) error {
	metrics.LinesRead.WithLabelValues(string(source)).Inc()

	e, ok := parser.ForSource(source)(line)
	if !ok {
		metrics.ParseMisses.WithLabelValues(string(source)).Inc()
		return nil
	}
	e.LogSource = string(source)

	id, err := p.store.InsertEvent(context.Background(), e)
	if err != nil {
		metrics.StoreErrors.Inc()
		return err
	}
	metrics.EventsStored.WithLabelValues(e.EventType).Inc()
	p.logger.Debug("event stored",
		slog.Int64("id", id),
		slog.String("event_type", e.EventType),
		slog.String("log_source", string(source)),
	)
	return nil
}

// readable reports whether path exists and the daemon can open it.
func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
