package tailer

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/seclog/agent/internal/event"
)

// DefaultPollInterval is how often the MultiReader drains every tailer.
// Each pass reads all available lines from every file, so starvation is
// bounded by the pass itself rather than the interval.
const DefaultPollInterval = 500 * time.Millisecond

// Sink receives each new line together with the log source of the file it
// came from. Sinks are invoked synchronously from the read loop and must not
// panic; a returned error is logged and the next line proceeds.
type Sink func(line string, source event.LogSource) error

// FileStatus is a snapshot of one monitored file, as reported by Status.
type FileStatus struct {
	LogSource event.LogSource `json:"log_source"`
	Position  int64           `json:"position"`
	Inode     uint64          `json:"inode"`
	Readable  bool            `json:"readable"`
}

// MultiReader supervises a set of tailers keyed by path and delivers their
// lines to a single sink from one background goroutine. Lines from one file
// keep file order; across files there is no ordering guarantee.
type MultiReader struct {
	sink   Sink
	logger *slog.Logger
	poll   time.Duration

	mu      sync.Mutex
	tailers map[string]*Tailer
	running bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewMultiReader creates a MultiReader delivering to sink. A poll interval
// ≤ 0 uses DefaultPollInterval.
func NewMultiReader(sink Sink, logger *slog.Logger, poll time.Duration) *MultiReader {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &MultiReader{
		sink:    sink,
		logger:  logger,
		poll:    poll,
		tailers: make(map[string]*Tailer),
	}
}

// Add enrolls path under the given log source, opened at its current end.
// It returns false when the file does not exist or cannot be opened for
// reading; such paths are not enrolled and the caller may report them once.
// Adding a path that is already monitored is a no-op returning true.
func (m *MultiReader) Add(path string, source event.LogSource) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		m.logger.Warn("log file not available", slog.String("path", path))
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tailers[path]; ok {
		return true
	}

	t := New(path, source, m.logger)
	if err := t.Open(true); err != nil {
		m.logger.Warn("cannot open log file",
			slog.String("path", path),
			slog.Any("error", err),
		)
		return false
	}
	m.tailers[path] = t
	m.logger.Info("monitoring log file",
		slog.String("path", path),
		slog.String("log_source", string(source)),
	)
	return true
}

// Remove stops monitoring path and closes its tailer.
func (m *MultiReader) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tailers[path]; ok {
		_ = t.Close()
		delete(m.tailers, path)
		m.logger.Info("removed log file", slog.String("path", path))
	}
}

// Start launches the background read loop. Calling Start while running is a
// no-op; after a Stop the reader may be started again and each tailer
// resumes from its recorded position.
func (m *MultiReader) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Warn("multi-reader already running")
		return
	}
	m.running = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(m.done)
	m.logger.Info("multi-reader started", slog.Int("files", m.Count()))
}

// Stop halts the read loop, waits for it to exit, and closes every tailer.
// Tailers stay enrolled, so a later Start resumes them. Stop when not
// running is a no-op.
func (m *MultiReader) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	for _, t := range m.tailers {
		_ = t.Close()
	}
	m.mu.Unlock()

	m.logger.Info("multi-reader stopped")
}

// Count returns the number of monitored files.
func (m *MultiReader) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tailers)
}

// Status returns a snapshot of every monitored file keyed by path.
func (m *MultiReader) Status() map[string]FileStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := make(map[string]FileStatus, len(m.tailers))
	for path, t := range m.tailers {
		readable := false
		if f, err := os.Open(path); err == nil {
			readable = true
			_ = f.Close()
		}
		status[path] = FileStatus{
			LogSource: t.Source(),
			Position:  t.Position(),
			Inode:     t.Inode(),
			Readable:  readable,
		}
	}
	return status
}

// run is the background goroutine: every tick it drains all tailers under
// the mutex and feeds each line to the sink.
func (m *MultiReader) run(done chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.pass()
		}
	}
}

// pass drains every tailer once. The sink is called synchronously; a slow
// sink therefore delays reading of the remaining files for this pass.
func (m *MultiReader) pass() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, t := range m.tailers {
		for _, line := range t.ReadNewLines() {
			if err := m.sink(line, t.Source()); err != nil {
				m.logger.Error("sink error",
					slog.String("path", path),
					slog.Any("error", err),
				)
			}
		}
	}
}
