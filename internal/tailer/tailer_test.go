package tailer_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/tailer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFile creates path with content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// appendFile appends content to path.
func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s for append: %v", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append to %s: %v", path, err)
	}
	f.Close()
}

func TestTailer_SeekEndSkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "old line 1\nold line 2\n")

	tl := tailer.New(path, event.SourceSyslog, testLogger())
	if err := tl.Open(true); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tl.Close()

	if lines := tl.ReadNewLines(); lines != nil {
		t.Fatalf("ReadNewLines = %v, want nothing before new writes", lines)
	}

	appendFile(t, path, "new line\n")
	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, []string{"new line"}) {
		t.Fatalf("ReadNewLines = %v, want [new line]", lines)
	}
}

func TestTailer_ReadsFromStartWithoutSeekEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "first\nsecond\n")

	tl := tailer.New(path, event.SourceSyslog, testLogger())
	if err := tl.Open(false); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tl.Close()

	want := []string{"first", "second"}
	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, want) {
		t.Fatalf("ReadNewLines = %v, want %v", lines, want)
	}
}

func TestTailer_PartialLineStaysBuffered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "")

	tl := tailer.New(path, event.SourceSyslog, testLogger())
	if err := tl.Open(true); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tl.Close()

	appendFile(t, path, "complete\nincompl")
	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, []string{"complete"}) {
		t.Fatalf("ReadNewLines = %v, want [complete]", lines)
	}

	// The partial line is delivered once its newline arrives.
	appendFile(t, path, "ete\n")
	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, []string{"incomplete"}) {
		t.Fatalf("ReadNewLines = %v, want [incomplete]", lines)
	}
}

func TestTailer_RotationByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "before rotation\n")

	tl := tailer.New(path, event.SourceSyslog, testLogger())
	if err := tl.Open(true); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tl.Close()

	// logrotate style: rename the live file and recreate the path.
	if err := os.Rename(path, filepath.Join(dir, "app.log.1")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	writeFile(t, path, "after rotation\n")

	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, []string{"after rotation"}) {
		t.Fatalf("ReadNewLines = %v, want [after rotation]", lines)
	}
}

func TestTailer_RotationDrainsOldFileFirst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "old 1\nold 2\n")

	tl := tailer.New(path, event.SourceSyslog, testLogger())
	if err := tl.Open(true); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tl.Close()

	// Lines land in the old file after the last poll, then logrotate
	// renames it and the replacement gets its own lines. All five must
	// arrive, old-file tail first.
	appendFile(t, path, "A\nB\nC\n")
	if err := os.Rename(path, filepath.Join(dir, "app.log.1")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	writeFile(t, path, "D\nE\n")

	want := []string{"A", "B", "C", "D", "E"}
	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, want) {
		t.Fatalf("ReadNewLines = %v, want %v", lines, want)
	}
}

func TestTailer_Truncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "line 1\nline 2\nline 3\n")

	tl := tailer.New(path, event.SourceSyslog, testLogger())
	if err := tl.Open(true); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tl.Close()

	// Truncate in place and write fresh content shorter than the old
	// position; the tailer must restart from offset 0.
	writeFile(t, path, "fresh\n")
	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, []string{"fresh"}) {
		t.Fatalf("ReadNewLines = %v, want [fresh]", lines)
	}
}

func TestTailer_VanishedFileYieldsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "x\n")

	tl := tailer.New(path, event.SourceSyslog, testLogger())
	if err := tl.Open(true); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tl.Close()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if lines := tl.ReadNewLines(); lines != nil {
		t.Fatalf("ReadNewLines = %v, want nothing for vanished file", lines)
	}

	// The tailer stays live and picks the file back up when it returns.
	writeFile(t, path, "revived\n")
	if lines := tl.ReadNewLines(); !reflect.DeepEqual(lines, []string{"revived"}) {
		t.Fatalf("ReadNewLines = %v, want [revived]", lines)
	}
}

// --- MultiReader ---

// collector is a thread-safe sink recording delivered lines.
type collector struct {
	mu    sync.Mutex
	lines []string
	srcs  []event.LogSource
}

func (c *collector) sink(line string, source event.LogSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	c.srcs = append(c.srcs, source)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMultiReader_DeliversTaggedLines(t *testing.T) {
	dir := t.TempDir()
	authPath := filepath.Join(dir, "auth.log")
	kernPath := filepath.Join(dir, "kern.log")
	writeFile(t, authPath, "")
	writeFile(t, kernPath, "")

	var c collector
	mr := tailer.NewMultiReader(c.sink, testLogger(), 10*time.Millisecond)
	t.Cleanup(mr.Stop)

	if !mr.Add(authPath, event.SourceAuth) {
		t.Fatal("Add(authPath) = false")
	}
	if !mr.Add(kernPath, event.SourceKernel) {
		t.Fatal("Add(kernPath) = false")
	}
	if mr.Count() != 2 {
		t.Fatalf("Count = %d, want 2", mr.Count())
	}
	mr.Start()

	appendFile(t, authPath, "auth line\n")
	appendFile(t, kernPath, "kern line\n")

	waitFor(t, func() bool { return len(c.snapshot()) == 2 })

	c.mu.Lock()
	defer c.mu.Unlock()
	got := map[string]event.LogSource{}
	for i, line := range c.lines {
		got[line] = c.srcs[i]
	}
	if got["auth line"] != event.SourceAuth {
		t.Errorf("auth line tagged %q, want %q", got["auth line"], event.SourceAuth)
	}
	if got["kern line"] != event.SourceKernel {
		t.Errorf("kern line tagged %q, want %q", got["kern line"], event.SourceKernel)
	}
}

func TestMultiReader_AddMissingFile(t *testing.T) {
	var c collector
	mr := tailer.NewMultiReader(c.sink, testLogger(), 10*time.Millisecond)
	t.Cleanup(mr.Stop)

	if mr.Add(filepath.Join(t.TempDir(), "absent.log"), event.SourceAuth) {
		t.Fatal("Add of a missing file = true, want false")
	}
	if mr.Count() != 0 {
		t.Fatalf("Count = %d, want 0", mr.Count())
	}
}

func TestMultiReader_AddTwiceIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "")

	var c collector
	mr := tailer.NewMultiReader(c.sink, testLogger(), 10*time.Millisecond)
	t.Cleanup(mr.Stop)

	if !mr.Add(path, event.SourceSyslog) || !mr.Add(path, event.SourceSyslog) {
		t.Fatal("Add returned false")
	}
	if mr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", mr.Count())
	}
}

func TestMultiReader_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "")

	var c collector
	mr := tailer.NewMultiReader(c.sink, testLogger(), 10*time.Millisecond)
	t.Cleanup(mr.Stop)

	mr.Add(path, event.SourceSyslog)
	mr.Remove(path)
	if mr.Count() != 0 {
		t.Fatalf("Count = %d, want 0 after Remove", mr.Count())
	}
}

func TestMultiReader_StatusSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "seed\n")

	var c collector
	mr := tailer.NewMultiReader(c.sink, testLogger(), 10*time.Millisecond)
	t.Cleanup(mr.Stop)

	mr.Add(path, event.SourceFirewall)
	status := mr.Status()
	st, ok := status[path]
	if !ok {
		t.Fatalf("Status missing %s: %v", path, status)
	}
	if st.LogSource != event.SourceFirewall {
		t.Errorf("LogSource = %q, want %q", st.LogSource, event.SourceFirewall)
	}
	if !st.Readable {
		t.Error("Readable = false, want true")
	}
	if st.Position != int64(len("seed\n")) {
		t.Errorf("Position = %d, want %d", st.Position, len("seed\n"))
	}
}

func TestMultiReader_StopIsIdempotent(t *testing.T) {
	var c collector
	mr := tailer.NewMultiReader(c.sink, testLogger(), 10*time.Millisecond)
	mr.Start()
	mr.Stop()
	mr.Stop()
}

func TestMultiReader_RestartResumesWithoutRereading(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeFile(t, path, "seed 1\nseed 2\n")

	var c collector
	mr := tailer.NewMultiReader(c.sink, testLogger(), 10*time.Millisecond)
	t.Cleanup(mr.Stop)

	mr.Add(path, event.SourceSyslog)
	mr.Start()
	mr.Stop()

	// The same reader comes back up and picks the file at its old
	// position: only the post-restart line is delivered, never the seed.
	mr.Start()
	appendFile(t, path, "after restart\n")

	waitFor(t, func() bool { return len(c.snapshot()) >= 1 })
	if lines := c.snapshot(); !reflect.DeepEqual(lines, []string{"after restart"}) {
		t.Fatalf("delivered %v, want [after restart]", lines)
	}
}
