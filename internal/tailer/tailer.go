// Package tailer follows operating-system log files in real time. A Tailer
// tracks one file by inode and read position so that logrotate-style
// replacement and in-place truncation are both detected and survived; the
// MultiReader supervises a set of tailers and delivers every new line, tagged
// with its log source, to a sink callback.
package tailer

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/seclog/agent/internal/event"
)

// Tailer follows a single log file from its current end. It is not safe for
// concurrent use; the MultiReader serializes access to its tailer set.
type Tailer struct {
	path   string
	source event.LogSource
	logger *slog.Logger

	file     *os.File
	inode    uint64
	position int64
}

// New creates a Tailer for path. The file is not touched until Open.
func New(path string, source event.LogSource, logger *slog.Logger) *Tailer {
	return &Tailer{path: path, source: source, logger: logger}
}

// Path returns the monitored file path.
func (t *Tailer) Path() string { return t.path }

// Source returns the log source this file is tagged with.
func (t *Tailer) Source() event.LogSource { return t.source }

// Position returns the current read offset.
func (t *Tailer) Position() int64 { return t.position }

// Inode returns the inode recorded at open time (0 on platforms without one).
func (t *Tailer) Inode() uint64 { return t.inode }

// Open opens the file and records its inode. With seekEnd the read position
// starts at the current end of file, so only lines appended afterwards are
// returned; without it reading starts at offset 0 (used after rotation).
func (t *Tailer) Open(seekEnd bool) error {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("tailer: open %s: %w", t.path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("tailer: stat %s: %w", t.path, err)
	}

	t.file = f
	t.inode = inodeOf(fi)
	t.position = 0
	if seekEnd {
		t.position = fi.Size()
	}

	t.logger.Info("opened log file",
		slog.String("path", t.path),
		slog.Uint64("inode", t.inode),
		slog.Int64("position", t.position),
	)
	return nil
}

// rotated reports whether the file at t.path is no longer the one we hold: a
// different inode, a vanished file, or a size below our read position all
// mean the file was rotated or truncated.
func (t *Tailer) rotated() bool {
	fi, err := os.Stat(t.path)
	if err != nil {
		return true
	}
	if ino := inodeOf(fi); ino != 0 && t.inode != 0 && ino != t.inode {
		return true
	}
	return fi.Size() < t.position
}

// ReadNewLines returns all complete lines appended since the last call, in
// file order. A partially written final line stays unconsumed until its
// newline arrives. Transient I/O failures yield an empty batch and are
// retried on the next tick. On rotation the held handle is drained first,
// so lines written to the old file after the previous poll still arrive
// ahead of the replacement file's content.
func (t *Tailer) ReadNewLines() []string {
	// A previous pass may have lost the handle (rotation with the new file
	// not yet present, or a Stop/Start cycle); keep retrying until the
	// path comes back, resuming the old position when it is still the
	// same file.
	if t.file == nil {
		prevInode, prevPos := t.inode, t.position
		if err := t.Open(false); err != nil {
			return nil
		}
		if t.inode != 0 && t.inode == prevInode {
			if fi, err := t.file.Stat(); err == nil && fi.Size() >= prevPos {
				t.position = prevPos
			}
		}
	}

	if t.rotated() {
		t.logger.Info("log rotation detected", slog.String("path", t.path))
		// The renamed-away file may hold lines appended since the last
		// poll; they are unreachable once we switch handles.
		lines := t.consume()
		if err := t.Open(false); err != nil {
			t.logger.Error("re-open after rotation failed",
				slog.String("path", t.path),
				slog.Any("error", err),
			)
			return lines
		}
		return append(lines, t.consume()...)
	}

	return t.consume()
}

// consume reads everything past the current position from the held handle
// and returns the complete lines, advancing the position past them.
func (t *Tailer) consume() []string {
	if _, err := t.file.Seek(t.position, io.SeekStart); err != nil {
		t.logger.Error("seek failed", slog.String("path", t.path), slog.Any("error", err))
		return nil
	}
	data, err := io.ReadAll(t.file)
	if err != nil {
		t.logger.Error("read failed", slog.String("path", t.path), slog.Any("error", err))
		return nil
	}

	var lines []string
	consumed := 0
	for {
		idx := bytes.IndexByte(data[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(data[consumed : consumed+idx]))
		consumed += idx + 1
		if line != "" {
			lines = append(lines, line)
		}
	}
	t.position += int64(consumed)
	return lines
}

// Close releases the file handle. The tailer may be re-opened afterwards.
func (t *Tailer) Close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
