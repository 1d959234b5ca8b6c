package parser

import (
	"strings"

	"github.com/seclog/agent/internal/event"
)

// Systemd unit state transitions logged to the general syslog.
var (
	reFailedToStart = mustCompile(`Failed to start (.+)\.`)
	reStarted       = mustCompile(`Started (.+)\.`)
	reStopped       = mustCompile(`Stopped (.+)\.`)
)

// ParseSyslog classifies general syslog lines. Service state transitions are
// matched first; anything else is kept only when it looks like an error or a
// warning, so the bulk of routine syslog chatter produces no event.
func ParseSyslog(line string) (event.Event, bool) {
	f, ok := splitPrefix(line)
	if !ok {
		return event.Event{}, false
	}

	e := event.Event{
		EventTime:  f.time,
		Host:       f.host,
		Process:    f.process,
		PID:        f.pid,
		LogSource:  string(event.SourceSyslog),
		Platform:   event.PlatformLinux,
		RawMessage: line,
	}
	msg := f.message

	switch {
	case reFailedToStart.MatchString(msg):
		e.EventType = event.TypeServiceFailure
		e.Severity = event.SeverityError
		return e, true
	case reStarted.MatchString(msg):
		e.EventType = event.TypeServiceStart
		e.Severity = event.SeverityInfo
		return e, true
	case reStopped.MatchString(msg):
		e.EventType = event.TypeServiceStop
		e.Severity = event.SeverityInfo
		return e, true
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed"):
		e.EventType = event.TypeSystemError
		e.Severity = event.SeverityError
		return e, true
	case strings.Contains(lower, "warning") || strings.Contains(lower, "warn"):
		e.EventType = event.TypeSystemWarning
		e.Severity = event.SeverityWarning
		return e, true
	}

	return event.Event{}, false
}
