package parser

import (
	"strings"

	"github.com/seclog/agent/internal/event"
)

var (
	reOOMKill = mustCompile(`Out of memory: Kill(?:ed)? process (\d+)`)
	reUSBNew  = mustCompile(`(?i)usb.*new.*USB device`)
	// Kernel messages open with an optional monotonic "[12345.678901]" stamp.
	reKernelStamp = mustCompile(`^\[\s*\d+\.\d+\]\s*`)
)

// ParseKernel parses kern.log lines. Specific failure signatures win over the
// generic error/warning keyword scan; unclassified kernel chatter is dropped.
func ParseKernel(line string) (event.Event, bool) {
	f, ok := splitPrefix(line)
	if !ok || f.process != "kernel" {
		return event.Event{}, false
	}

	e := event.Event{
		EventTime:  f.time,
		Host:       f.host,
		Process:    "kernel",
		LogSource:  string(event.SourceKernel),
		Platform:   event.PlatformLinux,
		RawMessage: line,
	}
	msg := reKernelStamp.ReplaceAllString(f.message, "")
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "segfault"):
		e.EventType = event.TypeKernelSegfault
		e.Severity = event.SeverityError
	case reOOMKill.MatchString(msg):
		e.EventType = event.TypeKernelOOM
		e.Severity = event.SeverityCritical
	case reUSBNew.MatchString(msg):
		e.EventType = event.TypeUSBDeviceConnected
		e.Severity = event.SeverityInfo
	case strings.Contains(lower, "error"):
		e.EventType = event.TypeKernelError
		e.Severity = event.SeverityError
	case strings.Contains(lower, "warning") || strings.Contains(lower, "warn"):
		e.EventType = event.TypeKernelWarning
		e.Severity = event.SeverityWarning
	default:
		return event.Event{}, false
	}

	return e, true
}
