package parser

import (
	"strings"
	"time"

	"github.com/seclog/agent/internal/event"
)

var (
	reUFWAction = mustCompile(`\[UFW\s+(\w+)\]`)
	reSrcIP     = mustCompile(`SRC=([\d.]+)`)
	reDstIP     = mustCompile(`DST=([\d.]+)`)
)

// ParseFirewall parses UFW/iptables log lines. Two shapes are recognized: the
// structured "[UFW ACTION]" form and a generic fallback keyed on the
// BLOCK/DROP/REJECT and ALLOW/ACCEPT verdict keywords. Source and destination
// IPs are extracted whenever present.
func ParseFirewall(line string) (event.Event, bool) {
	e := event.Event{
		EventTime:  time.Now(),
		Process:    "firewall",
		LogSource:  string(event.SourceFirewall),
		Platform:   event.PlatformLinux,
		RawMessage: line,
	}
	// UFW verdicts are logged through the kernel, so most lines carry the
	// syslog prefix; keep its timestamp and host when available.
	if f, ok := splitPrefix(line); ok {
		e.EventTime = f.time
		e.Host = f.host
	}
	if m := reSrcIP.FindStringSubmatch(line); m != nil {
		e.SrcIP = m[1]
	}
	if m := reDstIP.FindStringSubmatch(line); m != nil {
		e.DstIP = m[1]
	}

	if m := reUFWAction.FindStringSubmatch(line); m != nil {
		switch m[1] {
		case "BLOCK":
			e.EventType = event.TypeFirewallBlock
			e.Severity = event.SeverityWarning
		case "ALLOW":
			e.EventType = event.TypeFirewallAllow
			e.Severity = event.SeverityInfo
		case "AUDIT":
			e.EventType = event.TypeFirewallAudit
			e.Severity = event.SeverityInfo
		default:
			e.EventType = event.TypeFirewallEvent
			e.Severity = event.SeverityInfo
		}
		return e, true
	}

	switch {
	case strings.Contains(line, "BLOCK") || strings.Contains(line, "DROP") || strings.Contains(line, "REJECT"):
		e.EventType = event.TypeFirewallBlock
		e.Severity = event.SeverityWarning
		return e, true
	case strings.Contains(line, "ALLOW") || strings.Contains(line, "ACCEPT"):
		e.EventType = event.TypeFirewallAllow
		e.Severity = event.SeverityInfo
		return e, true
	}

	return event.Event{}, false
}
