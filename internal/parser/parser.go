// Package parser turns raw log lines into normalized security events. Each
// log source has its own parse function; all of them are pure and return
// (Event, true) when the line is of interest, or (zero, false) when it is not
// parseable or simply not interesting. Bad input never produces an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seclog/agent/internal/event"
)

// Func is the contract every parser family satisfies: a pure function from
// one log line to at most one event.
type Func func(line string) (event.Event, bool)

// ForSource returns the parse function responsible for the given log source.
// Unknown sources fall back to the syslog parser, which is the most permissive
// of the family.
func ForSource(src event.LogSource) Func {
	switch src {
	case event.SourceAuth:
		return ParseAuth
	case event.SourceKernel:
		return ParseKernel
	case event.SourceFirewall:
		return ParseFirewall
	case event.SourceAudit:
		return ParseAudit
	default:
		return ParseSyslog
	}
}

// Detect routes a line to a log source by its first matching token. The order
// matters: UFW lines also contain "kernel:", and audit lines never carry the
// syslog prefix.
func Detect(line string) event.LogSource {
	switch {
	case strings.Contains(line, "[UFW"):
		return event.SourceFirewall
	case strings.Contains(line, "type=") && strings.Contains(line, "msg=audit"):
		return event.SourceAudit
	case strings.Contains(line, "kernel:"):
		return event.SourceKernel
	case strings.Contains(line, "sshd") ||
		strings.Contains(line, "sudo") ||
		strings.Contains(line, "pam_unix") ||
		strings.Contains(line, "passwd") ||
		strings.Contains(line, "useradd"):
		return event.SourceAuth
	default:
		return event.SourceSyslog
	}
}

// Parse auto-detects the source of line and applies the matching parser.
func Parse(line string) (event.Event, bool) {
	return ForSource(Detect(line))(line)
}

// mustCompile keeps the pattern tables in the per-source files compact.
var mustCompile = regexp.MustCompile

// syslogPrefix matches the classic "MMM D HH:MM:SS HOST TAG[PID]: MESSAGE"
// prefix shared by auth, syslog, kernel, and firewall lines. The [PID]
// segment is optional.
var syslogPrefix = regexp.MustCompile(
	`^(\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(\S+)\s+(\S+?)(?:\[(\d+)\])?:\s+(.*)$`)

// prefixFields holds the decomposed syslog prefix of a line.
type prefixFields struct {
	time    time.Time
	host    string
	process string
	pid     int
	message string
}

// splitPrefix decomposes the common syslog prefix. It returns false when the
// line does not carry one.
func splitPrefix(line string) (prefixFields, bool) {
	m := syslogPrefix.FindStringSubmatch(line)
	if m == nil {
		return prefixFields{}, false
	}
	f := prefixFields{
		time: parseSyslogTime(m[1], time.Now()),
		host: m[2],
		// Tags like "postfix/smtpd" keep only the leading program name.
		process: strings.SplitN(m[3], "/", 2)[0],
		message: m[5],
	}
	if m[4] != "" {
		f.pid, _ = strconv.Atoi(m[4])
	}
	return f, true
}

// parseSyslogTime attaches the current year to a yearless syslog timestamp.
// A reconstructed timestamp in the future means the line was written last
// year (the rollover around January 1st), so the year is decremented.
func parseSyslogTime(ts string, now time.Time) time.Time {
	t, err := time.ParseInLocation("2006 Jan _2 15:04:05", strconv.Itoa(now.Year())+" "+ts, now.Location())
	if err != nil {
		return now
	}
	if t.After(now) {
		t = t.AddDate(-1, 0, 0)
	}
	return t
}
