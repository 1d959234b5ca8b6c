package parser

import (
	"strings"

	"github.com/seclog/agent/internal/event"
)

// Patterns for /var/log/auth.log and /var/log/secure message bodies. They are
// tried in declaration order; the first match wins.
var (
	reFailedPassword   = mustCompile(`Failed password for (?:invalid user )?(\S+) from ([\d.]+)`)
	reAcceptedPassword = mustCompile(`Accepted password for (\S+) from ([\d.]+)`)
	reAcceptedPubkey   = mustCompile(`Accepted publickey for (\S+) from ([\d.]+)`)
	reInvalidUser      = mustCompile(`Invalid user (\S+) from ([\d.]+)`)
	reSudoCommand      = mustCompile(`(\S+)\s*:\s*TTY=\S+\s*;\s*PWD=\S+\s*;\s*USER=\S+\s*;\s*COMMAND=.+`)
	reSudoFailure      = mustCompile(`(\S+)\s*:\s*\d+ incorrect password attempts`)
	reSudoAuthFailure  = mustCompile(`pam_unix\(sudo:auth\):\s*authentication failure.*user=(\S+)`)
	reSessionOpened    = mustCompile(`pam_unix\(\S+:session\):\s*session opened for user (\S+?)(?:\(|\s|$)`)
	reSessionClosed    = mustCompile(`pam_unix\(\S+:session\):\s*session closed for user (\S+)`)
	reUserCreated      = mustCompile(`new user: name=([^,\s]+)`)
	rePasswordChange   = mustCompile(`password changed for (\S+)`)
	reGroupAdd         = mustCompile(`add '([^']+)' to group '([^']+)'`)
	reConnClosed       = mustCompile(`(?:Disconnected from|Connection closed by)\s+(?:(?:authenticating|invalid) user \S+ )?([\d.]+)`)
)

// ParseAuth parses one auth-log line. Lines without the syslog prefix or
// whose message matches no known pattern produce no event.
func ParseAuth(line string) (event.Event, bool) {
	f, ok := splitPrefix(line)
	if !ok {
		return event.Event{}, false
	}

	e := event.Event{
		EventTime:  f.time,
		Host:       f.host,
		Process:    f.process,
		PID:        f.pid,
		LogSource:  string(event.SourceAuth),
		Platform:   event.PlatformLinux,
		RawMessage: line,
	}
	msg := f.message

	if m := reFailedPassword.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeAuthFailure
		e.Severity = event.SeverityWarning
		e.User, e.SrcIP = m[1], m[2]
		return e, true
	}
	if m := reAcceptedPassword.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeAuthSuccess
		e.Severity = event.SeverityInfo
		e.User, e.SrcIP = m[1], m[2]
		return e, true
	}
	if m := reAcceptedPubkey.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeAuthSuccess
		e.Severity = event.SeverityInfo
		e.User, e.SrcIP = m[1], m[2]
		return e, true
	}
	if m := reInvalidUser.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeAuthFailure
		e.Severity = event.SeverityWarning
		e.User, e.SrcIP = m[1], m[2]
		return e, true
	}
	if m := reSudoCommand.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeSudoSuccess
		e.Severity = event.SeverityInfo
		e.User = m[1]
		return e, true
	}
	if m := reSudoFailure.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeSudoFailure
		e.Severity = event.SeverityWarning
		e.User = m[1]
		return e, true
	}
	if m := reSudoAuthFailure.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeSudoFailure
		e.Severity = event.SeverityWarning
		e.User = m[1]
		return e, true
	}
	if m := reSessionOpened.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeSessionStart
		e.Severity = event.SeverityInfo
		e.User = m[1]
		return e, true
	}
	if m := reSessionClosed.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeSessionEnd
		e.Severity = event.SeverityInfo
		e.User = m[1]
		return e, true
	}
	if m := reUserCreated.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeUserCreated
		e.Severity = event.SeverityWarning
		e.User = m[1]
		return e, true
	}
	if m := rePasswordChange.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypePasswordChange
		e.Severity = event.SeverityInfo
		e.User = m[1]
		return e, true
	}
	if m := reGroupAdd.FindStringSubmatch(msg); m != nil {
		e.EventType = event.TypeGroupMembershipChange
		e.Severity = event.SeverityWarning
		e.User = m[1]
		return e, true
	}
	if strings.HasPrefix(f.process, "sshd") {
		if m := reConnClosed.FindStringSubmatch(msg); m != nil {
			e.EventType = event.TypeConnectionClosed
			e.Severity = event.SeverityInfo
			e.SrcIP = m[1]
			return e, true
		}
	}

	return event.Event{}, false
}
