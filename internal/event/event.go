// Package event defines the normalized security event and alert models shared
// by the parsers, store, rule catalog, and HTTP adapter. Events are immutable
// once stored; only an alert's status may change after insertion.
package event

import (
	"strings"
	"time"
)

// LogSource identifies which family of log files a line came from.
type LogSource string

// Log source values. The tailer tags every line with one of these so the
// pipeline can route it to the matching parser.
const (
	SourceAuth     LogSource = "auth"
	SourceSyslog   LogSource = "syslog"
	SourceKernel   LogSource = "kernel"
	SourceFirewall LogSource = "firewall"
	SourceAudit    LogSource = "audit"
)

// Platform values persisted in the platform column.
const (
	PlatformLinux   = "linux"
	PlatformWindows = "windows"
	PlatformMacOS   = "macos"
)

// Event types produced by the parser family. The store persists these as
// opaque strings, but consumers (rules, dashboard) expect exactly these
// literals.
const (
	TypeAuthFailure           = "AUTH_FAILURE"
	TypeAuthSuccess           = "AUTH_SUCCESS"
	TypeSudoSuccess           = "SUDO_SUCCESS"
	TypeSudoFailure           = "SUDO_FAILURE"
	TypeSessionStart          = "SESSION_START"
	TypeSessionEnd            = "SESSION_END"
	TypeUserCreated           = "USER_CREATED"
	TypePasswordChange        = "PASSWORD_CHANGE"
	TypeGroupMembershipChange = "GROUP_MEMBERSHIP_CHANGE"
	TypeConnectionClosed      = "CONNECTION_CLOSED"
	TypeServiceStart          = "SERVICE_START"
	TypeServiceStop           = "SERVICE_STOP"
	TypeServiceFailure        = "SERVICE_FAILURE"
	TypeSystemError           = "SYSTEM_ERROR"
	TypeSystemWarning         = "SYSTEM_WARNING"
	TypeKernelError           = "KERNEL_ERROR"
	TypeKernelWarning         = "KERNEL_WARNING"
	TypeKernelSegfault        = "KERNEL_SEGFAULT"
	TypeKernelOOM             = "KERNEL_OOM"
	TypeUSBDeviceConnected    = "USB_DEVICE_CONNECTED"
	TypeFirewallBlock         = "FIREWALL_BLOCK"
	TypeFirewallAllow         = "FIREWALL_ALLOW"
	TypeFirewallAudit         = "FIREWALL_AUDIT"
	TypeFirewallEvent         = "FIREWALL_EVENT"
	TypeAuditAuthSuccess      = "AUDIT_AUTH_SUCCESS"
	TypeAuditAuthFailure      = "AUDIT_AUTH_FAILURE"
	TypeAuditLogin            = "AUDIT_LOGIN"
	TypeAuditCommand          = "AUDIT_COMMAND"
	TypeAuditExec             = "AUDIT_EXEC"
	TypeAuditCrash            = "AUDIT_CRASH"
	TypeAuditSELinuxDenial    = "AUDIT_SELINUX_DENIAL"

	// TypeFailedLogin is a legacy synonym of TypeAuthFailure that older
	// ingestors emitted; the rule catalog accepts both on input.
	TypeFailedLogin = "FAILED_LOGIN"
	// TypeSuccessLogin is the matching legacy synonym of TypeAuthSuccess.
	TypeSuccessLogin = "SUCCESS_LOGIN"
	// TypeSudoCommand is a legacy synonym of TypeSudoSuccess; sudo rules
	// match both spellings.
	TypeSudoCommand = "SUDO_COMMAND"
)

// Alert types emitted by the rule catalog.
const (
	AlertBruteForce          = "BRUTE_FORCE"
	AlertPortScan            = "PORT_SCAN"
	AlertFirewallAttack      = "FIREWALL_ATTACK"
	AlertSuspiciousSudo      = "SUSPICIOUS_SUDO"
	AlertSudoAbuse           = "SUDO_ABUSE"
	AlertPrivilegeEscalation = "PRIVILEGE_ESCALATION"
	AlertSystemInstability   = "SYSTEM_INSTABILITY"
	AlertServiceFailures     = "SERVICE_FAILURES"
	AlertAnomalousLogin      = "ANOMALOUS_LOGIN"
	AlertRapidLogin          = "RAPID_LOGIN"
)

// Alert status values. A new alert is always StatusActive.
const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
	StatusDismissed    = "dismissed"
)

// ValidStatus reports whether s is an accepted alert status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// Severity values, lowest to highest: info, warning, error, critical for
// events; medium, high, critical for alerts.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
)

// NormalizeSeverity lowercases s and maps it onto the canonical severity set.
// Unknown or empty values fall back to "info" so the severity column never
// holds free-form text.
func NormalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SeverityWarning, "warn":
		return SeverityWarning
	case SeverityError:
		return SeverityError
	case SeverityCritical:
		return SeverityCritical
	case SeverityMedium:
		return SeverityMedium
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityInfo
	}
}

// Event is a single normalized security observation extracted from one log
// line. RawMessage always retains the original line verbatim.
type Event struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// EventTime is derived from the log line's own timestamp and falls back
	// to ingest time when the line carries none.
	EventTime time.Time `json:"event_time"`

	Host    string `json:"host,omitempty"`
	Process string `json:"process,omitempty"`
	PID     int    `json:"pid,omitempty"`

	EventType string `json:"event_type"`
	Severity  string `json:"severity"`

	User  string `json:"user,omitempty"`
	SrcIP string `json:"src_ip,omitempty"`
	DstIP string `json:"dst_ip,omitempty"`

	LogSource  string `json:"log_source,omitempty"`
	Platform   string `json:"platform"`
	RawMessage string `json:"raw_message"`
}

// Alert is a detection produced by the rule engine. RelatedEventIDs lists the
// stored event IDs that contributed, in the order the rule saw them.
type Alert struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AlertType   string `json:"alert_type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`

	RelatedEventIDs []int64 `json:"related_event_ids,omitempty"`
	Status          string  `json:"status"`
}
