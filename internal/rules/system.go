package rules

import (
	"fmt"
	"strings"

	"github.com/seclog/agent/internal/event"
)

// SystemInstabilityRule flags an accumulation of kernel-class problems.
// Severity is critical when any segfault or OOM kill contributed.
type SystemInstabilityRule struct {
	enabled   bool
	maxErrors int
}

func (r *SystemInstabilityRule) Name() string  { return "System Instability Detection" }
func (r *SystemInstabilityRule) Enabled() bool { return r.enabled }

func (r *SystemInstabilityRule) Evaluate(events []event.Event) []event.Alert {
	var issues []event.Event
	critical := 0
	for _, e := range events {
		switch e.EventType {
		case event.TypeKernelSegfault, event.TypeKernelOOM:
			critical++
		case event.TypeKernelError, event.TypeKernelWarning, event.TypeSystemError:
		default:
			continue
		}
		issues = append(issues, e)
	}
	if len(issues) < r.maxErrors {
		return nil
	}

	severity := event.SeverityHigh
	desc := fmt.Sprintf("System instability detected: %d kernel warnings/errors", len(issues))
	if critical > 0 {
		severity = event.SeverityCritical
		desc = fmt.Sprintf(
			"Critical system instability: %d kernel issues including %d critical errors (segfault/OOM)",
			len(issues), critical)
	}
	return []event.Alert{{
		AlertType:       event.AlertSystemInstability,
		Severity:        severity,
		Description:     desc,
		RelatedEventIDs: eventIDs(issues),
	}}
}

// ServiceFailureRule flags repeated unit failures in the window.
type ServiceFailureRule struct {
	enabled     bool
	maxFailures int
}

func (r *ServiceFailureRule) Name() string  { return "Service Failure Detection" }
func (r *ServiceFailureRule) Enabled() bool { return r.enabled }

func (r *ServiceFailureRule) Evaluate(events []event.Event) []event.Alert {
	var failures []event.Event
	for _, e := range events {
		if e.EventType == event.TypeServiceFailure {
			failures = append(failures, e)
		}
	}
	if len(failures) < r.maxFailures {
		return nil
	}
	return []event.Alert{{
		AlertType: event.AlertServiceFailures,
		Severity:  event.SeverityHigh,
		Description: fmt.Sprintf(
			"Multiple service failures: %d services failed", len(failures)),
		RelatedEventIDs: eventIDs(failures),
	}}
}

// PrivilegeEscalationRule flags sudo use by service accounts and user or
// group changes that touch the sudo/wheel groups.
type PrivilegeEscalationRule struct {
	enabled   bool
	watchlist map[string]bool
}

func (r *PrivilegeEscalationRule) Name() string  { return "Privilege Escalation Detection" }
func (r *PrivilegeEscalationRule) Enabled() bool { return r.enabled }

func (r *PrivilegeEscalationRule) Evaluate(events []event.Event) []event.Alert {
	var alerts []event.Alert
	for _, e := range events {
		switch e.EventType {
		case event.TypeSudoSuccess, event.TypeSudoCommand:
			if e.User != "" && r.watchlist[strings.ToLower(e.User)] {
				alerts = append(alerts, event.Alert{
					AlertType: event.AlertPrivilegeEscalation,
					Severity:  event.SeverityCritical,
					Description: fmt.Sprintf(
						"Suspicious sudo usage: service account '%s' executed sudo command", e.User),
					RelatedEventIDs: eventIDs([]event.Event{e}),
				})
			}
		case event.TypeUserCreated, event.TypeGroupMembershipChange:
			raw := strings.ToLower(e.RawMessage)
			if strings.Contains(raw, "sudo") || strings.Contains(raw, "wheel") {
				alerts = append(alerts, event.Alert{
					AlertType: event.AlertPrivilegeEscalation,
					Severity:  event.SeverityCritical,
					Description: fmt.Sprintf(
						"User privilege modification: %s", truncate(e.RawMessage, 100)),
					RelatedEventIDs: eventIDs([]event.Event{e}),
				})
			}
		}
	}
	return alerts
}

// truncate cuts s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// successfulLogin matches a successful login in either spelling, the same
// way the brute force rule accepts both failure spellings.
func successfulLogin(e event.Event) bool {
	return e.EventType == event.TypeAuthSuccess || e.EventType == event.TypeSuccessLogin
}

// AnomalousLoginRule flags successful logins inside the configured quiet
// window [startHour, endHour). It is disabled by default.
type AnomalousLoginRule struct {
	enabled   bool
	startHour int
	endHour   int
}

func (r *AnomalousLoginRule) Name() string  { return "Anomalous Login Time Detection" }
func (r *AnomalousLoginRule) Enabled() bool { return r.enabled }

func (r *AnomalousLoginRule) Evaluate(events []event.Event) []event.Alert {
	var alerts []event.Alert
	for _, e := range events {
		if !successfulLogin(e) || e.EventTime.IsZero() {
			continue
		}
		hour := e.EventTime.Hour()
		if hour >= r.startHour && hour < r.endHour {
			from := e.SrcIP
			if from == "" {
				from = "local"
			}
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertAnomalousLogin,
				Severity:  event.SeverityMedium,
				Description: fmt.Sprintf(
					"Off-hours login: User '%s' logged in at %s from %s",
					e.User, e.EventTime.Format("15:04"), from),
				RelatedEventIDs: eventIDs([]event.Event{e}),
			})
		}
	}
	return alerts
}

// RapidLoginRule flags one account logging in repeatedly from at least two
// distinct source addresses within the window.
type RapidLoginRule struct {
	enabled   bool
	maxLogins int
}

func (r *RapidLoginRule) Name() string  { return "Rapid Login Detection" }
func (r *RapidLoginRule) Enabled() bool { return r.enabled }

func (r *RapidLoginRule) Evaluate(events []event.Event) []event.Alert {
	byUser := make(map[string][]event.Event)
	for _, e := range events {
		if successfulLogin(e) && e.User != "" {
			byUser[e.User] = append(byUser[e.User], e)
		}
	}

	var alerts []event.Alert
	for user, group := range byUser {
		if len(group) < r.maxLogins {
			continue
		}
		ips := make(map[string]bool)
		for _, e := range group {
			if e.SrcIP != "" {
				ips[e.SrcIP] = true
			}
		}
		if len(ips) >= 2 {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertRapidLogin,
				Severity:  event.SeverityHigh,
				Description: fmt.Sprintf(
					"Rapid logins: User '%s' logged in %d times from %d different IPs",
					user, len(group), len(ips)),
				RelatedEventIDs: eventIDs(group),
			})
		}
	}
	return alerts
}
