package rules

import (
	"fmt"

	"github.com/seclog/agent/internal/event"
)

// BruteForceRule flags bursts of failed authentication grouped by target
// user and by source address. Both groupings run independently, so a
// distributed attack on one account and a single host spraying many
// accounts are each caught.
type BruteForceRule struct {
	enabled     bool
	maxAttempts int
}

func (r *BruteForceRule) Name() string  { return "Brute Force Detection" }
func (r *BruteForceRule) Enabled() bool { return r.enabled }

func (r *BruteForceRule) Evaluate(events []event.Event) []event.Alert {
	var failed []event.Event
	for _, e := range events {
		if e.EventType == event.TypeAuthFailure || e.EventType == event.TypeFailedLogin {
			failed = append(failed, e)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	byUser := make(map[string][]event.Event)
	byIP := make(map[string][]event.Event)
	for _, e := range failed {
		if e.User != "" {
			byUser[e.User] = append(byUser[e.User], e)
		}
		if e.SrcIP != "" {
			byIP[e.SrcIP] = append(byIP[e.SrcIP], e)
		}
	}

	var alerts []event.Alert
	for user, group := range byUser {
		if len(group) >= r.maxAttempts {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertBruteForce,
				Severity:  event.SeverityCritical,
				Description: fmt.Sprintf(
					"Brute force suspected: %d failed login attempts for user '%s'",
					len(group), user),
				RelatedEventIDs: eventIDs(group),
			})
		}
	}
	for ip, group := range byIP {
		if len(group) >= r.maxAttempts {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertBruteForce,
				Severity:  event.SeverityCritical,
				Description: fmt.Sprintf(
					"Brute force suspected: %d failed login attempts from IP '%s'",
					len(group), ip),
				RelatedEventIDs: eventIDs(group),
			})
		}
	}
	return alerts
}
