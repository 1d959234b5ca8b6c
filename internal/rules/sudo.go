package rules

import (
	"fmt"
	"strings"

	"github.com/seclog/agent/internal/event"
)

// SuspiciousSudoRule flags sudo activity by accounts that should never use
// it, and repeated sudo authentication failures by any one account.
type SuspiciousSudoRule struct {
	enabled          bool
	watchlist        map[string]bool
	failureThreshold int
}

func (r *SuspiciousSudoRule) Name() string  { return "Suspicious Sudo Usage" }
func (r *SuspiciousSudoRule) Enabled() bool { return r.enabled }

func (r *SuspiciousSudoRule) Evaluate(events []event.Event) []event.Alert {
	var alerts []event.Alert

	failuresByUser := make(map[string][]event.Event)
	for _, e := range events {
		switch e.EventType {
		case event.TypeSudoSuccess, event.TypeSudoCommand, event.TypeSudoFailure:
		default:
			continue
		}
		if e.User == "" {
			continue
		}
		if r.watchlist[strings.ToLower(e.User)] {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertSuspiciousSudo,
				Severity:  event.SeverityCritical,
				Description: fmt.Sprintf(
					"Suspicious sudo usage by user '%s' (unusual account)", e.User),
				RelatedEventIDs: eventIDs([]event.Event{e}),
			})
		}
		if e.EventType == event.TypeSudoFailure {
			failuresByUser[e.User] = append(failuresByUser[e.User], e)
		}
	}

	for user, group := range failuresByUser {
		if len(group) >= r.failureThreshold {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertSudoAbuse,
				Severity:  event.SeverityHigh,
				Description: fmt.Sprintf(
					"Repeated sudo failures: user '%s' failed sudo authentication %d times",
					user, len(group)),
				RelatedEventIDs: eventIDs(group),
			})
		}
	}
	return alerts
}
