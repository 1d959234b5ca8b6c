// Package rules holds the detection rule catalog and the periodic engine
// that evaluates it over recently stored events.
//
// Each rule is a pure function over a slice of recent events: no rule reads
// the store or keeps state between evaluations, so rules are trivially
// testable and safe to run in any combination. Catalog order is significant
// because some rules share predicates (suspicious sudo and privilege
// escalation both inspect sudo events) and the engine deduplicates by
// alert description.
package rules

import (
	"strings"

	"github.com/seclog/agent/internal/config"
	"github.com/seclog/agent/internal/event"
)

// Rule is one detector in the catalog.
type Rule interface {
	// Name returns the rule's human-readable name, used in engine logs
	// and the rules listing endpoint.
	Name() string

	// Enabled reports whether the engine should run this rule.
	Enabled() bool

	// Evaluate inspects recent events and returns candidate alerts. It
	// must not retain the slice.
	Evaluate(events []event.Event) []event.Alert
}

// Catalog builds the full rule set from cfg, in declaration order. The
// order is fixed: rules that share predicates stay adjacent so their
// alerts group naturally in the feed.
func Catalog(cfg config.RulesConfig) []Rule {
	return []Rule{
		&BruteForceRule{
			enabled:     *cfg.BruteForce.Enabled,
			maxAttempts: cfg.BruteForce.Threshold,
		},
		&SuspiciousSudoRule{
			enabled:          *cfg.SudoSuspicious.Enabled,
			watchlist:        toSet(cfg.SudoSuspicious.Watchlist),
			failureThreshold: cfg.SudoSuspicious.FailureThreshold,
		},
		&FirewallAttackRule{
			enabled:       *cfg.FirewallAttack.Enabled,
			maxBlocks:     cfg.FirewallAttack.Threshold,
			portScanPorts: cfg.FirewallAttack.PortScanPorts,
		},
		&PortScanRule{
			enabled:  *cfg.PortScan.Enabled,
			minPorts: cfg.PortScan.DistinctPorts,
		},
		&SystemInstabilityRule{
			enabled:   *cfg.SystemInstability.Enabled,
			maxErrors: cfg.SystemInstability.Threshold,
		},
		&ServiceFailureRule{
			enabled:     *cfg.ServiceFailure.Enabled,
			maxFailures: cfg.ServiceFailure.Threshold,
		},
		&PrivilegeEscalationRule{
			enabled:   *cfg.PrivilegeEscalation.Enabled,
			watchlist: toSet(cfg.PrivilegeEscalation.Watchlist),
		},
		&AnomalousLoginRule{
			enabled:   *cfg.AnomalousLogin.Enabled,
			startHour: cfg.AnomalousLogin.StartHour,
			endHour:   cfg.AnomalousLogin.EndHour,
		},
		&RapidLoginRule{
			enabled:   *cfg.RapidLogin.Enabled,
			maxLogins: cfg.RapidLogin.MaxLogins,
		},
	}
}

// toSet lowercases names into a membership set.
func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

// eventIDs collects the nonzero ids of the contributing events.
func eventIDs(events []event.Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		if e.ID != 0 {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
