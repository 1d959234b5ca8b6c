package rules

import (
	"fmt"
	"regexp"

	"github.com/seclog/agent/internal/event"
)

// reDstPort pulls the destination port out of a netfilter log line.
var reDstPort = regexp.MustCompile(`DPT=(\d+)`)

// dstPort returns the DPT= value of a raw firewall message, or "" when
// the line carries none.
func dstPort(raw string) string {
	if m := reDstPort.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// FirewallAttackRule flags source addresses with many blocked connections.
// When the blocks spread across more than portScanPorts distinct ports the
// alert is upgraded to a port scan.
type FirewallAttackRule struct {
	enabled       bool
	maxBlocks     int
	portScanPorts int
}

func (r *FirewallAttackRule) Name() string  { return "Firewall Attack Detection" }
func (r *FirewallAttackRule) Enabled() bool { return r.enabled }

func (r *FirewallAttackRule) Evaluate(events []event.Event) []event.Alert {
	byIP := make(map[string][]event.Event)
	for _, e := range events {
		if e.EventType == event.TypeFirewallBlock && e.SrcIP != "" {
			byIP[e.SrcIP] = append(byIP[e.SrcIP], e)
		}
	}

	var alerts []event.Alert
	for ip, group := range byIP {
		if len(group) < r.maxBlocks {
			continue
		}
		ports := make(map[string]bool)
		for _, e := range group {
			if p := dstPort(e.RawMessage); p != "" {
				ports[p] = true
			}
		}
		if len(ports) > r.portScanPorts {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertPortScan,
				Severity:  event.SeverityCritical,
				Description: fmt.Sprintf(
					"Port scan detected: %d blocked connections from %s to %d different ports",
					len(group), ip, len(ports)),
				RelatedEventIDs: eventIDs(group),
			})
		} else {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertFirewallAttack,
				Severity:  event.SeverityHigh,
				Description: fmt.Sprintf(
					"Firewall attack detected: %d blocked connections from %s",
					len(group), ip),
				RelatedEventIDs: eventIDs(group),
			})
		}
	}
	return alerts
}

// PortScanRule flags source addresses probing many distinct ports, counting
// both blocked and generic firewall events. It needs no block threshold, so
// a slow scan below FirewallAttackRule's radar still surfaces.
type PortScanRule struct {
	enabled  bool
	minPorts int
}

func (r *PortScanRule) Name() string  { return "Port Scan Detection" }
func (r *PortScanRule) Enabled() bool { return r.enabled }

func (r *PortScanRule) Evaluate(events []event.Event) []event.Alert {
	type probe struct {
		ports  map[string]bool
		events []event.Event
	}
	byIP := make(map[string]*probe)

	for _, e := range events {
		switch e.EventType {
		case event.TypeFirewallBlock, event.TypeFirewallEvent:
		default:
			continue
		}
		if e.SrcIP == "" {
			continue
		}
		p := dstPort(e.RawMessage)
		if p == "" {
			continue
		}
		pr, ok := byIP[e.SrcIP]
		if !ok {
			pr = &probe{ports: make(map[string]bool)}
			byIP[e.SrcIP] = pr
		}
		pr.ports[p] = true
		pr.events = append(pr.events, e)
	}

	var alerts []event.Alert
	for ip, pr := range byIP {
		if len(pr.ports) >= r.minPorts {
			alerts = append(alerts, event.Alert{
				AlertType: event.AlertPortScan,
				Severity:  event.SeverityCritical,
				Description: fmt.Sprintf(
					"Port scan detected: %s probed %d different ports",
					ip, len(pr.ports)),
				RelatedEventIDs: eventIDs(pr.events),
			})
		}
	}
	return alerts
}
