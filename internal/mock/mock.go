// Package mock seeds the store with generated demo events and alerts so
// dashboards have something to show without root access to system logs.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/seclog/agent/internal/event"
	"github.com/seclog/agent/internal/store"
)

// seedThreshold: a store already holding this many events is left alone.
const seedThreshold = 50

var (
	usernames = []string{
		"root", "admin", "user", "ubuntu", "centos", "deploy",
		"www-data", "nginx", "apache", "mysql", "postgres", "guest", "test",
	}
	processes = []string{
		"sshd", "sudo", "login", "pam_unix", "systemd",
		"kernel", "ufw", "cron", "apache2", "nginx",
	}
	services = []string{
		"nginx.service", "apache2.service", "sshd.service",
		"mysql.service", "postgresql.service",
	}
)

// eventTemplate pairs an event type with its default severity and source.
type eventTemplate struct {
	eventType string
	severity  string
	logSource event.LogSource
}

var eventTemplates = []eventTemplate{
	{event.TypeAuthFailure, event.SeverityWarning, event.SourceAuth},
	{event.TypeAuthSuccess, event.SeverityInfo, event.SourceAuth},
	{event.TypeSudoSuccess, event.SeverityInfo, event.SourceAuth},
	{event.TypeSudoFailure, event.SeverityWarning, event.SourceAuth},
	{event.TypeSessionStart, event.SeverityInfo, event.SourceAuth},
	{event.TypeSessionEnd, event.SeverityInfo, event.SourceAuth},
	{event.TypeFirewallBlock, event.SeverityWarning, event.SourceFirewall},
	{event.TypeFirewallAllow, event.SeverityInfo, event.SourceFirewall},
	{event.TypeServiceStart, event.SeverityInfo, event.SourceSyslog},
	{event.TypeServiceStop, event.SeverityInfo, event.SourceSyslog},
	{event.TypeServiceFailure, event.SeverityError, event.SourceSyslog},
	{event.TypeKernelWarning, event.SeverityWarning, event.SourceKernel},
	{event.TypeKernelError, event.SeverityError, event.SourceKernel},
	{event.TypeConnectionClosed, event.SeverityInfo, event.SourceAuth},
}

// Generator produces pseudo-random demo data. The zero value is not usable;
// construct with NewGenerator.
type Generator struct {
	rng  *rand.Rand
	host string
}

// NewGenerator creates a generator seeded from seed; pass the current time
// for varied output or a constant for reproducible tests.
func NewGenerator(seed int64) *Generator {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), host: host}
}

// Seed populates st with demo data unless it already holds seedThreshold or
// more events. It returns the number of events and alerts inserted.
func Seed(ctx context.Context, st *store.Store, logger *slog.Logger) (int, int, error) {
	_, total, err := st.QueryEvents(ctx, store.EventQuery{Limit: 1})
	if err != nil {
		return 0, 0, fmt.Errorf("mock: count events: %w", err)
	}
	if total >= seedThreshold {
		logger.Info("mock data already present", slog.Int("events", total))
		return 0, 0, nil
	}

	g := NewGenerator(time.Now().UnixNano())

	inserted := 0
	for _, e := range g.Events(100) {
		if _, err := st.InsertEvent(ctx, e); err != nil {
			return inserted, 0, fmt.Errorf("mock: insert event: %w", err)
		}
		inserted++
	}
	alerts := 0
	for _, a := range g.Alerts(15) {
		if _, err := st.InsertAlert(ctx, a); err != nil {
			return inserted, alerts, fmt.Errorf("mock: insert alert: %w", err)
		}
		alerts++
	}

	logger.Info("seeded mock data",
		slog.Int("events", inserted),
		slog.Int("alerts", alerts),
	)
	return inserted, alerts, nil
}

// Events generates count demo events spread over the recent past, newest
// roughly first.
func (g *Generator) Events(count int) []event.Event {
	events := make([]event.Event, 0, count)
	offset := time.Duration(0)
	for i := 0; i < count; i++ {
		e := g.Event()
		offset += time.Duration(10+g.rng.Intn(51)) * time.Second
		e.EventTime = time.Now().Add(-offset)
		events = append(events, e)
	}
	return events
}

// Event generates one demo event.
func (g *Generator) Event() event.Event {
	tpl := eventTemplates[g.rng.Intn(len(eventTemplates))]
	user := usernames[g.rng.Intn(len(usernames))]
	process := processes[g.rng.Intn(len(processes))]

	var srcIP, dstIP string
	switch tpl.eventType {
	case event.TypeServiceStart, event.TypeServiceStop, event.TypeServiceFailure,
		event.TypeKernelWarning, event.TypeKernelError:
	default:
		srcIP = g.ip()
	}
	if tpl.logSource == event.SourceFirewall {
		dstIP = g.ip()
	}

	return event.Event{
		EventTime:  time.Now(),
		Host:       g.host,
		Process:    process,
		PID:        1000 + g.rng.Intn(64000),
		EventType:  tpl.eventType,
		User:       user,
		SrcIP:      srcIP,
		DstIP:      dstIP,
		Severity:   tpl.severity,
		LogSource:  string(tpl.logSource),
		Platform:   event.PlatformLinux,
		RawMessage: g.rawMessage(tpl.eventType, user, srcIP, process),
	}
}

// Alerts generates count demo alerts with creation times in the last hour.
func (g *Generator) Alerts(count int) []event.Alert {
	alerts := make([]event.Alert, 0, count)
	for i := 0; i < count; i++ {
		alerts = append(alerts, g.Alert())
	}
	return alerts
}

// Alert generates one demo alert.
func (g *Generator) Alert() event.Alert {
	type tpl struct {
		alertType, severity, desc string
	}
	templates := []tpl{
		{event.AlertBruteForce, event.SeverityCritical,
			fmt.Sprintf("Brute force attack detected: Multiple failed login attempts from IP %s targeting user '%s'", g.ip(), g.user())},
		{event.AlertFirewallAttack, event.SeverityHigh,
			fmt.Sprintf("Firewall attack detected: Rapid connection attempts blocked from IP %s", g.ip())},
		{event.AlertPortScan, event.SeverityCritical,
			fmt.Sprintf("Port scan detected: Multiple ports probed from single IP %s (%d ports scanned)", g.ip(), 10+g.rng.Intn(91))},
		{event.AlertSuspiciousSudo, event.SeverityCritical,
			fmt.Sprintf("Suspicious sudo usage detected from service account '%s'", []string{"www-data", "nobody", "guest"}[g.rng.Intn(3)])},
		{event.AlertPrivilegeEscalation, event.SeverityCritical,
			fmt.Sprintf("Potential privilege escalation attempt detected involving user '%s'", g.user())},
		{event.AlertSystemInstability, event.SeverityHigh,
			fmt.Sprintf("System instability: Multiple kernel errors detected (%d errors)", 5+g.rng.Intn(16))},
		{event.AlertServiceFailures, event.SeverityHigh,
			fmt.Sprintf("Multiple service failures detected (%d services affected)", 3+g.rng.Intn(8))},
		{event.AlertRapidLogin, event.SeverityHigh,
			fmt.Sprintf("Rapid logins from multiple IPs detected for user '%s'", g.user())},
	}
	t := templates[g.rng.Intn(len(templates))]

	related := make([]int64, 1+g.rng.Intn(10))
	for i := range related {
		related[i] = int64(1 + g.rng.Intn(1000))
	}
	statuses := []string{
		event.StatusActive, event.StatusActive, event.StatusActive,
		event.StatusAcknowledged, event.StatusResolved,
	}

	return event.Alert{
		AlertType:       t.alertType,
		Severity:        t.severity,
		Description:     t.desc,
		RelatedEventIDs: related,
		Status:          statuses[g.rng.Intn(len(statuses))],
	}
}

func (g *Generator) user() string {
	return usernames[g.rng.Intn(len(usernames))]
}

// ip generates a plausible mix of private and public addresses.
func (g *Generator) ip() string {
	switch g.rng.Intn(3) {
	case 0:
		return fmt.Sprintf("192.168.%d.%d", 1+g.rng.Intn(254), 1+g.rng.Intn(254))
	case 1:
		return fmt.Sprintf("10.0.%d.%d", g.rng.Intn(256), 1+g.rng.Intn(254))
	default:
		return fmt.Sprintf("%d.%d.%d.%d",
			1+g.rng.Intn(223), g.rng.Intn(256), g.rng.Intn(256), 1+g.rng.Intn(254))
	}
}

// rawMessage builds a realistic syslog-style line for the event type so the
// parsers and rules see plausible text during demos.
func (g *Generator) rawMessage(eventType, user, srcIP, process string) string {
	ts := time.Now().Format("Jan  2 15:04:05")
	pid := 1000 + g.rng.Intn(64000)
	port := 30000 + g.rng.Intn(35000)
	if srcIP == "" {
		srcIP = "127.0.0.1"
	}

	switch eventType {
	case event.TypeAuthFailure:
		return fmt.Sprintf("%s %s %s[%d]: Failed password for %s from %s port %d ssh2",
			ts, g.host, process, pid, user, srcIP, port)
	case event.TypeAuthSuccess:
		return fmt.Sprintf("%s %s %s[%d]: Accepted password for %s from %s port %d ssh2",
			ts, g.host, process, pid, user, srcIP, port)
	case event.TypeSudoSuccess:
		cmd := []string{"ls", "cat", "systemctl", "apt", "yum"}[g.rng.Intn(5)]
		return fmt.Sprintf("%s %s sudo: %s : TTY=pts/%d ; PWD=/home/%s ; USER=root ; COMMAND=/bin/%s",
			ts, g.host, user, g.rng.Intn(10), user, cmd)
	case event.TypeSudoFailure:
		return fmt.Sprintf("%s %s sudo: pam_unix(sudo:auth): authentication failure; logname=%s uid=%d euid=0 tty=/dev/pts/%d ruser=%s rhost=",
			ts, g.host, user, pid, g.rng.Intn(10), user)
	case event.TypeSessionStart:
		return fmt.Sprintf("%s %s %s[%d]: pam_unix(sshd:session): session opened for user %s",
			ts, g.host, process, pid, user)
	case event.TypeSessionEnd:
		return fmt.Sprintf("%s %s %s[%d]: pam_unix(sshd:session): session closed for user %s",
			ts, g.host, process, pid, user)
	case event.TypeFirewallBlock:
		return fmt.Sprintf("%s %s kernel: [%d.%d] [UFW BLOCK] IN=eth0 OUT= MAC=00:00:00:00:00:00 SRC=%s DST=%s LEN=60 PROTO=TCP SPT=%d DPT=%d SYN URGP=0",
			ts, g.host, 1000+g.rng.Intn(99000), 100+g.rng.Intn(900), srcIP, g.ip(), port, 1+g.rng.Intn(1024))
	case event.TypeFirewallAllow:
		return fmt.Sprintf("%s %s kernel: [%d.%d] [UFW ALLOW] IN=eth0 OUT= MAC=00:00:00:00:00:00 SRC=%s DST=%s LEN=60 PROTO=TCP SPT=%d DPT=443",
			ts, g.host, 1000+g.rng.Intn(99000), 100+g.rng.Intn(900), srcIP, g.ip(), port)
	case event.TypeServiceStart:
		return fmt.Sprintf("%s %s systemd[1]: Started %s.", ts, g.host, services[g.rng.Intn(len(services))])
	case event.TypeServiceStop:
		return fmt.Sprintf("%s %s systemd[1]: Stopped %s.", ts, g.host, services[g.rng.Intn(len(services))])
	case event.TypeServiceFailure:
		return fmt.Sprintf("%s %s systemd[1]: Failed to start %s.", ts, g.host,
			[]string{"nginx.service", "apache2.service", "backup.service"}[g.rng.Intn(3)])
	case event.TypeKernelWarning:
		return fmt.Sprintf("%s %s kernel: [%d.%d] WARNING: CPU: %d PID: %d at %s",
			ts, g.host, 1000+g.rng.Intn(99000), 100+g.rng.Intn(900), g.rng.Intn(8), pid,
			[]string{"drivers/net", "fs/ext4", "mm/memory"}[g.rng.Intn(3)])
	case event.TypeKernelError:
		return fmt.Sprintf("%s %s kernel: [%d.%d] ERROR: %s",
			ts, g.host, 1000+g.rng.Intn(99000), 100+g.rng.Intn(900),
			[]string{"Out of memory", "I/O error", "soft lockup detected"}[g.rng.Intn(3)])
	case event.TypeConnectionClosed:
		return fmt.Sprintf("%s %s sshd[%d]: Connection closed by %s port %d",
			ts, g.host, pid, srcIP, port)
	default:
		return fmt.Sprintf("%s %s %s: %s event for %s", ts, g.host, process, eventType, user)
	}
}
