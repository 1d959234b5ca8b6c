// Package config provides YAML configuration loading and validation for the
// security log monitoring daemon.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seclog/agent/internal/event"
)

// Config is the top-level configuration structure.
type Config struct {
	// Database holds the local SQLite settings.
	Database DatabaseConfig `yaml:"database"`

	// Logging controls structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Monitor controls log file discovery and polling.
	Monitor MonitorConfig `yaml:"monitor"`

	// UseMockData seeds the store with generated demo events instead of
	// tailing real log files. Defaults to false.
	UseMockData bool `yaml:"use_mock_data"`

	// Analysis controls the rule engine scheduler.
	Analysis AnalysisConfig `yaml:"analysis"`

	// API configures the HTTP adapter serving the dashboard.
	API APIConfig `yaml:"api"`

	// Rules holds the per-rule thresholds and enable flags.
	Rules RulesConfig `yaml:"rules"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	// Path is the SQLite file path. Defaults to "./security_events.db".
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	Level string `yaml:"level"`
}

// MonitorConfig controls which files are tailed and how often.
type MonitorConfig struct {
	// PollIntervalMS is the tail poll interval in milliseconds. Defaults
	// to 500.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// ExtraPaths adds log files beyond the standard discovery set.
	ExtraPaths []PathConfig `yaml:"extra_paths"`
}

// PathConfig enrolls one extra log file under an explicit source.
type PathConfig struct {
	// Path is the log file path. Required.
	Path string `yaml:"path"`

	// Source is one of "auth", "syslog", "kernel", "firewall", or "audit".
	// Required; it selects the parser applied to the file's lines.
	Source string `yaml:"source"`
}

// AnalysisConfig controls the rule engine scheduler.
type AnalysisConfig struct {
	// IntervalSeconds is how often the rule engine evaluates recent events.
	// Defaults to 60.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// APIConfig configures the HTTP adapter.
type APIConfig struct {
	// Enabled turns the HTTP adapter on. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Addr is the listen address (e.g. "127.0.0.1:5000"). Defaults to
	// "127.0.0.1:5000" when omitted.
	Addr string `yaml:"addr"`

	// JWTSecret, when non-empty, requires an HS256 bearer token on the
	// /api routes. Empty leaves the API open for local dashboards.
	JWTSecret string `yaml:"jwt_secret"`

	// AllowedOrigins lists CORS origins for the dashboard. Defaults to
	// allowing any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RulesConfig carries one block per detection rule.
type RulesConfig struct {
	BruteForce          BruteForceConfig          `yaml:"brute_force"`
	SudoSuspicious      SudoSuspiciousConfig      `yaml:"sudo_suspicious"`
	FirewallAttack      FirewallAttackConfig      `yaml:"firewall_attack"`
	PortScan            PortScanConfig            `yaml:"port_scan"`
	SystemInstability   SystemInstabilityConfig   `yaml:"system_instability"`
	ServiceFailure      ServiceFailureConfig      `yaml:"service_failure"`
	PrivilegeEscalation PrivilegeEscalationConfig `yaml:"privilege_escalation"`
	AnomalousLogin      AnomalousLoginConfig      `yaml:"anomalous_login"`
	RapidLogin          RapidLoginConfig          `yaml:"rapid_login"`
}

// BruteForceConfig tunes failed-authentication burst detection.
type BruteForceConfig struct {
	Enabled *bool `yaml:"enabled"`

	// Threshold is the number of failures from one user or one source IP
	// that raises an alert. Defaults to 5.
	Threshold int `yaml:"threshold"`
}

// SudoSuspiciousConfig tunes detection of sudo use by unusual accounts.
type SudoSuspiciousConfig struct {
	Enabled *bool `yaml:"enabled"`

	// Watchlist is the set of account names whose sudo activity is always
	// suspicious. Defaults to www-data, nobody, and guest.
	Watchlist []string `yaml:"watchlist"`

	// FailureThreshold is the number of sudo failures from one user that
	// raises a SUDO_ABUSE alert. Defaults to 3.
	FailureThreshold int `yaml:"failure_threshold"`
}

// FirewallAttackConfig tunes blocked-connection flood detection.
type FirewallAttackConfig struct {
	Enabled *bool `yaml:"enabled"`

	// Threshold is the number of blocks from one source IP that raises an
	// alert. Defaults to 20.
	Threshold int `yaml:"threshold"`

	// PortScanPorts is the number of distinct destination ports from one
	// source IP that upgrades the alert to a port scan. Defaults to 10.
	PortScanPorts int `yaml:"port_scan_ports"`
}

// PortScanConfig tunes standalone port-scan detection.
type PortScanConfig struct {
	Enabled *bool `yaml:"enabled"`

	// DistinctPorts is the number of distinct destination ports from one
	// source IP that raises an alert. Defaults to 10.
	DistinctPorts int `yaml:"distinct_ports"`
}

// SystemInstabilityConfig tunes kernel-error accumulation detection.
type SystemInstabilityConfig struct {
	Enabled *bool `yaml:"enabled"`

	// Threshold is the number of kernel errors, OOM kills, or segfaults in
	// the window that raises an alert. Defaults to 10.
	Threshold int `yaml:"threshold"`
}

// ServiceFailureConfig tunes repeated-service-failure detection.
type ServiceFailureConfig struct {
	Enabled *bool `yaml:"enabled"`

	// Threshold is the number of failures of one service that raises an
	// alert. Defaults to 3.
	Threshold int `yaml:"threshold"`
}

// PrivilegeEscalationConfig tunes detection of privilege changes by
// service accounts; it carries only the enable flag and the watchlist.
type PrivilegeEscalationConfig struct {
	Enabled *bool `yaml:"enabled"`

	// Watchlist is the set of account names that should never initiate
	// privilege changes. A sensible server default applies when omitted.
	Watchlist []string `yaml:"watchlist"`
}

// AnomalousLoginConfig tunes off-hours login detection. Disabled by default
// since legitimate night shifts are common.
type AnomalousLoginConfig struct {
	Enabled *bool `yaml:"enabled"`

	// StartHour and EndHour bound the quiet window in local time.
	// Defaults to 0 and 5.
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
}

// RapidLoginConfig tunes detection of one account logging in repeatedly
// from multiple addresses in a short window.
type RapidLoginConfig struct {
	Enabled *bool `yaml:"enabled"`

	// MaxLogins is the number of successful logins by one user that,
	// combined with at least two distinct source addresses, raises an
	// alert. Defaults to 5.
	MaxLogins int `yaml:"max_logins"`
}

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSources is the set of accepted log source strings for extra paths.
var validSources = map[string]bool{
	string(event.SourceAuth):     true,
	string(event.SourceSyslog):   true,
	string(event.SourceKernel):   true,
	string(event.SourceFirewall): true,
	string(event.SourceAudit):    true,
}

// Load reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates enumerated fields. A missing file is not an error:
// the daemon runs fine on defaults alone, so Load returns a fully defaulted
// Config in that case.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// run on defaults
	case err != nil:
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
		}
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// boolDefault resolves an optional enable flag against its default.
func boolDefault(b *bool, def bool) *bool {
	if b == nil {
		return &def
	}
	return b
}

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./security_events.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Monitor.PollIntervalMS <= 0 {
		cfg.Monitor.PollIntervalMS = 500
	}
	if cfg.Analysis.IntervalSeconds <= 0 {
		cfg.Analysis.IntervalSeconds = 60
	}

	cfg.API.Enabled = boolDefault(cfg.API.Enabled, true)
	if cfg.API.Addr == "" {
		cfg.API.Addr = "127.0.0.1:5000"
	}
	if len(cfg.API.AllowedOrigins) == 0 {
		cfg.API.AllowedOrigins = []string{"*"}
	}

	r := &cfg.Rules
	r.BruteForce.Enabled = boolDefault(r.BruteForce.Enabled, true)
	if r.BruteForce.Threshold <= 0 {
		r.BruteForce.Threshold = 5
	}
	r.SudoSuspicious.Enabled = boolDefault(r.SudoSuspicious.Enabled, true)
	if len(r.SudoSuspicious.Watchlist) == 0 {
		r.SudoSuspicious.Watchlist = []string{"www-data", "nobody", "guest"}
	}
	if r.SudoSuspicious.FailureThreshold <= 0 {
		r.SudoSuspicious.FailureThreshold = 3
	}
	r.FirewallAttack.Enabled = boolDefault(r.FirewallAttack.Enabled, true)
	if r.FirewallAttack.Threshold <= 0 {
		r.FirewallAttack.Threshold = 20
	}
	if r.FirewallAttack.PortScanPorts <= 0 {
		r.FirewallAttack.PortScanPorts = 10
	}
	r.PortScan.Enabled = boolDefault(r.PortScan.Enabled, true)
	if r.PortScan.DistinctPorts <= 0 {
		r.PortScan.DistinctPorts = 10
	}
	r.SystemInstability.Enabled = boolDefault(r.SystemInstability.Enabled, true)
	if r.SystemInstability.Threshold <= 0 {
		r.SystemInstability.Threshold = 10
	}
	r.ServiceFailure.Enabled = boolDefault(r.ServiceFailure.Enabled, true)
	if r.ServiceFailure.Threshold <= 0 {
		r.ServiceFailure.Threshold = 3
	}
	r.PrivilegeEscalation.Enabled = boolDefault(r.PrivilegeEscalation.Enabled, true)
	if len(r.PrivilegeEscalation.Watchlist) == 0 {
		r.PrivilegeEscalation.Watchlist = []string{
			"www-data", "nobody", "guest", "daemon",
			"apache", "nginx", "mysql", "postgres",
		}
	}
	r.AnomalousLogin.Enabled = boolDefault(r.AnomalousLogin.Enabled, false)
	if r.AnomalousLogin.EndHour <= 0 {
		r.AnomalousLogin.EndHour = 5
	}
	r.RapidLogin.Enabled = boolDefault(r.RapidLogin.Enabled, true)
	if r.RapidLogin.MaxLogins <= 0 {
		r.RapidLogin.MaxLogins = 5
	}
}

// validate checks that enumerated fields contain only valid values.
func validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level %q must be one of: debug, info, warn, error", cfg.Logging.Level))
	}

	for i, p := range cfg.Monitor.ExtraPaths {
		prefix := fmt.Sprintf("monitor.extra_paths[%d]", i)
		if p.Path == "" {
			errs = append(errs, fmt.Errorf("%s: path is required", prefix))
		}
		if !validSources[p.Source] {
			errs = append(errs, fmt.Errorf("%s: source %q must be one of: auth, syslog, kernel, firewall, audit", prefix, p.Source))
		}
	}

	al := cfg.Rules.AnomalousLogin
	if al.StartHour < 0 || al.StartHour > 23 {
		errs = append(errs, fmt.Errorf("rules.anomalous_login.start_hour %d must be in [0,23]", al.StartHour))
	}
	if al.EndHour < 1 || al.EndHour > 24 {
		errs = append(errs, fmt.Errorf("rules.anomalous_login.end_hour %d must be in [1,24]", al.EndHour))
	}

	return errors.Join(errs...)
}
