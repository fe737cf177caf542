// Package config loads, merges, and validates the TOML runtime
// configuration: service settings, log sinks, sample ingestion, notify
// channels, and alert rules.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds service runtime settings and alert rules.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service     ServiceConfig     `toml:"service"`
	Log         LogConfig         `toml:"log"`
	Ingest      IngestConfig      `toml:"ingest"`
	Notify      NotifyConfig      `toml:"notify"`
	Correlation CorrelationConfig `toml:"correlation"`
	Rule        []RuleConfig      `toml:"rule"`
}

// rawConfig mirrors the TOML model before runtime normalization.
// Params: decoded sections from one TOML source.
// Returns: raw rule map keyed by rule name.
type rawConfig struct {
	Service     ServiceConfig            `toml:"service"`
	Log         LogConfig                `toml:"log"`
	Ingest      IngestConfig             `toml:"ingest"`
	Notify      NotifyConfig             `toml:"notify"`
	Correlation CorrelationConfig        `toml:"correlation"`
	Rule        map[string]rawRuleConfig `toml:"rule"`
}

// rawRuleConfig stores one rule body from a `[rule.<name>]` table.
// Params: rule fields except the key-derived name.
// Returns: intermediate rule body used for normalization.
type rawRuleConfig struct {
	Description string          `toml:"description"`
	Metric      string          `toml:"metric"`
	Severity    string          `toml:"severity"`
	Languages   []string        `toml:"languages"`
	CooldownSec int             `toml:"cooldown_sec"`
	Active      *bool           `toml:"active"`
	Condition   RuleCondition   `toml:"condition"`
	Threshold   RuleThreshold   `toml:"threshold"`
	Channel     []RuleChannel   `toml:"channel"`
	Escalation  *RuleEscalation `toml:"escalation"`
}

// ServiceConfig contains process-level settings.
// Params: name, sweep/snapshot/reload intervals, and retention caps.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                  string `toml:"name"`
	EscalationIntervalSec int    `toml:"escalation_interval_sec"`
	SnapshotPath          string `toml:"snapshot_path"`
	SnapshotIntervalSec   int    `toml:"snapshot_interval_sec"`
	ReloadEnabled         bool   `toml:"reload_enabled"`
	ReloadIntervalSec     int    `toml:"reload_interval_sec"`
	HistoryMax            int    `toml:"history_max"`
	HistoryAgeHours       int    `toml:"history_age_hours"`
	WindowCapacity        int    `toml:"window_capacity"`
}

// LogConfig selects log level and sink set.
// Params: level plus console/file sink settings.
// Returns: logging runtime options.
type LogConfig struct {
	Level   string        `toml:"level"`
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig configures one log output sink.
// Params: enable flag, format, and file path for file sinks.
// Returns: sink behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// IngestConfig defines inbound sample interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP sample ingestion endpoint.
// Params: enable flag, listen address, route paths, and body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	IngestPath   string `toml:"ingest_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer sample ingestion.
// Params: connection, routing, and worker/ack policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// CorrelationConfig tunes incident correlation heuristics.
// Params: grouping window and the minimum alert count for an incident.
// Returns: correlation detector options.
type CorrelationConfig struct {
	WindowMin   int `toml:"window_min"`
	MinAlerts   int `toml:"min_alerts"`
	TimelineMax int `toml:"timeline_max"`
}

// NotifyConfig holds shared dispatch settings and per-channel transports.
// Params: timeout, message template override, and channel sections.
// Returns: notify runtime options.
type NotifyConfig struct {
	TimeoutSec      int             `toml:"timeout_sec"`
	MessageTemplate string          `toml:"message_template"`
	Email           EmailNotifier   `toml:"email"`
	Chat            ChatNotifier    `toml:"chat"`
	SMS             SMSNotifier     `toml:"sms"`
	Webhook         WebhookNotifier `toml:"webhook"`
	Push            PushNotifier    `toml:"push"`
}

// NotifyRetry controls per-channel delivery retries.
// Params: attempt cap and initial backoff.
// Returns: retry policy for one channel.
type NotifyRetry struct {
	MaxAttempts int `toml:"max_attempts"`
	InitialMS   int `toml:"initial_ms"`
}

// EmailNotifier configures the SMTP channel.
type EmailNotifier struct {
	Enabled  bool        `toml:"enabled"`
	Host     string      `toml:"host"`
	Port     int         `toml:"port"`
	Username string      `toml:"username"`
	Password string      `toml:"password"`
	From     string      `toml:"from"`
	To       []string    `toml:"to"`
	Retry    NotifyRetry `toml:"retry"`
}

// ChatNotifier configures the workspace chat channel.
type ChatNotifier struct {
	Enabled bool        `toml:"enabled"`
	Token   string      `toml:"token"`
	Channel string      `toml:"channel"`
	APIBase string      `toml:"api_base"`
	Retry   NotifyRetry `toml:"retry"`
}

// SMSNotifier configures the HTTP SMS gateway channel.
type SMSNotifier struct {
	Enabled    bool        `toml:"enabled"`
	URL        string      `toml:"url"`
	APIKey     string      `toml:"api_key"`
	From       string      `toml:"from"`
	To         []string    `toml:"to"`
	TimeoutSec int         `toml:"timeout_sec"`
	Retry      NotifyRetry `toml:"retry"`
}

// WebhookNotifier configures the generic JSON webhook channel.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	Headers    map[string]string `toml:"headers"`
	TimeoutSec int               `toml:"timeout_sec"`
	Retry      NotifyRetry       `toml:"retry"`
}

// PushNotifier configures the Telegram push channel.
type PushNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	APIBase  string      `toml:"api_base"`
	Retry    NotifyRetry `toml:"retry"`
}

// RuleConfig is one alert rule as written in TOML.
// Params: rule fields with the name from the `[rule.<name>]` key.
// Returns: declarative rule definition before domain conversion.
type RuleConfig struct {
	Name        string
	Description string
	Metric      string
	Severity    string
	Languages   []string
	CooldownSec int
	Active      *bool
	Condition   RuleCondition
	Threshold   RuleThreshold
	Channel     []RuleChannel
	Escalation  *RuleEscalation
}

// RuleCondition is the TOML shape of a rule condition.
type RuleCondition struct {
	Operator      string `toml:"operator"`
	WindowSec     int    `toml:"window_sec"`
	MinDataPoints int    `toml:"min_data_points"`
	Aggregation   string `toml:"aggregation"`
}

// RuleThreshold is the TOML shape of a rule threshold: either a fixed
// value or a warning/critical pair with an adaptive flag.
type RuleThreshold struct {
	Value    *float64 `toml:"value"`
	Warning  float64  `toml:"warning"`
	Critical float64  `toml:"critical"`
	Adaptive bool     `toml:"adaptive"`
}

// RuleChannel binds the rule to one notification channel.
type RuleChannel struct {
	Type     string `toml:"type"`
	Enabled  *bool  `toml:"enabled"`
	Priority int    `toml:"priority"`
}

// RuleEscalation is the TOML shape of an escalation policy.
type RuleEscalation struct {
	AutoResolve bool                  `toml:"auto_resolve"`
	MaxLevel    int                   `toml:"max_level"`
	Level       []RuleEscalationLevel `toml:"level"`
}

// RuleEscalationLevel is one timed escalation step.
type RuleEscalationLevel struct {
	DelaySec  int      `toml:"delay_sec"`
	Channels  []string `toml:"channels"`
	Condition string   `toml:"condition"`
}

// RuleError reports one rejected rule without failing the whole load.
// Params: rule name and underlying validation error.
// Returns: per-rule rejection detail.
type RuleError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e RuleError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Name, e.Err)
}

// Unwrap exposes the underlying validation error.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ConfigSource selects exactly one configuration origin.
// Params: file path or directory of merged fragments.
// Returns: source descriptor for LoadSnapshot.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds a normalized source from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Service-level problems fail the load; rule-level problems surface
// later from DomainRules so one broken rule cannot take the service down.
// Params: source selecting file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var raw rawConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return normalizeRawConfig(raw), nil
}

// loadDir reads and merges TOML fragments from one directory in
// lexical filename order. Rules accumulate across fragments; scalar
// sections overlay when a later fragment sets them.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment)
	}
	return merged, nil
}

// normalizeRawConfig converts the raw TOML model to runtime config with
// rule names taken from their table keys, sorted for determinism.
// Params: decoded raw config.
// Returns: normalized config snapshot.
func normalizeRawConfig(raw rawConfig) Config {
	cfg := Config{
		Service:     raw.Service,
		Log:         raw.Log,
		Ingest:      raw.Ingest,
		Notify:      raw.Notify,
		Correlation: raw.Correlation,
	}
	if len(raw.Rule) == 0 {
		return cfg
	}

	names := make([]string, 0, len(raw.Rule))
	for name := range raw.Rule {
		names = append(names, name)
	}
	sort.Strings(names)
	cfg.Rule = make([]RuleConfig, 0, len(names))
	for _, name := range names {
		body := raw.Rule[name]
		cfg.Rule = append(cfg.Rule, RuleConfig{
			Name:        name,
			Description: body.Description,
			Metric:      body.Metric,
			Severity:    body.Severity,
			Languages:   body.Languages,
			CooldownSec: body.CooldownSec,
			Active:      body.Active,
			Condition:   body.Condition,
			Threshold:   body.Threshold,
			Channel:     body.Channel,
			Escalation:  body.Escalation,
		})
	}
	return cfg
}

// mergeConfig overlays one fragment onto the accumulated config.
// Params: destination and fragment.
func mergeConfig(dst *Config, src Config) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log.Level != "" || src.Log.Console.Enabled || src.Log.File.Enabled {
		dst.Log = src.Log
	}
	if src.Ingest.HTTP.Enabled || src.Ingest.NATS.Enabled {
		dst.Ingest = src.Ingest
	}
	if hasNotifyConfig(src.Notify) {
		dst.Notify = src.Notify
	}
	if src.Correlation != (CorrelationConfig{}) {
		dst.Correlation = src.Correlation
	}
	dst.Rule = append(dst.Rule, src.Rule...)
}

// hasNotifyConfig reports whether a fragment carries any notify settings.
func hasNotifyConfig(cfg NotifyConfig) bool {
	return cfg.TimeoutSec != 0 ||
		cfg.MessageTemplate != "" ||
		cfg.Email.Enabled ||
		cfg.Chat.Enabled ||
		cfg.SMS.Enabled ||
		cfg.Webhook.Enabled ||
		cfg.Push.Enabled
}
