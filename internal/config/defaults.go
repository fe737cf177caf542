package config

import "fmt"

const (
	defaultEscalationIntervalSec = 300
	defaultReloadIntervalSec     = 30
	defaultSnapshotIntervalSec   = 60
	defaultNotifyTimeoutSec      = 10
	defaultHistoryMax            = 1000
	defaultHistoryAgeHours       = 168
	defaultWindowCapacity        = 200
	defaultCorrelationWindowMin  = 30
	defaultCorrelationMinAlerts  = 3
	defaultCorrelationTimeline   = 50
)

// applyDefaults fills zero-valued settings after load and installs the
// built-in rule set when no rules are configured.
// Params: merged config snapshot.
func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "polyalert"
	}
	if cfg.Service.EscalationIntervalSec <= 0 {
		cfg.Service.EscalationIntervalSec = defaultEscalationIntervalSec
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadIntervalSec
	}
	if cfg.Service.SnapshotIntervalSec <= 0 {
		cfg.Service.SnapshotIntervalSec = defaultSnapshotIntervalSec
	}
	if cfg.Service.HistoryMax <= 0 {
		cfg.Service.HistoryMax = defaultHistoryMax
	}
	if cfg.Service.HistoryAgeHours <= 0 {
		cfg.Service.HistoryAgeHours = defaultHistoryAgeHours
	}
	if cfg.Service.WindowCapacity <= 0 {
		cfg.Service.WindowCapacity = defaultWindowCapacity
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if cfg.Ingest.HTTP.Enabled {
		if cfg.Ingest.HTTP.Listen == "" {
			cfg.Ingest.HTTP.Listen = ":8080"
		}
		if cfg.Ingest.HTTP.HealthPath == "" {
			cfg.Ingest.HTTP.HealthPath = "/healthz"
		}
		if cfg.Ingest.HTTP.ReadyPath == "" {
			cfg.Ingest.HTTP.ReadyPath = "/readyz"
		}
		if cfg.Ingest.HTTP.IngestPath == "" {
			cfg.Ingest.HTTP.IngestPath = "/ingest"
		}
		if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
			cfg.Ingest.HTTP.MaxBodyBytes = 1 << 20
		}
	}
	if cfg.Ingest.NATS.Enabled {
		if cfg.Ingest.NATS.Subject == "" {
			cfg.Ingest.NATS.Subject = "metrics.samples"
		}
		if cfg.Ingest.NATS.Stream == "" {
			cfg.Ingest.NATS.Stream = "METRICS"
		}
		if cfg.Ingest.NATS.ConsumerName == "" {
			cfg.Ingest.NATS.ConsumerName = "polyalert"
		}
		if cfg.Ingest.NATS.DeliverGroup == "" {
			cfg.Ingest.NATS.DeliverGroup = "polyalert-workers"
		}
		if cfg.Ingest.NATS.Workers <= 0 {
			cfg.Ingest.NATS.Workers = 4
		}
		if cfg.Ingest.NATS.AckWaitSec <= 0 {
			cfg.Ingest.NATS.AckWaitSec = 30
		}
		if cfg.Ingest.NATS.MaxDeliver <= 0 {
			cfg.Ingest.NATS.MaxDeliver = 3
		}
		if cfg.Ingest.NATS.MaxAckPending <= 0 {
			cfg.Ingest.NATS.MaxAckPending = 256
		}
	}

	if cfg.Notify.TimeoutSec <= 0 {
		cfg.Notify.TimeoutSec = defaultNotifyTimeoutSec
	}
	fillRetryDefaults(&cfg.Notify.Email.Retry)
	fillRetryDefaults(&cfg.Notify.Chat.Retry)
	fillRetryDefaults(&cfg.Notify.SMS.Retry)
	fillRetryDefaults(&cfg.Notify.Webhook.Retry)
	fillRetryDefaults(&cfg.Notify.Push.Retry)

	if cfg.Correlation.WindowMin <= 0 {
		cfg.Correlation.WindowMin = defaultCorrelationWindowMin
	}
	if cfg.Correlation.MinAlerts <= 0 {
		cfg.Correlation.MinAlerts = defaultCorrelationMinAlerts
	}
	if cfg.Correlation.TimelineMax <= 0 {
		cfg.Correlation.TimelineMax = defaultCorrelationTimeline
	}

	if len(cfg.Rule) == 0 {
		cfg.Rule = DefaultRules()
	}
}

// fillRetryDefaults normalizes one channel retry policy.
func fillRetryDefaults(retry *NotifyRetry) {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 2
	}
	if retry.InitialMS < 0 {
		retry.InitialMS = 0
	}
}

// DefaultRules returns the built-in rule set used when the snapshot
// defines no rules of its own.
// Returns: platform baseline rules covering latency, errors, web
// vitals, traffic, and translation fallbacks.
func DefaultRules() []RuleConfig {
	boolPtr := func(v bool) *bool { return &v }
	floatPtr := func(v float64) *float64 { return &v }
	allLanguages := []string{"en", "fr", "es", "it", "de", "nl", "pt"}

	return []RuleConfig{
		{
			Name:        "high_response_time",
			Description: "API response time exceeded threshold",
			Metric:      "api_response_time",
			Severity:    "medium",
			Languages:   allLanguages,
			CooldownSec: 15 * 60,
			Active:      boolPtr(true),
			Condition:   RuleCondition{Operator: "gt", WindowSec: 5 * 60, MinDataPoints: 3, Aggregation: "avg"},
			Threshold:   RuleThreshold{Warning: 1000, Critical: 2000, Adaptive: true},
			Channel: []RuleChannel{
				{Type: "email", Enabled: boolPtr(true), Priority: 1},
				{Type: "chat", Enabled: boolPtr(true), Priority: 2},
			},
			Escalation: &RuleEscalation{
				AutoResolve: true,
				MaxLevel:    2,
				Level: []RuleEscalationLevel{
					{DelaySec: 30 * 60, Channels: []string{"sms"}, Condition: "still_active"},
				},
			},
		},
		{
			Name:        "high_error_rate",
			Description: "Error rate exceeded acceptable threshold",
			Metric:      "error_rate",
			Severity:    "high",
			Languages:   allLanguages,
			CooldownSec: 10 * 60,
			Active:      boolPtr(true),
			Condition:   RuleCondition{Operator: "gt", WindowSec: 10 * 60, MinDataPoints: 5, Aggregation: "avg"},
			Threshold:   RuleThreshold{Warning: 5, Critical: 10, Adaptive: true},
			Channel: []RuleChannel{
				{Type: "chat", Enabled: boolPtr(true), Priority: 1},
				{Type: "email", Enabled: boolPtr(true), Priority: 2},
			},
			Escalation: &RuleEscalation{
				AutoResolve: false,
				MaxLevel:    1,
				Level: []RuleEscalationLevel{
					{DelaySec: 15 * 60, Channels: []string{"sms"}, Condition: "worsening"},
				},
			},
		},
		{
			Name:        "poor_lcp",
			Description: "Largest Contentful Paint exceeded good threshold",
			Metric:      "lcp",
			Severity:    "medium",
			Languages:   allLanguages,
			CooldownSec: 30 * 60,
			Active:      boolPtr(true),
			Condition:   RuleCondition{Operator: "gt", WindowSec: 15 * 60, MinDataPoints: 10, Aggregation: "avg"},
			Threshold:   RuleThreshold{Warning: 2500, Critical: 4000, Adaptive: true},
			Channel: []RuleChannel{
				{Type: "email", Enabled: boolPtr(true), Priority: 1},
			},
		},
		{
			Name:        "traffic_anomaly",
			Description: "Unusual traffic pattern detected",
			Metric:      "page_views",
			Severity:    "low",
			Languages:   allLanguages,
			CooldownSec: 60 * 60,
			Active:      boolPtr(true),
			Condition:   RuleCondition{Operator: "anomaly", WindowSec: 60 * 60, MinDataPoints: 20, Aggregation: "count"},
			Threshold:   RuleThreshold{Value: floatPtr(2.5)},
			Channel: []RuleChannel{
				{Type: "chat", Enabled: boolPtr(true), Priority: 1},
			},
		},
		{
			Name:        "translation_fallback_rate",
			Description: "Too many translation fallbacks detected",
			Metric:      "translation_fallback_rate",
			Severity:    "medium",
			Languages:   []string{"fr", "es", "it", "de", "nl", "pt"},
			CooldownSec: 45 * 60,
			Active:      boolPtr(true),
			Condition:   RuleCondition{Operator: "gt", WindowSec: 30 * 60, MinDataPoints: 15, Aggregation: "avg"},
			Threshold:   RuleThreshold{Warning: 15, Critical: 30},
			Channel: []RuleChannel{
				{Type: "email", Enabled: boolPtr(true), Priority: 1},
			},
		},
	}
}

// validateConfig checks service-level settings. Rule bodies are checked
// per rule in DomainRules instead so one bad rule is rejected alone.
// Params: config after defaults.
// Returns: first service-level validation error.
func validateConfig(cfg Config) error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not supported", cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when the file sink is enabled")
	}
	if cfg.Ingest.NATS.Enabled && len(cfg.Ingest.NATS.URL) == 0 {
		return fmt.Errorf("ingest.nats.url is required when NATS ingest is enabled")
	}
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		return fmt.Errorf("at least one ingest interface must be enabled")
	}
	if cfg.Notify.Email.Enabled && (cfg.Notify.Email.Host == "" || len(cfg.Notify.Email.To) == 0) {
		return fmt.Errorf("notify.email requires host and recipients")
	}
	if cfg.Notify.Chat.Enabled && cfg.Notify.Chat.Token == "" {
		return fmt.Errorf("notify.chat.token is required")
	}
	if cfg.Notify.SMS.Enabled && cfg.Notify.SMS.URL == "" {
		return fmt.Errorf("notify.sms.url is required")
	}
	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL == "" {
		return fmt.Errorf("notify.webhook.url is required")
	}
	if cfg.Notify.Push.Enabled && cfg.Notify.Push.BotToken == "" {
		return fmt.Errorf("notify.push.bot_token is required")
	}
	return nil
}
