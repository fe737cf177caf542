package domain

import "time"

// Severity ranks alert importance, copied from the rule at trigger time.
// Params: low/medium/high/critical constants.
// Returns: ordering input for dashboards and escalation channels.
type Severity string

const (
	// SeverityLow marks informational alerts.
	SeverityLow Severity = "low"
	// SeverityMedium marks degradations that need attention.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks user-visible incidents.
	SeverityHigh Severity = "high"
	// SeverityCritical marks outage-grade incidents.
	SeverityCritical Severity = "critical"
)

// AlertStatus is runtime alert lifecycle state.
// Params: active/resolved/acknowledged/escalated constants.
// Returns: state transitions for store and notifications.
type AlertStatus string

const (
	// AlertStatusActive indicates an open breach episode.
	AlertStatusActive AlertStatus = "active"
	// AlertStatusResolved indicates the breach cleared through hysteresis.
	AlertStatusResolved AlertStatus = "resolved"
	// AlertStatusAcknowledged indicates an operator claimed the alert.
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	// AlertStatusEscalated indicates the escalation scheduler advanced a level.
	AlertStatusEscalated AlertStatus = "escalated"
)

// NotificationStatus is per-channel delivery outcome.
// Params: sent/failed/pending constants.
// Returns: append-only delivery bookkeeping state.
type NotificationStatus string

const (
	// NotificationSent marks successful channel delivery.
	NotificationSent NotificationStatus = "sent"
	// NotificationFailed marks exhausted delivery attempts.
	NotificationFailed NotificationStatus = "failed"
	// NotificationPending marks delivery in flight.
	NotificationPending NotificationStatus = "pending"
)

// NotificationRecord stores one channel delivery outcome for an alert.
// Params: channel type, send time, status, retry count, and error text.
// Returns: append-only history entry; channel effectiveness is derived
// from these records only.
type NotificationRecord struct {
	Channel    ChannelType        `json:"channel"`
	Timestamp  time.Time          `json:"timestamp"`
	Status     NotificationStatus `json:"status"`
	RetryCount int                `json:"retry_count"`
	Error      string             `json:"error,omitempty"`
}

// AlertContext carries informational diagnosis data attached at trigger time.
// Params: caller-supplied environment fields plus engine-filled hints.
// Returns: non-authoritative context rendered into notifications.
type AlertContext struct {
	Device           string             `json:"device,omitempty"`
	Country          string             `json:"country,omitempty"`
	UserAgent        string             `json:"user_agent,omitempty"`
	SessionCount     int                `json:"session_count"`
	ErrorRate        float64            `json:"error_rate"`
	RelatedMetrics   map[string]float64 `json:"related_metrics,omitempty"`
	PossibleCauses   []string           `json:"possible_causes,omitempty"`
	SuggestedActions []string           `json:"suggested_actions,omitempty"`
}

// Alert is one (rule, language) breach episode.
// Params: identity, trigger snapshot, lifecycle fields, and delivery records.
// Returns: mutable lifecycle entity owned by the alert store.
type Alert struct {
	ID              string               `json:"id"`
	RuleID          string               `json:"rule_id"`
	RuleName        string               `json:"rule_name"`
	Language        string               `json:"language"`
	Metric          string               `json:"metric"`
	CurrentValue    float64              `json:"current_value"`
	Threshold       float64              `json:"threshold"`
	Severity        Severity             `json:"severity"`
	Status          AlertStatus          `json:"status"`
	Created         time.Time            `json:"created"`
	Resolved        *time.Time           `json:"resolved,omitempty"`
	AcknowledgedBy  string               `json:"acknowledged_by,omitempty"`
	EscalationLevel int                  `json:"escalation_level"`
	Context         AlertContext         `json:"context"`
	Notifications   []NotificationRecord `json:"notifications"`
}

// Clone returns a detached alert copy safe to hand across goroutines.
// Params: none.
// Returns: deep copy with duplicated slices/maps.
func (a Alert) Clone() Alert {
	out := a
	out.Notifications = append([]NotificationRecord(nil), a.Notifications...)
	out.Context = a.Context.Clone()
	if a.Resolved != nil {
		resolved := *a.Resolved
		out.Resolved = &resolved
	}
	return out
}

// Clone duplicates mutable context fields.
// Params: none.
// Returns: detached context copy.
func (c AlertContext) Clone() AlertContext {
	out := c
	if len(c.RelatedMetrics) > 0 {
		out.RelatedMetrics = make(map[string]float64, len(c.RelatedMetrics))
		for key, value := range c.RelatedMetrics {
			out.RelatedMetrics[key] = value
		}
	}
	out.PossibleCauses = append([]string(nil), c.PossibleCauses...)
	out.SuggestedActions = append([]string(nil), c.SuggestedActions...)
	return out
}

// ImpactScope classifies incident blast radius by distinct language count.
// Params: localized/regional/global constants.
// Returns: correlation impact label.
type ImpactScope string

const (
	// ImpactLocalized covers incidents touching fewer than three languages.
	ImpactLocalized ImpactScope = "localized"
	// ImpactRegional covers incidents touching three or four languages.
	ImpactRegional ImpactScope = "regional"
	// ImpactGlobal covers incidents touching five or more languages.
	ImpactGlobal ImpactScope = "global"
)

// TimelineEntry is one ordered correlation timeline item.
// Params: event time, text, and optional alert reference.
// Returns: display-oriented incident history element.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	AlertID   string    `json:"alert_id,omitempty"`
}

// IncidentCorrelation groups temporally related alerts under one heuristic
// pattern. Advisory only: it never drives lifecycle decisions.
// Params: contributing alert snapshots and derived classification fields.
// Returns: read-mostly record owned by the correlation detector.
type IncidentCorrelation struct {
	ID         string          `json:"id"`
	Alerts     []Alert         `json:"alerts"`
	Pattern    string          `json:"pattern"`
	Confidence int             `json:"confidence"`
	RootCause  string          `json:"root_cause,omitempty"`
	Impact     ImpactScope     `json:"impact"`
	Languages  []string        `json:"languages"`
	Timeline   []TimelineEntry `json:"timeline"`
}
