package domain

import "time"

// Operator selects the breach comparison applied by the evaluator.
// Params: comparison constants including derived operators.
// Returns: normalized operator key from rule config.
type Operator string

const (
	// OperatorGT breaches when value exceeds threshold.
	OperatorGT Operator = "gt"
	// OperatorLT breaches when value is below threshold.
	OperatorLT Operator = "lt"
	// OperatorEQ breaches when value equals threshold.
	OperatorEQ Operator = "eq"
	// OperatorGTE breaches when value is at or above threshold.
	OperatorGTE Operator = "gte"
	// OperatorLTE breaches when value is at or below threshold.
	OperatorLTE Operator = "lte"
	// OperatorChangePercent breaches on rolling percentage delta.
	OperatorChangePercent Operator = "change_percent"
	// OperatorAnomaly breaches on statistical deviation from history.
	OperatorAnomaly Operator = "anomaly"
)

// Aggregation selects how window samples collapse into one baseline value.
// Params: avg/max/min/sum/count constants.
// Returns: baseline reducer for change_percent rules.
type Aggregation string

const (
	// AggregationAvg averages window samples.
	AggregationAvg Aggregation = "avg"
	// AggregationMax takes the window maximum.
	AggregationMax Aggregation = "max"
	// AggregationMin takes the window minimum.
	AggregationMin Aggregation = "min"
	// AggregationSum sums window samples.
	AggregationSum Aggregation = "sum"
	// AggregationCount counts window samples.
	AggregationCount Aggregation = "count"
)

// Condition describes when a rule considers a sample a breach.
// Params: operator, evaluation window, minimum history, and aggregation.
// Returns: immutable condition definition.
type Condition struct {
	Operator      Operator
	Window        time.Duration
	MinDataPoints int
	Aggregation   Aggregation
}

// Threshold is either one fixed number or a warning/critical pair with an
// optional adaptive flag.
// Params: fixed value marker or tiered static values.
// Returns: threshold definition resolved by the threshold store.
type Threshold struct {
	Fixed    *float64
	Warning  float64
	Critical float64
	Adaptive bool
}

// ChannelType identifies one abstract notification transport.
// Params: email/chat/sms/webhook/push constants.
// Returns: dispatcher sender selector.
type ChannelType string

const (
	// ChannelEmail delivers over SMTP.
	ChannelEmail ChannelType = "email"
	// ChannelChat delivers to the team chat workspace.
	ChannelChat ChannelType = "chat"
	// ChannelSMS delivers through the SMS provider API.
	ChannelSMS ChannelType = "sms"
	// ChannelWebhook posts JSON to a configured endpoint.
	ChannelWebhook ChannelType = "webhook"
	// ChannelPush delivers as a push message.
	ChannelPush ChannelType = "push"
)

// ChannelRef binds one rule (or escalation level) to one transport.
// Params: channel type, enabled flag, and send ordering priority.
// Returns: dispatch target; lower priority sends first.
type ChannelRef struct {
	Type     ChannelType
	Enabled  bool
	Priority int
}

// EscalationCondition gates one escalation level beyond its delay.
// Params: still_active/worsening constants (empty means unconditional).
// Returns: level advance predicate selector.
type EscalationCondition string

const (
	// EscalateStillActive requires the alert to remain in active status.
	EscalateStillActive EscalationCondition = "still_active"
	// EscalateWorsening requires the metric to have moved further past threshold.
	EscalateWorsening EscalationCondition = "worsening"
)

// EscalationLevel is one ordinal escalation step.
// Params: delay from alert creation, target channels, and optional gate.
// Returns: immutable level definition.
type EscalationLevel struct {
	Delay     time.Duration
	Channels  []ChannelRef
	Condition EscalationCondition
}

// EscalationPolicy drives the timed state machine for one rule's alerts.
// Params: ordered levels, auto-resolve flag, and level cap.
// Returns: immutable policy definition.
type EscalationPolicy struct {
	Levels      []EscalationLevel
	AutoResolve bool
	MaxLevel    int
}

// AlertRule is one declarative alerting rule, immutable after load.
// Trigger bookkeeping (lastTriggered, triggerCount) lives in the registry,
// not here.
// Params: identity, condition, threshold, scope, and delivery settings.
// Returns: rule definition shared across evaluations.
type AlertRule struct {
	ID          string
	Name        string
	Description string
	Metric      string
	Condition   Condition
	Threshold   Threshold
	Languages   []string
	Severity    Severity
	Channels    []ChannelRef
	Cooldown    time.Duration
	Escalation  *EscalationPolicy
	Active      bool
}

// AppliesTo reports whether the rule covers one language. A scope entry
// of "all" matches every language.
// Params: language code.
// Returns: true when the language is in the rule scope.
func (r AlertRule) AppliesTo(language string) bool {
	for _, lang := range r.Languages {
		if lang == "all" || lang == language {
			return true
		}
	}
	return false
}
