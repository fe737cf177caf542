package config

import (
	"errors"
	"fmt"
	"time"

	"polyalert/internal/domain"
)

// DomainRules converts configured rules into domain rules. Each rule is
// validated on its own: a broken rule lands in the rejection list and
// the remaining rules still load.
// Params: none beyond the receiver snapshot.
// Returns: valid rules plus one RuleError per rejected rule.
func (c Config) DomainRules() ([]domain.AlertRule, []RuleError) {
	rules := make([]domain.AlertRule, 0, len(c.Rule))
	var rejected []RuleError
	for _, rc := range c.Rule {
		rule, err := rc.toDomain()
		if err != nil {
			rejected = append(rejected, RuleError{Name: rc.Name, Err: err})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, rejected
}

// toDomain validates and converts one rule body.
// Returns: domain rule or the first validation error.
func (rc RuleConfig) toDomain() (domain.AlertRule, error) {
	if rc.Name == "" {
		return domain.AlertRule{}, errors.New("rule name is required")
	}
	if rc.Metric == "" {
		return domain.AlertRule{}, errors.New("metric is required")
	}
	if len(rc.Languages) == 0 {
		return domain.AlertRule{}, errors.New("languages list is required")
	}

	severity, err := parseSeverity(rc.Severity)
	if err != nil {
		return domain.AlertRule{}, err
	}
	condition, err := rc.Condition.toDomain()
	if err != nil {
		return domain.AlertRule{}, err
	}
	threshold, err := rc.Threshold.toDomain(condition.Operator)
	if err != nil {
		return domain.AlertRule{}, err
	}
	channels, err := convertChannels(rc.Channel)
	if err != nil {
		return domain.AlertRule{}, err
	}
	if len(channels) == 0 {
		return domain.AlertRule{}, errors.New("at least one channel is required")
	}
	escalation, err := convertEscalation(rc.Escalation)
	if err != nil {
		return domain.AlertRule{}, err
	}
	if rc.CooldownSec < 0 {
		return domain.AlertRule{}, errors.New("cooldown_sec must not be negative")
	}

	active := true
	if rc.Active != nil {
		active = *rc.Active
	}
	return domain.AlertRule{
		ID:          rc.Name,
		Name:        rc.Name,
		Description: rc.Description,
		Metric:      rc.Metric,
		Condition:   condition,
		Threshold:   threshold,
		Languages:   rc.Languages,
		Severity:    severity,
		Channels:    channels,
		Cooldown:    time.Duration(rc.CooldownSec) * time.Second,
		Escalation:  escalation,
		Active:      active,
	}, nil
}

func parseSeverity(raw string) (domain.Severity, error) {
	switch domain.Severity(raw) {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
		return domain.Severity(raw), nil
	default:
		return "", fmt.Errorf("severity %q is not supported", raw)
	}
}

func (rc RuleCondition) toDomain() (domain.Condition, error) {
	operator := domain.Operator(rc.Operator)
	switch operator {
	case domain.OperatorGT, domain.OperatorLT, domain.OperatorEQ,
		domain.OperatorGTE, domain.OperatorLTE,
		domain.OperatorChangePercent, domain.OperatorAnomaly:
	default:
		return domain.Condition{}, fmt.Errorf("condition.operator %q is not supported", rc.Operator)
	}
	if rc.WindowSec <= 0 {
		return domain.Condition{}, errors.New("condition.window_sec must be positive")
	}
	if rc.MinDataPoints < 0 {
		return domain.Condition{}, errors.New("condition.min_data_points must not be negative")
	}

	aggregation := domain.Aggregation(rc.Aggregation)
	if rc.Aggregation == "" {
		aggregation = domain.AggregationAvg
	} else {
		switch aggregation {
		case domain.AggregationAvg, domain.AggregationMax, domain.AggregationMin,
			domain.AggregationSum, domain.AggregationCount:
		default:
			return domain.Condition{}, fmt.Errorf("condition.aggregation %q is not supported", rc.Aggregation)
		}
	}
	return domain.Condition{
		Operator:      operator,
		Window:        time.Duration(rc.WindowSec) * time.Second,
		MinDataPoints: rc.MinDataPoints,
		Aggregation:   aggregation,
	}, nil
}

func (rt RuleThreshold) toDomain(operator domain.Operator) (domain.Threshold, error) {
	if rt.Value != nil {
		if rt.Adaptive || rt.Warning != 0 || rt.Critical != 0 {
			return domain.Threshold{}, errors.New("threshold.value excludes warning/critical/adaptive")
		}
		return domain.Threshold{Fixed: rt.Value}, nil
	}
	if operator == domain.OperatorAnomaly {
		return domain.Threshold{}, errors.New("anomaly rules require threshold.value (sigma multiplier)")
	}
	if rt.Warning == 0 && rt.Critical == 0 {
		return domain.Threshold{}, errors.New("threshold requires value or warning/critical")
	}
	return domain.Threshold{
		Warning:  rt.Warning,
		Critical: rt.Critical,
		Adaptive: rt.Adaptive,
	}, nil
}

func parseChannelType(raw string) (domain.ChannelType, error) {
	switch domain.ChannelType(raw) {
	case domain.ChannelEmail, domain.ChannelChat, domain.ChannelSMS,
		domain.ChannelWebhook, domain.ChannelPush:
		return domain.ChannelType(raw), nil
	default:
		return "", fmt.Errorf("channel type %q is not supported", raw)
	}
}

func convertChannels(channels []RuleChannel) ([]domain.ChannelRef, error) {
	out := make([]domain.ChannelRef, 0, len(channels))
	for _, ch := range channels {
		channelType, err := parseChannelType(ch.Type)
		if err != nil {
			return nil, err
		}
		enabled := true
		if ch.Enabled != nil {
			enabled = *ch.Enabled
		}
		out = append(out, domain.ChannelRef{Type: channelType, Enabled: enabled, Priority: ch.Priority})
	}
	return out, nil
}

func convertEscalation(esc *RuleEscalation) (*domain.EscalationPolicy, error) {
	if esc == nil {
		return nil, nil
	}
	if len(esc.Level) == 0 {
		return nil, errors.New("escalation requires at least one level")
	}
	maxLevel := esc.MaxLevel
	if maxLevel <= 0 {
		maxLevel = len(esc.Level)
	}

	levels := make([]domain.EscalationLevel, 0, len(esc.Level))
	for i, lvl := range esc.Level {
		if lvl.DelaySec <= 0 {
			return nil, fmt.Errorf("escalation.level[%d].delay_sec must be positive", i)
		}
		if len(lvl.Channels) == 0 {
			return nil, fmt.Errorf("escalation.level[%d].channels is required", i)
		}
		refs := make([]domain.ChannelRef, 0, len(lvl.Channels))
		for j, name := range lvl.Channels {
			channelType, err := parseChannelType(name)
			if err != nil {
				return nil, fmt.Errorf("escalation.level[%d]: %w", i, err)
			}
			refs = append(refs, domain.ChannelRef{Type: channelType, Enabled: true, Priority: j + 1})
		}
		condition := domain.EscalationCondition(lvl.Condition)
		switch condition {
		case "", domain.EscalateStillActive, domain.EscalateWorsening:
		default:
			return nil, fmt.Errorf("escalation.level[%d].condition %q is not supported", i, lvl.Condition)
		}
		levels = append(levels, domain.EscalationLevel{
			Delay:     time.Duration(lvl.DelaySec) * time.Second,
			Channels:  refs,
			Condition: condition,
		})
	}
	return &domain.EscalationPolicy{
		Levels:      levels,
		AutoResolve: esc.AutoResolve,
		MaxLevel:    maxLevel,
	}, nil
}
