package engine

import (
	"math"
	"time"

	"polyalert/internal/domain"
	"polyalert/internal/rules"
	"polyalert/internal/threshold"
)

// hysteresisBand is the fraction of threshold used for resolution banding.
const hysteresisBand = 0.1

// Decision is one rule evaluation result for a single sample.
// Params: breach verdict and the threshold the sample was compared against.
// Returns: deterministic evaluator output consumed by the manager.
type Decision struct {
	Breach    bool
	Threshold float64
}

// Evaluator decides breach and resolution for rules against samples.
// Cooldown strictly suppresses re-triggering independent of value, and
// missing history for change_percent/anomaly is a non-breach by policy.
// Params: threshold store and rule registry references.
// Returns: stateless decision logic; all state lives in the stores.
type Evaluator struct {
	thresholds *threshold.Store
	registry   *rules.Registry
}

// NewEvaluator creates the condition evaluator.
// Params: threshold store and rule registry.
// Returns: initialized evaluator.
func NewEvaluator(thresholds *threshold.Store, registry *rules.Registry) *Evaluator {
	return &Evaluator{thresholds: thresholds, registry: registry}
}

// Evaluate applies one rule to one sample.
// Params: rule, sample value, language, and current processing time.
// Returns: breach decision; on breach the registry trigger state is stamped.
func (e *Evaluator) Evaluate(rule domain.AlertRule, value float64, language string, now time.Time) Decision {
	if e.registry.InCooldown(rule, language, now) {
		return Decision{Threshold: e.thresholds.EffectiveThreshold(rule, language)}
	}

	limit := e.thresholds.EffectiveThreshold(rule, language)
	breach := false
	switch rule.Condition.Operator {
	case domain.OperatorGT:
		breach = value > limit
	case domain.OperatorLT:
		breach = value < limit
	case domain.OperatorEQ:
		breach = value == limit
	case domain.OperatorGTE:
		breach = value >= limit
	case domain.OperatorLTE:
		breach = value <= limit
	case domain.OperatorChangePercent:
		breach = e.changePercentBreach(rule, value, language, now, limit)
	case domain.OperatorAnomaly:
		breach = e.thresholds.AnomalyScore(rule.Metric, language, value, limit)
	}

	if breach {
		e.registry.MarkTriggered(rule.ID, language, now)
	}
	return Decision{Breach: breach, Threshold: limit}
}

// changePercentBreach compares value against the aggregated rolling
// baseline. Fewer than MinDataPoints historical samples means no baseline
// and therefore no breach.
// Params: rule, sample value, language, current time, and percent threshold.
// Returns: true when |value-baseline|/baseline*100 meets the threshold.
func (e *Evaluator) changePercentBreach(rule domain.AlertRule, value float64, language string, now time.Time, limit float64) bool {
	cutoff := now.Add(-rule.Condition.Window)
	baseline, count := e.thresholds.Baseline(rule.Metric, language, cutoff, rule.Condition.Aggregation)
	if count < rule.Condition.MinDataPoints || baseline == 0 {
		return false
	}
	change := math.Abs(value-baseline) / math.Abs(baseline) * 100
	return change >= limit
}

// ShouldResolve applies the resolution hysteresis band for an open alert.
// Only threshold-direction operators auto-resolve: for gt/gte the value
// must drop below threshold-10%, for lt/lte it must rise above
// threshold+10%. Other operators never resolve here.
// Params: rule, sample value, and the threshold recorded at trigger time.
// Returns: true when the alert may transition to resolved.
func (e *Evaluator) ShouldResolve(rule domain.AlertRule, value, limit float64) bool {
	band := limit * hysteresisBand
	switch rule.Condition.Operator {
	case domain.OperatorGT, domain.OperatorGTE:
		return value < limit-band
	case domain.OperatorLT, domain.OperatorLTE:
		return value > limit+band
	default:
		return false
	}
}

// Worsening reports whether the latest recorded value sits further from the
// threshold, in breach direction, than the value at alert creation.
// Params: rule, alert snapshot, and language.
// Returns: true when the metric moved deeper past the threshold.
func (e *Evaluator) Worsening(rule domain.AlertRule, alert domain.Alert) bool {
	latest, ok := e.thresholds.LastValue(alert.Metric, alert.Language)
	if !ok {
		return false
	}
	switch rule.Condition.Operator {
	case domain.OperatorGT, domain.OperatorGTE:
		return latest > alert.CurrentValue
	case domain.OperatorLT, domain.OperatorLTE:
		return latest < alert.CurrentValue
	default:
		return math.Abs(latest-alert.Threshold) > math.Abs(alert.CurrentValue-alert.Threshold)
	}
}
