package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"polyalert/internal/clock"
	"polyalert/internal/correlate"
	"polyalert/internal/domain"
	"polyalert/internal/engine"
	"polyalert/internal/rules"
	"polyalert/internal/state"
	"polyalert/internal/stats"
	"polyalert/internal/threshold"
)

// Dispatcher delivers one alert over its channel list.
// Params: context, alert snapshot, and channel refs.
// Returns: one delivery record per attempted channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert domain.Alert, channels []domain.ChannelRef) []domain.NotificationRecord
}

// Manager runs the alerting pipeline: record samples, evaluate rules,
// drive alert lifecycle, dispatch notifications, and correlate incidents.
// Notification dispatch happens outside any store lock; records are
// written back afterwards.
type Manager struct {
	clk        clock.Clock
	logger     *slog.Logger
	thresholds *threshold.Store
	registry   *rules.Registry
	evaluator  *engine.Evaluator
	alerts     *state.AlertStore
	dispatcher Dispatcher
	detector   *correlate.Detector
}

// NewManager wires the pipeline components.
// Params: clock, logger, stores, dispatcher, and correlation detector.
// Returns: ready manager.
func NewManager(
	clk clock.Clock,
	logger *slog.Logger,
	thresholds *threshold.Store,
	registry *rules.Registry,
	alerts *state.AlertStore,
	dispatcher Dispatcher,
	detector *correlate.Detector,
) *Manager {
	return &Manager{
		clk:        clk,
		logger:     logger,
		thresholds: thresholds,
		registry:   registry,
		evaluator:  engine.NewEvaluator(thresholds, registry),
		alerts:     alerts,
		dispatcher: dispatcher,
		detector:   detector,
	}
}

// ApplyRules swaps the active rule set.
// Params: validated domain rules.
func (m *Manager) ApplyRules(ruleSet []domain.AlertRule) {
	m.registry.Replace(ruleSet)
	m.logger.Info("rule set applied", "rules", len(ruleSet))
}

// EvaluateMetric processes one metric sample end to end: record it,
// evaluate every applicable rule, open or resolve alerts, dispatch
// notifications, and feed the correlation detector.
// Params: context and decoded sample.
func (m *Manager) EvaluateMetric(ctx context.Context, sample domain.Sample) {
	at := sample.SampleTime()
	now := m.clk.Now()
	m.thresholds.Record(sample.Metric, sample.Language, at, sample.Value)

	for _, rule := range m.registry.FindApplicable(sample.Metric, sample.Language) {
		decision := m.evaluator.Evaluate(rule, sample.Value, sample.Language, now)
		if decision.Breach {
			m.openAlert(ctx, rule, sample, decision.Threshold, now)
		} else {
			m.tryResolve(rule, sample.Value, sample.Language, at, now)
		}
	}
}

// openAlert registers a new alert episode and runs the side effects.
// A conflict with an existing active alert for the same rule and
// language is a silent no-op.
func (m *Manager) openAlert(ctx context.Context, rule domain.AlertRule, sample domain.Sample, limit float64, now time.Time) {
	alert := domain.Alert{
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		Language:     sample.Language,
		Metric:       rule.Metric,
		CurrentValue: sample.Value,
		Threshold:    limit,
		Severity:     rule.Severity,
		Created:      now,
		Context:      buildAlertContext(rule, sample.Context),
	}

	stored, err := m.alerts.Open(alert)
	if err != nil {
		if errors.Is(err, state.ErrConflict) {
			return
		}
		m.logger.Error("open alert failed", "rule", rule.ID, "language", sample.Language, "error", err.Error())
		return
	}
	m.logger.Warn("alert triggered",
		"alert_id", stored.ID, "rule", rule.ID, "language", stored.Language,
		"value", stored.CurrentValue, "threshold", stored.Threshold, "severity", string(stored.Severity))

	records := m.dispatcher.Dispatch(ctx, stored, rule.Channels)
	if err := m.alerts.AppendNotifications(stored.ID, records); err != nil {
		m.logger.Error("record notifications failed", "alert_id", stored.ID, "error", err.Error())
	}

	if incident, ok := m.detector.Observe(stored, m.alerts.ListActive(), now); ok {
		m.logger.Warn("incident correlation detected",
			"correlation_id", incident.ID, "pattern", incident.Pattern,
			"confidence", incident.Confidence, "impact", string(incident.Impact))
	}
}

// tryResolve closes the active alert for a rule and language when the
// value has crossed back through the hysteresis band. Samples measured
// before the alert opened are ignored so a late arrival cannot close an
// alert it predates.
func (m *Manager) tryResolve(rule domain.AlertRule, value float64, language string, at, now time.Time) {
	active, ok := m.alerts.ActiveFor(rule.ID, language)
	if !ok {
		return
	}
	if at.Before(active.Created) {
		return
	}
	if !m.evaluator.ShouldResolve(rule, value, active.Threshold) {
		return
	}
	if _, err := m.alerts.Resolve(active.ID, now); err != nil {
		m.logger.Error("resolve alert failed", "alert_id", active.ID, "error", err.Error())
		return
	}
	m.logger.Info("alert resolved", "alert_id", active.ID, "rule", rule.ID, "language", language, "value", value)
}

// Tick runs the periodic escalation sweep. For every active alert of a
// rule with an escalation policy it advances the next level once its
// delay since alert creation has elapsed and the level condition holds,
// dispatching over the level's channels. Auto-resolve policies close
// alerts whose latest recorded value sits back inside the hysteresis
// band.
// Params: context for notification delivery.
func (m *Manager) Tick(ctx context.Context) {
	now := m.clk.Now()
	for _, alert := range m.alerts.ListActive() {
		rule, ok := m.registry.Get(alert.RuleID)
		if !ok {
			m.logger.Debug("active alert references removed rule", "alert_id", alert.ID, "rule", alert.RuleID)
			continue
		}
		// Auto-resolve runs even for deactivated rules so their alerts
		// cannot stay open forever once the metric recovers.
		if m.tryAutoResolve(rule, alert, now) {
			continue
		}
		if !rule.Active || rule.Escalation == nil {
			continue
		}
		m.processEscalation(ctx, rule, alert, *rule.Escalation, now)
	}
}

// tryAutoResolve closes one alert when its policy allows it and the
// latest value passed back through the hysteresis band.
// Returns: true when the alert was closed.
func (m *Manager) tryAutoResolve(rule domain.AlertRule, alert domain.Alert, now time.Time) bool {
	if rule.Escalation == nil || !rule.Escalation.AutoResolve {
		return false
	}
	latest, ok := m.thresholds.LastValue(alert.Metric, alert.Language)
	if !ok || !m.evaluator.ShouldResolve(rule, latest, alert.Threshold) {
		return false
	}
	if _, err := m.alerts.Resolve(alert.ID, now); err != nil {
		return false
	}
	m.logger.Info("alert auto-resolved", "alert_id", alert.ID, "rule", rule.ID, "value", latest)
	return true
}

// processEscalation advances one alert a single level per sweep.
func (m *Manager) processEscalation(ctx context.Context, rule domain.AlertRule, alert domain.Alert, policy domain.EscalationPolicy, now time.Time) {
	if alert.EscalationLevel >= policy.MaxLevel || alert.EscalationLevel >= len(policy.Levels) {
		return
	}
	level := policy.Levels[alert.EscalationLevel]
	if now.Sub(alert.Created) < level.Delay {
		return
	}
	if !m.levelConditionHolds(rule, alert, level.Condition) {
		return
	}

	updated, err := m.alerts.SetEscalated(alert.ID, alert.EscalationLevel+1)
	if err != nil {
		return
	}
	m.logger.Warn("alert escalated",
		"alert_id", updated.ID, "rule", rule.ID, "level", updated.EscalationLevel)

	records := m.dispatcher.Dispatch(ctx, updated, level.Channels)
	if err := m.alerts.AppendNotifications(updated.ID, records); err != nil {
		m.logger.Error("record escalation notifications failed", "alert_id", updated.ID, "error", err.Error())
	}
}

// levelConditionHolds evaluates one escalation gate. Acknowledged
// alerts stop still_active escalation; that is what acknowledging is
// for.
func (m *Manager) levelConditionHolds(rule domain.AlertRule, alert domain.Alert, condition domain.EscalationCondition) bool {
	switch condition {
	case domain.EscalateStillActive:
		return alert.Status != domain.AlertStatusAcknowledged
	case domain.EscalateWorsening:
		return m.evaluator.Worsening(rule, alert)
	default:
		return true
	}
}

// Acknowledge marks an alert as claimed by an operator.
// Params: alert id and operator identity.
// Returns: updated alert or store error.
func (m *Manager) Acknowledge(id, by string) (domain.Alert, error) {
	alert, err := m.alerts.Acknowledge(id, by)
	if err != nil {
		return domain.Alert{}, err
	}
	m.logger.Info("alert acknowledged", "alert_id", id, "by", by)
	return alert, nil
}

// ActiveAlerts returns all open alerts.
func (m *Manager) ActiveAlerts() []domain.Alert {
	return m.alerts.ListActive()
}

// History returns closed alerts, newest first.
// Params: limit; non-positive means everything retained.
func (m *Manager) History(limit int) []domain.Alert {
	return m.alerts.History(limit)
}

// Correlations returns recorded incident correlations.
func (m *Manager) Correlations() []domain.IncidentCorrelation {
	return m.detector.List()
}

// Stats computes the current statistics snapshot.
func (m *Manager) Stats() stats.Report {
	return stats.Build(m.alerts, m.clk.Now())
}

// buildAlertContext merges caller-supplied context with metric-specific
// diagnosis hints.
// Params: rule and optional sample context.
// Returns: enriched alert context.
func buildAlertContext(rule domain.AlertRule, supplied *domain.AlertContext) domain.AlertContext {
	out := domain.AlertContext{Device: "unknown"}
	if supplied != nil {
		out = supplied.Clone()
		if out.Device == "" {
			out.Device = "unknown"
		}
	}

	switch rule.Metric {
	case "api_response_time":
		out.PossibleCauses = []string{
			"Database performance issues",
			"High server load",
			"Network connectivity problems",
			"Translation service delays",
		}
		out.SuggestedActions = []string{
			"Check database performance metrics",
			"Scale server instances",
			"Review recent deployments",
			"Check translation cache hit rate",
		}
	case "error_rate":
		out.PossibleCauses = []string{
			"Code deployment issues",
			"Database connectivity",
			"Third-party service failures",
			"Translation API failures",
		}
		out.SuggestedActions = []string{
			"Rollback recent deployment",
			"Check service dependencies",
			"Review error logs",
			"Verify translation service status",
		}
	}
	return out
}
