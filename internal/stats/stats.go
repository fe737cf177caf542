// Package stats derives operational alerting metrics from the alert
// store: counts, resolution speed, trend, and channel effectiveness.
package stats

import (
	"sort"
	"time"

	"polyalert/internal/domain"
)

const topAlertsLimit = 5

// RuleCount is one entry of the most-triggered rule ranking.
type RuleCount struct {
	Rule  string `json:"rule"`
	Count int    `json:"count"`
}

// ChannelOutcome aggregates delivery results for one channel.
type ChannelOutcome struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Report is one point-in-time alerting statistics snapshot.
// Params: derived aggregates only; nothing here mutates engine state.
// Returns: serializable stats payload for the read API.
type Report struct {
	ActiveAlerts         int                        `json:"active_alerts"`
	AlertsByLanguage     map[string]int             `json:"alerts_by_language"`
	AlertsBySeverity     map[string]int             `json:"alerts_by_severity"`
	RecentTrendPercent   float64                    `json:"recent_trend_percent"`
	MeanTimeToResolveMin float64                    `json:"mean_time_to_resolve_min"`
	TopAlerts            []RuleCount                `json:"top_alerts"`
	ChannelEffectiveness map[string]ChannelOutcome `json:"channel_effectiveness"`
}

// Source provides the alert sets a report is computed from.
// Params: active alert listing and closed-alert history access.
// Returns: read-only view implemented by the alert store.
type Source interface {
	ListActive() []domain.Alert
	History(limit int) []domain.Alert
}

// Build computes one report from the current alert sets.
// Params: alert source and current time for trend bucketing.
// Returns: complete statistics snapshot.
func Build(source Source, now time.Time) Report {
	active := source.ListActive()
	history := source.History(0)

	report := Report{
		ActiveAlerts:         len(active),
		AlertsByLanguage:     make(map[string]int),
		AlertsBySeverity:     make(map[string]int),
		TopAlerts:            topAlerts(history),
		ChannelEffectiveness: channelEffectiveness(history),
	}
	for _, alert := range active {
		report.AlertsByLanguage[alert.Language]++
		report.AlertsBySeverity[string(alert.Severity)]++
	}
	report.MeanTimeToResolveMin = meanTimeToResolve(history)
	report.RecentTrendPercent = recentTrend(active, history, now)
	return report
}

// meanTimeToResolve averages created-to-resolved duration in minutes
// over all closed alerts.
func meanTimeToResolve(history []domain.Alert) float64 {
	var total time.Duration
	var count int
	for _, alert := range history {
		if alert.Resolved == nil {
			continue
		}
		total += alert.Resolved.Sub(alert.Created)
		count++
	}
	if count == 0 {
		return 0
	}
	return total.Minutes() / float64(count)
}

// recentTrend compares alert volume in the last 24 hours against the
// previous 24 hours as a percentage delta. A silent previous day with
// activity today reads as +100.
func recentTrend(active, history []domain.Alert, now time.Time) float64 {
	dayAgo := now.Add(-24 * time.Hour)
	twoDaysAgo := now.Add(-48 * time.Hour)

	var current, previous int
	counted := func(created time.Time) {
		switch {
		case !created.Before(dayAgo):
			current++
		case !created.Before(twoDaysAgo):
			previous++
		}
	}
	for _, alert := range active {
		counted(alert.Created)
	}
	for _, alert := range history {
		counted(alert.Created)
	}

	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return float64(current-previous) / float64(previous) * 100
}

// topAlerts ranks rules by closed-alert count, capped at five entries.
func topAlerts(history []domain.Alert) []RuleCount {
	counts := make(map[string]int)
	for _, alert := range history {
		counts[alert.RuleName]++
	}

	ranking := make([]RuleCount, 0, len(counts))
	for rule, count := range counts {
		ranking = append(ranking, RuleCount{Rule: rule, Count: count})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Count != ranking[j].Count {
			return ranking[i].Count > ranking[j].Count
		}
		return ranking[i].Rule < ranking[j].Rule
	})
	if len(ranking) > topAlertsLimit {
		ranking = ranking[:topAlertsLimit]
	}
	return ranking
}

// channelEffectiveness tallies sent/failed delivery records per channel
// across closed alerts.
func channelEffectiveness(history []domain.Alert) map[string]ChannelOutcome {
	out := make(map[string]ChannelOutcome)
	for _, alert := range history {
		for _, record := range alert.Notifications {
			outcome := out[string(record.Channel)]
			switch record.Status {
			case domain.NotificationSent:
				outcome.Sent++
			case domain.NotificationFailed:
				outcome.Failed++
			}
			out[string(record.Channel)] = outcome
		}
	}
	return out
}
