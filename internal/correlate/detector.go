// Package correlate groups temporally close alerts into incident
// correlations using heuristic pattern matching.
package correlate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"polyalert/internal/domain"
)

const (
	// DefaultWindow is how far back co-occurring alerts are considered.
	DefaultWindow = 30 * time.Minute
	// DefaultMinAlerts is the minimum group size for an incident.
	DefaultMinAlerts = 3
	// DefaultMaxIncidents bounds retained correlations.
	DefaultMaxIncidents = 100
)

// Config tunes the detector heuristics.
// Params: grouping window, minimum group size, and retention caps.
// Returns: detector options; zero values select the defaults.
type Config struct {
	Window       time.Duration
	MinAlerts    int
	TimelineMax  int
	MaxIncidents int
}

// Detector watches alert openings and records incident correlations.
type Detector struct {
	mu        sync.RWMutex
	cfg       Config
	incidents map[string]domain.IncidentCorrelation
	order     []string
	seq       uint64
}

// NewDetector creates the detector.
// Params: heuristic config.
// Returns: ready detector.
func NewDetector(cfg Config) *Detector {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MinAlerts <= 0 {
		cfg.MinAlerts = DefaultMinAlerts
	}
	if cfg.MaxIncidents <= 0 {
		cfg.MaxIncidents = DefaultMaxIncidents
	}
	return &Detector{
		cfg:       cfg,
		incidents: make(map[string]domain.IncidentCorrelation),
	}
}

// Observe inspects one freshly opened alert against the currently
// active set. When enough alerts opened inside the window, a new
// incident correlation is recorded and returned.
// Params: new alert, all active alerts, and current time.
// Returns: the recorded correlation and true when one was detected.
func (d *Detector) Observe(alert domain.Alert, active []domain.Alert, now time.Time) (domain.IncidentCorrelation, bool) {
	group := []domain.Alert{alert}
	for _, other := range active {
		if other.ID == alert.ID {
			continue
		}
		if now.Sub(other.Created) < d.cfg.Window {
			group = append(group, other)
		}
	}
	if len(group) < d.cfg.MinAlerts {
		return domain.IncidentCorrelation{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	incident := domain.IncidentCorrelation{
		ID:         fmt.Sprintf("correlation_%d_%d", now.UnixMilli(), d.seq),
		Alerts:     cloneAlerts(group),
		Pattern:    detectPattern(group),
		Confidence: confidence(group),
		Impact:     assessImpact(group),
		Languages:  uniqueLanguages(group),
		Timeline:   buildTimeline(group, d.cfg.TimelineMax),
	}
	d.incidents[incident.ID] = incident
	d.order = append(d.order, incident.ID)
	for len(d.order) > d.cfg.MaxIncidents {
		delete(d.incidents, d.order[0])
		d.order = d.order[1:]
	}
	return incident, true
}

// List returns recorded correlations, oldest first.
func (d *Detector) List() []domain.IncidentCorrelation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.IncidentCorrelation, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.incidents[id])
	}
	return out
}

// detectPattern names the incident shape from the involved metrics.
// One metric is a spike; error rate plus latency is performance
// degradation; anything else is a multi-metric incident.
func detectPattern(alerts []domain.Alert) string {
	metrics := make(map[string]bool)
	for _, alert := range alerts {
		metrics[alert.Metric] = true
	}
	if len(metrics) == 1 {
		return alerts[0].Metric + "_spike"
	}
	if metrics["error_rate"] && metrics["api_response_time"] {
		return "performance_degradation"
	}
	return "multi_metric_incident"
}

// confidence scores the correlation by creation-time spread: under five
// minutes scores 90, under fifteen 75, anything wider 50.
func confidence(alerts []domain.Alert) int {
	earliest := alerts[0].Created
	latest := alerts[0].Created
	for _, alert := range alerts[1:] {
		if alert.Created.Before(earliest) {
			earliest = alert.Created
		}
		if alert.Created.After(latest) {
			latest = alert.Created
		}
	}
	spread := latest.Sub(earliest)
	switch {
	case spread < 5*time.Minute:
		return 90
	case spread < 15*time.Minute:
		return 75
	default:
		return 50
	}
}

// assessImpact maps distinct language count to blast radius: five or
// more languages is global, three or four regional, fewer localized.
func assessImpact(alerts []domain.Alert) domain.ImpactScope {
	languages := make(map[string]bool)
	for _, alert := range alerts {
		languages[alert.Language] = true
	}
	switch {
	case len(languages) >= 5:
		return domain.ImpactGlobal
	case len(languages) >= 3:
		return domain.ImpactRegional
	default:
		return domain.ImpactLocalized
	}
}

func uniqueLanguages(alerts []domain.Alert) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		if !seen[alert.Language] {
			seen[alert.Language] = true
			out = append(out, alert.Language)
		}
	}
	sort.Strings(out)
	return out
}

func buildTimeline(alerts []domain.Alert, max int) []domain.TimelineEntry {
	ordered := make([]domain.Alert, len(alerts))
	copy(ordered, alerts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Created.Before(ordered[j].Created) })
	if max > 0 && len(ordered) > max {
		ordered = ordered[len(ordered)-max:]
	}

	timeline := make([]domain.TimelineEntry, 0, len(ordered))
	for _, alert := range ordered {
		timeline = append(timeline, domain.TimelineEntry{
			Timestamp: alert.Created,
			Event:     "Alert triggered: " + alert.RuleName,
			AlertID:   alert.ID,
		})
	}
	return timeline
}

func cloneAlerts(alerts []domain.Alert) []domain.Alert {
	out := make([]domain.Alert, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, alert.Clone())
	}
	return out
}
