package correlate

import (
	"testing"
	"time"

	"polyalert/internal/domain"
)

func alertAt(id, metric, language string, created time.Time) domain.Alert {
	return domain.Alert{
		ID:       id,
		RuleID:   "rule_" + metric,
		RuleName: "Rule " + metric,
		Metric:   metric,
		Language: language,
		Status:   domain.AlertStatusActive,
		Created:  created,
	}
}

func TestObserveBelowMinimumIsNoIncident(t *testing.T) {
	t.Parallel()

	d := NewDetector(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newAlert := alertAt("a1", "error_rate", "fr", now)
	active := []domain.Alert{
		newAlert,
		alertAt("a2", "error_rate", "de", now.Add(-2*time.Minute)),
	}
	if _, ok := d.Observe(newAlert, active, now); ok {
		t.Fatalf("two alerts must not form an incident")
	}
	if got := len(d.List()); got != 0 {
		t.Fatalf("incident list = %d, want 0", got)
	}
}

func TestObserveIgnoresAlertsOutsideWindow(t *testing.T) {
	t.Parallel()

	d := NewDetector(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newAlert := alertAt("a1", "error_rate", "fr", now)
	active := []domain.Alert{
		newAlert,
		alertAt("a2", "error_rate", "de", now.Add(-10*time.Minute)),
		alertAt("a3", "error_rate", "nl", now.Add(-45*time.Minute)),
	}
	if _, ok := d.Observe(newAlert, active, now); ok {
		t.Fatalf("stale alert outside the window must not count")
	}
}

func TestObserveSingleMetricSpike(t *testing.T) {
	t.Parallel()

	d := NewDetector(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newAlert := alertAt("a1", "error_rate", "fr", now)
	active := []domain.Alert{
		newAlert,
		alertAt("a2", "error_rate", "de", now.Add(-2*time.Minute)),
		alertAt("a3", "error_rate", "nl", now.Add(-4*time.Minute)),
	}
	incident, ok := d.Observe(newAlert, active, now)
	if !ok {
		t.Fatalf("three alerts inside the window must correlate")
	}
	if incident.Pattern != "error_rate_spike" {
		t.Fatalf("pattern = %q, want error_rate_spike", incident.Pattern)
	}
	if incident.Confidence != 90 {
		t.Fatalf("confidence = %d, want 90 for a sub-5-minute spread", incident.Confidence)
	}
	if incident.Impact != domain.ImpactRegional {
		t.Fatalf("impact = %q, want regional for three languages", incident.Impact)
	}
	if len(incident.Timeline) != 3 || !incident.Timeline[0].Timestamp.Before(incident.Timeline[2].Timestamp) {
		t.Fatalf("timeline must be chronological: %+v", incident.Timeline)
	}
	if len(d.List()) != 1 {
		t.Fatalf("incident must be recorded")
	}
}

func TestObservePerformanceDegradationPattern(t *testing.T) {
	t.Parallel()

	d := NewDetector(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newAlert := alertAt("a1", "error_rate", "fr", now)
	active := []domain.Alert{
		newAlert,
		alertAt("a2", "api_response_time", "fr", now.Add(-8*time.Minute)),
		alertAt("a3", "api_response_time", "de", now.Add(-12*time.Minute)),
	}
	incident, ok := d.Observe(newAlert, active, now)
	if !ok {
		t.Fatalf("expected incident")
	}
	if incident.Pattern != "performance_degradation" {
		t.Fatalf("pattern = %q, want performance_degradation", incident.Pattern)
	}
	if incident.Confidence != 75 {
		t.Fatalf("confidence = %d, want 75 for a sub-15-minute spread", incident.Confidence)
	}
	if incident.Impact != domain.ImpactLocalized {
		t.Fatalf("impact = %q, want localized for two languages", incident.Impact)
	}
}

func TestObserveMultiMetricIncidentWideSpread(t *testing.T) {
	t.Parallel()

	d := NewDetector(Config{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newAlert := alertAt("a1", "lcp", "fr", now)
	active := []domain.Alert{
		newAlert,
		alertAt("a2", "page_views", "de", now.Add(-20*time.Minute)),
		alertAt("a3", "translation_fallback_rate", "nl", now.Add(-25*time.Minute)),
		alertAt("a4", "error_rate", "es", now.Add(-28*time.Minute)),
		alertAt("a5", "error_rate", "it", now.Add(-29*time.Minute)),
	}
	incident, ok := d.Observe(newAlert, active, now)
	if !ok {
		t.Fatalf("expected incident")
	}
	if incident.Pattern != "multi_metric_incident" {
		t.Fatalf("pattern = %q", incident.Pattern)
	}
	if incident.Confidence != 50 {
		t.Fatalf("confidence = %d, want 50 for a wide spread", incident.Confidence)
	}
	if incident.Impact != domain.ImpactGlobal {
		t.Fatalf("impact = %q, want global for five languages", incident.Impact)
	}
	if len(incident.Languages) != 5 {
		t.Fatalf("languages = %v", incident.Languages)
	}
}

func TestIncidentRetentionCap(t *testing.T) {
	t.Parallel()

	d := NewDetector(Config{MaxIncidents: 2})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		newAlert := alertAt("a1", "error_rate", "fr", now)
		active := []domain.Alert{
			newAlert,
			alertAt("a2", "error_rate", "de", now.Add(-time.Minute)),
			alertAt("a3", "error_rate", "nl", now.Add(-2*time.Minute)),
		}
		if _, ok := d.Observe(newAlert, active, now); !ok {
			t.Fatalf("expected incident %d", i)
		}
	}
	if got := len(d.List()); got != 2 {
		t.Fatalf("retained incidents = %d, want 2", got)
	}
}
