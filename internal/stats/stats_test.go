package stats

import (
	"math"
	"testing"
	"time"

	"polyalert/internal/domain"
)

type fakeSource struct {
	active  []domain.Alert
	history []domain.Alert
}

func (f *fakeSource) ListActive() []domain.Alert { return f.active }

func (f *fakeSource) History(int) []domain.Alert { return f.history }

func closedAlert(rule, language string, severity domain.Severity, created time.Time, resolveAfter time.Duration) domain.Alert {
	resolved := created.Add(resolveAfter)
	return domain.Alert{
		ID:       rule + "_" + language + "_" + created.Format("150405"),
		RuleID:   rule,
		RuleName: rule,
		Language: language,
		Severity: severity,
		Status:   domain.AlertStatusResolved,
		Created:  created,
		Resolved: &resolved,
	}
}

func TestBuildCountsAndMTTR(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{
		active: []domain.Alert{
			{ID: "a1", RuleName: "r1", Language: "fr", Severity: domain.SeverityHigh, Created: now},
			{ID: "a2", RuleName: "r1", Language: "fr", Severity: domain.SeverityLow, Created: now},
			{ID: "a3", RuleName: "r2", Language: "de", Severity: domain.SeverityHigh, Created: now},
		},
		history: []domain.Alert{
			closedAlert("r1", "fr", domain.SeverityHigh, now.Add(-2*time.Hour), 10*time.Minute),
			closedAlert("r1", "de", domain.SeverityHigh, now.Add(-3*time.Hour), 30*time.Minute),
		},
	}

	report := Build(source, now)
	if report.ActiveAlerts != 3 {
		t.Fatalf("active = %d, want 3", report.ActiveAlerts)
	}
	if report.AlertsByLanguage["fr"] != 2 || report.AlertsByLanguage["de"] != 1 {
		t.Fatalf("by language = %v", report.AlertsByLanguage)
	}
	if report.AlertsBySeverity["high"] != 2 || report.AlertsBySeverity["low"] != 1 {
		t.Fatalf("by severity = %v", report.AlertsBySeverity)
	}
	if math.Abs(report.MeanTimeToResolveMin-20) > 1e-9 {
		t.Fatalf("mttr = %v, want 20 minutes", report.MeanTimeToResolveMin)
	}
}

func TestTopAlertsRankingCappedAtFive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{}
	rules := []string{"r1", "r2", "r3", "r4", "r5", "r6"}
	for i, rule := range rules {
		for j := 0; j <= i; j++ {
			source.history = append(source.history,
				closedAlert(rule, "fr", domain.SeverityLow, now.Add(-time.Duration(j)*time.Minute), time.Minute))
		}
	}

	report := Build(source, now)
	if len(report.TopAlerts) != 5 {
		t.Fatalf("top alerts length = %d, want 5", len(report.TopAlerts))
	}
	if report.TopAlerts[0].Rule != "r6" || report.TopAlerts[0].Count != 6 {
		t.Fatalf("top entry = %+v, want r6/6", report.TopAlerts[0])
	}
	// r1 with a single alert falls off the ranking.
	for _, entry := range report.TopAlerts {
		if entry.Rule == "r1" {
			t.Fatalf("r1 must be cut from the top-5")
		}
	}
}

func TestRecentTrend(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{
		history: []domain.Alert{
			// Previous 24h window: 2 alerts.
			closedAlert("r1", "fr", domain.SeverityLow, now.Add(-30*time.Hour), time.Minute),
			closedAlert("r1", "de", domain.SeverityLow, now.Add(-40*time.Hour), time.Minute),
			// Last 24h window: 3 alerts.
			closedAlert("r1", "fr", domain.SeverityLow, now.Add(-2*time.Hour), time.Minute),
			closedAlert("r1", "de", domain.SeverityLow, now.Add(-5*time.Hour), time.Minute),
		},
		active: []domain.Alert{
			{ID: "a1", RuleName: "r1", Language: "nl", Created: now.Add(-time.Hour)},
		},
	}

	report := Build(source, now)
	if math.Abs(report.RecentTrendPercent-50) > 1e-9 {
		t.Fatalf("trend = %v, want +50%%", report.RecentTrendPercent)
	}

	empty := Build(&fakeSource{}, now)
	if empty.RecentTrendPercent != 0 {
		t.Fatalf("empty trend = %v, want 0", empty.RecentTrendPercent)
	}
}

func TestChannelEffectiveness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	alert := closedAlert("r1", "fr", domain.SeverityHigh, now.Add(-time.Hour), time.Minute)
	alert.Notifications = []domain.NotificationRecord{
		{Channel: domain.ChannelEmail, Status: domain.NotificationSent},
		{Channel: domain.ChannelEmail, Status: domain.NotificationFailed},
		{Channel: domain.ChannelChat, Status: domain.NotificationSent},
	}
	report := Build(&fakeSource{history: []domain.Alert{alert}}, now)

	email := report.ChannelEffectiveness["email"]
	if email.Sent != 1 || email.Failed != 1 {
		t.Fatalf("email outcome = %+v", email)
	}
	chat := report.ChannelEffectiveness["chat"]
	if chat.Sent != 1 || chat.Failed != 0 {
		t.Fatalf("chat outcome = %+v", chat)
	}
}
