package rules

import (
	"testing"
	"time"

	"polyalert/internal/domain"
)

func testRule(id, metric string, languages ...string) domain.AlertRule {
	value := 100.0
	return domain.AlertRule{
		ID:        id,
		Name:      id,
		Metric:    metric,
		Condition: domain.Condition{Operator: domain.OperatorGT},
		Threshold: domain.Threshold{Fixed: &value},
		Languages: languages,
		Severity:  domain.SeverityMedium,
		Cooldown:  10 * time.Minute,
		Active:    true,
	}
}

func TestFindApplicableFiltersMetricLanguageAndActive(t *testing.T) {
	t.Parallel()

	inactive := testRule("r3", "error_rate", "en")
	inactive.Active = false
	registry := NewRegistry([]domain.AlertRule{
		testRule("r1", "error_rate", "en", "fr"),
		testRule("r2", "api_response_time", "en"),
		inactive,
	})

	matched := registry.FindApplicable("error_rate", "fr")
	if len(matched) != 1 || matched[0].ID != "r1" {
		t.Fatalf("unexpected matches: %+v", matched)
	}
	if got := registry.FindApplicable("error_rate", "es"); len(got) != 0 {
		t.Fatalf("expected no matches for unscoped language, got %+v", got)
	}
}

func TestCooldownIsPerRuleAndLanguage(t *testing.T) {
	t.Parallel()

	rule := testRule("r1", "error_rate", "en", "fr")
	registry := NewRegistry([]domain.AlertRule{rule})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	registry.MarkTriggered(rule.ID, "en", now)
	if !registry.InCooldown(rule, "en", now.Add(5*time.Minute)) {
		t.Fatalf("expected cooldown for en within window")
	}
	if registry.InCooldown(rule, "fr", now.Add(5*time.Minute)) {
		t.Fatalf("expected fr to be unaffected by en trigger")
	}
	if registry.InCooldown(rule, "en", now.Add(10*time.Minute)) {
		t.Fatalf("expected cooldown to expire at its boundary")
	}
}

func TestReplaceDropsRemovedRuleBookkeeping(t *testing.T) {
	t.Parallel()

	registry := NewRegistry([]domain.AlertRule{testRule("r1", "error_rate", "en")})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	registry.MarkTriggered("r1", "en", now)
	if got := registry.TriggerCount("r1"); got != 1 {
		t.Fatalf("expected trigger count 1, got %d", got)
	}

	registry.Replace([]domain.AlertRule{testRule("r2", "lcp", "en")})
	if got := registry.TriggerCount("r1"); got != 0 {
		t.Fatalf("expected removed rule bookkeeping dropped, got %d", got)
	}
	if _, ok := registry.Get("r1"); ok {
		t.Fatalf("expected r1 removed")
	}
	if _, ok := registry.Get("r2"); !ok {
		t.Fatalf("expected r2 present")
	}
}
