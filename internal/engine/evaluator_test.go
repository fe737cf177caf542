package engine

import (
	"testing"
	"time"

	"polyalert/internal/domain"
	"polyalert/internal/rules"
	"polyalert/internal/threshold"
)

func fixedRule(id string, op domain.Operator, limit float64) domain.AlertRule {
	return domain.AlertRule{
		ID:     id,
		Name:   id,
		Metric: "error_rate",
		Condition: domain.Condition{
			Operator:      op,
			Window:        5 * time.Minute,
			MinDataPoints: 3,
			Aggregation:   domain.AggregationAvg,
		},
		Threshold: domain.Threshold{Fixed: &limit},
		Languages: []string{"all"},
		Severity:  domain.SeverityHigh,
		Cooldown:  10 * time.Minute,
		Active:    true,
	}
}

func TestEvaluateGreaterThan(t *testing.T) {
	t.Parallel()

	store := threshold.NewStore(threshold.DefaultWindowCap)
	reg := rules.NewRegistry(nil)
	ev := NewEvaluator(store, reg)
	rule := fixedRule("r1", domain.OperatorGT, 5)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if d := ev.Evaluate(rule, 4.9, "fr", now); d.Breach {
		t.Fatalf("value below threshold must not breach")
	}
	d := ev.Evaluate(rule, 5.1, "fr", now)
	if !d.Breach {
		t.Fatalf("value above threshold must breach")
	}
	if d.Threshold != 5 {
		t.Fatalf("decision threshold = %v, want 5", d.Threshold)
	}
}

func TestEvaluateCooldownSuppressesBreach(t *testing.T) {
	t.Parallel()

	store := threshold.NewStore(threshold.DefaultWindowCap)
	reg := rules.NewRegistry(nil)
	ev := NewEvaluator(store, reg)
	rule := fixedRule("r1", domain.OperatorGT, 5)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if d := ev.Evaluate(rule, 100, "fr", now); !d.Breach {
		t.Fatalf("first breach expected")
	}
	if d := ev.Evaluate(rule, 200, "fr", now.Add(time.Minute)); d.Breach {
		t.Fatalf("cooldown must suppress re-trigger regardless of value")
	}
	// Another language is an independent cooldown track.
	if d := ev.Evaluate(rule, 200, "de", now.Add(time.Minute)); !d.Breach {
		t.Fatalf("cooldown must not leak across languages")
	}
	if d := ev.Evaluate(rule, 200, "fr", now.Add(rule.Cooldown+time.Second)); !d.Breach {
		t.Fatalf("expected breach after cooldown expiry")
	}
}

func TestEvaluateChangePercent(t *testing.T) {
	t.Parallel()

	store := threshold.NewStore(threshold.DefaultWindowCap)
	reg := rules.NewRegistry(nil)
	ev := NewEvaluator(store, reg)
	rule := fixedRule("cp", domain.OperatorChangePercent, 50)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Too little history: never a breach.
	store.Record(rule.Metric, "fr", now.Add(-2*time.Minute), 100)
	if d := ev.Evaluate(rule, 500, "fr", now); d.Breach {
		t.Fatalf("breach without MinDataPoints history")
	}

	store.Record(rule.Metric, "fr", now.Add(-90*time.Second), 100)
	store.Record(rule.Metric, "fr", now.Add(-time.Minute), 100)
	store.Record(rule.Metric, "fr", now.Add(-time.Second), 160)
	// Baseline excludes the newest sample: avg(100,100,100) = 100.
	if d := ev.Evaluate(rule, 160, "fr", now); !d.Breach {
		t.Fatalf("60%% change over a 50%% threshold must breach")
	}
}

func TestEvaluateAnomaly(t *testing.T) {
	t.Parallel()

	store := threshold.NewStore(threshold.DefaultWindowCap)
	reg := rules.NewRegistry(nil)
	ev := NewEvaluator(store, reg)
	rule := fixedRule("an", domain.OperatorAnomaly, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 40; i++ {
		v := 100.0
		if i%2 == 0 {
			v = 110
		}
		store.Record(rule.Metric, "fr", now.Add(time.Duration(i)*time.Second), v)
	}
	// mean 105, stddev 5: 2 sigma band is [95, 115].
	if d := ev.Evaluate(rule, 112, "fr", now); d.Breach {
		t.Fatalf("value inside the sigma band must not breach")
	}
	if d := ev.Evaluate(rule, 130, "fr", now.Add(time.Hour)); !d.Breach {
		t.Fatalf("value outside the sigma band must breach")
	}
}

func TestShouldResolveHysteresis(t *testing.T) {
	t.Parallel()

	ev := NewEvaluator(threshold.NewStore(threshold.DefaultWindowCap), rules.NewRegistry(nil))

	gt := fixedRule("gt", domain.OperatorGT, 1000)
	if ev.ShouldResolve(gt, 950, 1000) {
		t.Fatalf("950 sits inside the band for threshold 1000")
	}
	if !ev.ShouldResolve(gt, 800, 1000) {
		t.Fatalf("800 is below 900 and must resolve")
	}

	lt := fixedRule("lt", domain.OperatorLT, 100)
	if ev.ShouldResolve(lt, 105, 100) {
		t.Fatalf("105 sits inside the band for threshold 100")
	}
	if !ev.ShouldResolve(lt, 120, 100) {
		t.Fatalf("120 is above 110 and must resolve")
	}

	an := fixedRule("an", domain.OperatorAnomaly, 2)
	if ev.ShouldResolve(an, 0, 2) {
		t.Fatalf("anomaly rules never auto-resolve")
	}
}

func TestWorseningTracksBreachDirection(t *testing.T) {
	t.Parallel()

	store := threshold.NewStore(threshold.DefaultWindowCap)
	ev := NewEvaluator(store, rules.NewRegistry(nil))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	gt := fixedRule("gt", domain.OperatorGT, 1000)
	alert := domain.Alert{Metric: gt.Metric, Language: "fr", CurrentValue: 1500, Threshold: 1000}

	if ev.Worsening(gt, alert) {
		t.Fatalf("no recorded history means no worsening")
	}
	store.Record(gt.Metric, "fr", now, 1400)
	if ev.Worsening(gt, alert) {
		t.Fatalf("1400 is closer to threshold than 1500")
	}
	store.Record(gt.Metric, "fr", now.Add(time.Minute), 1700)
	if !ev.Worsening(gt, alert) {
		t.Fatalf("1700 moved deeper past the threshold than 1500")
	}

	lt := fixedRule("lt", domain.OperatorLT, 100)
	ltAlert := domain.Alert{Metric: lt.Metric, Language: "de", CurrentValue: 80, Threshold: 100}
	store.Record(lt.Metric, "de", now, 60)
	if !ev.Worsening(lt, ltAlert) {
		t.Fatalf("60 is further below the threshold than 80")
	}
}
