package stability

import (
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/models"
)

func testStabilityConfig() config.StabilityConfig {
	return config.StabilityConfig{
		EvaluationInterval:     time.Minute,
		EvaluationWindow:       30 * time.Minute,
		BaselineAlpha:          0.1,
		MaxMetricsPerComponent: 1000,
		StabilityThresholds: config.StabilityThresholds{
			HighlyStable: 0.95,
			Stable:       0.85,
			Moderate:     0.70,
			Unstable:     0.50,
		},
		DeviationThresholds: config.DeviationThresholds{
			Low:      0.05,
			Medium:   0.15,
			High:     0.30,
			Critical: 0.50,
		},
		Anomaly: config.AnomalyConfig{Enabled: true, Sensitivity: 2.0, MinSamples: 10},
		Trend:   config.TrendConfig{Enabled: true, MinSamples: 5, SlopeEpsilon: 0.001},
	}
}

func observe(e *Evaluator, component, metric string, value float64) {
	e.Observe(models.Sample{
		Timestamp:  time.Now().UTC(),
		Component:  component,
		MetricName: metric,
		Value:      value,
	})
}

func TestScoreDeviationBuckets(t *testing.T) {
	e := NewEvaluator(testStabilityConfig(), nil, nil)
	cases := []struct {
		deviation float64
		want      float64
	}{
		{0, 1.0},
		{0.05, 1.0},
		{0.0501, 0.8},
		{0.15, 0.8},
		{0.16, 0.6},
		{0.30, 0.6},
		{0.31, 0.3},
		{0.50, 0.3},
		{0.51, 0.1},
		{3.0, 0.1},
	}
	for _, tc := range cases {
		if got := e.scoreDeviation(tc.deviation); got != tc.want {
			t.Fatalf("deviation %v: expected score %v, got %v", tc.deviation, tc.want, got)
		}
	}
}

func TestObserveBoundsComponentHistory(t *testing.T) {
	cfg := testStabilityConfig()
	cfg.MaxMetricsPerComponent = 5
	e := NewEvaluator(cfg, nil, nil)

	for i := 0; i < 12; i++ {
		observe(e, "api", "latency_ms", 100)
	}

	e.mu.RLock()
	retained := len(e.history["api"])
	e.mu.RUnlock()
	if retained != 5 {
		t.Fatalf("expected history bounded at 5, got %d", retained)
	}
}

func TestObserveZeroBaselineTakesSampleAtFaceValue(t *testing.T) {
	e := NewEvaluator(testStabilityConfig(), nil, nil)

	// First cpu reading is 0 with gopsutil's non-blocking call, so the
	// baseline seeds at zero. The next real reading must not be punished
	// as a full deviation.
	observe(e, "system", "cpu_usage", 0)
	observe(e, "system", "cpu_usage", 42)

	e.mu.RLock()
	entries := e.history["system"]
	e.mu.RUnlock()
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	last := entries[1]
	if last.Deviation != 0 {
		t.Fatalf("expected zero deviation against zero baseline, got %v", last.Deviation)
	}
	if last.StabilityScore != 1.0 {
		t.Fatalf("expected stability score 1.0 against zero baseline, got %v", last.StabilityScore)
	}
}

func TestEvaluateRequiresMinimumSamples(t *testing.T) {
	e := NewEvaluator(testStabilityConfig(), nil, nil)
	observe(e, "api", "latency_ms", 100)
	observe(e, "api", "latency_ms", 100)

	if _, err := e.Evaluate("api"); err == nil {
		t.Fatalf("expected error with fewer than 3 samples in window")
	}
}

func TestEvaluateStableComponent(t *testing.T) {
	e := NewEvaluator(testStabilityConfig(), nil, nil)
	for i := 0; i < 12; i++ {
		observe(e, "api", "latency_ms", 100)
	}

	report, err := e.Evaluate("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OverallStability != models.StabilityHighlyStable {
		t.Fatalf("expected highly_stable, got %s", report.OverallStability)
	}
	if report.StabilityScore != 1.0 {
		t.Fatalf("expected stability score 1.0, got %v", report.StabilityScore)
	}
	// Constant signal: zero stdev must not produce anomalies.
	if len(report.Anomalies) != 0 {
		t.Fatalf("expected no anomalies for constant signal, got %d", len(report.Anomalies))
	}
	if trend := report.Trends["latency_ms"]; trend.Direction != models.TrendStable {
		t.Fatalf("expected stable trend, got %s", trend.Direction)
	}
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "operating stably") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stable-operation recommendation, got %v", report.Recommendations)
	}
}

func TestEvaluateFlagsSingleOutlier(t *testing.T) {
	e := NewEvaluator(testStabilityConfig(), nil, nil)
	for i := 0; i < 11; i++ {
		observe(e, "api", "latency_ms", 100)
	}
	observe(e, "api", "latency_ms", 200)

	report, err := e.Evaluate("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %d", len(report.Anomalies))
	}
	anomaly := report.Anomalies[0]
	if anomaly.Value != 200 {
		t.Fatalf("expected the outlier value 200, got %v", anomaly.Value)
	}
	if anomaly.Severity != models.SeverityHigh {
		t.Fatalf("expected high severity for extreme z-score, got %s", anomaly.Severity)
	}
	if report.OverallStability != models.StabilityStable {
		t.Fatalf("expected stable overall with one outlier, got %s", report.OverallStability)
	}
}

func TestEvaluateAllSkipsSparseComponents(t *testing.T) {
	e := NewEvaluator(testStabilityConfig(), nil, nil)
	for i := 0; i < 6; i++ {
		observe(e, "api", "latency_ms", 100)
	}
	observe(e, "worker", "queue_depth", 5)

	reports := e.EvaluateAll()
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	if reports[0].Component != "api" {
		t.Fatalf("expected report for api, got %s", reports[0].Component)
	}
}

func TestComponentStability(t *testing.T) {
	e := NewEvaluator(testStabilityConfig(), nil, nil)
	if _, ok := e.ComponentStability("missing"); ok {
		t.Fatalf("expected no view for unknown component")
	}

	for i := 0; i < 12; i++ {
		observe(e, "api", "latency_ms", 100)
	}
	view, ok := e.ComponentStability("api")
	if !ok {
		t.Fatalf("expected view for api")
	}
	if view.Level != models.StabilityHighlyStable {
		t.Fatalf("expected highly_stable, got %s", view.Level)
	}
	if view.MetricsCount != 12 {
		t.Fatalf("expected 12 retained metrics, got %d", view.MetricsCount)
	}
}

func TestStabilityLevelOrdering(t *testing.T) {
	if !(models.StabilityCritical < models.StabilityUnstable) {
		t.Fatalf("critical must order below unstable")
	}
	if !(models.StabilityStable < models.StabilityHighlyStable) {
		t.Fatalf("stable must order below highly_stable")
	}
}
