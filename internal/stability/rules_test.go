package stability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-guard/internal/models"
)

const testRulePack = `
rules:
  - id: critical-playbook
    match:
      level: critical
    recommendations:
      - "Page the on-call operator"
  - id: latency-growth
    match:
      metric: latency_ms
      trend: increasing
    recommendations:
      - "Check downstream dependencies for slowdowns"
`

func writeRulePack(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(testRulePack), 0o644); err != nil {
		t.Fatalf("write rule pack: %v", err)
	}
	return path
}

func TestRuleEngineMatchesLevel(t *testing.T) {
	engine, err := NewRuleEngine(writeRulePack(t), nil)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}

	got := engine.Recommend(models.StabilityCritical, nil, nil)
	if len(got) != 1 || got[0] != "Page the on-call operator" {
		t.Fatalf("expected critical playbook, got %v", got)
	}

	if got := engine.Recommend(models.StabilityStable, nil, nil); len(got) != 0 {
		t.Fatalf("expected no recommendations for stable level, got %v", got)
	}
}

func TestRuleEngineMatchesTrend(t *testing.T) {
	engine, err := NewRuleEngine(writeRulePack(t), nil)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}

	trends := map[string]models.Trend{
		"latency_ms": {Direction: models.TrendIncreasing, Strength: 0.9},
	}
	got := engine.Recommend(models.StabilityStable, nil, trends)
	if len(got) != 1 || got[0] != "Check downstream dependencies for slowdowns" {
		t.Fatalf("expected trend rule to fire, got %v", got)
	}
}

func TestRuleEngineMissingFileIsNil(t *testing.T) {
	engine, err := NewRuleEngine(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if engine != nil {
		t.Fatalf("expected nil engine for missing file")
	}
	if got := engine.Recommend(models.StabilityCritical, nil, nil); got != nil {
		t.Fatalf("nil engine must recommend nothing, got %v", got)
	}
}
