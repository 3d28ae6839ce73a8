package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.Server.Address != ":8480" {
		t.Fatalf("expected default address :8480, got %s", cfg.Server.Address)
	}
	if cfg.Recorder.MaxSamplesPerMetric != 10000 {
		t.Fatalf("expected 10000 max samples, got %d", cfg.Recorder.MaxSamplesPerMetric)
	}
	if cfg.Stability.BaselineAlpha != 0.1 {
		t.Fatalf("expected baseline alpha 0.1, got %v", cfg.Stability.BaselineAlpha)
	}
	if cfg.Stability.EvaluationWindow != 30*time.Minute {
		t.Fatalf("expected 30m window, got %s", cfg.Stability.EvaluationWindow)
	}
	if len(cfg.Fuses.Definitions) != 3 {
		t.Fatalf("expected 3 default fuses, got %d", len(cfg.Fuses.Definitions))
	}
	// Per-fuse recovery falls back to the controller default.
	for _, def := range cfg.Fuses.Definitions {
		if def.RecoveryTime != cfg.Fuses.DefaultRecoveryTime {
			t.Fatalf("fuse %s: expected default recovery backfilled, got %s", def.ID, def.RecoveryTime)
		}
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.yaml")
	doc := `
server:
  address: ":9999"
recorder:
  collectionInterval: 1s
stability:
  baselineAlpha: 0.25
fuses:
  checkInterval: 2s
  definitions:
    - id: swap_pressure
      resource: memory
      threshold: 80
      sustainDuration: 45s
      autoRecovery: true
      actions: [log_alert]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Fatalf("expected overridden address, got %s", cfg.Server.Address)
	}
	if cfg.Recorder.CollectionInterval != time.Second {
		t.Fatalf("expected 1s collection interval, got %s", cfg.Recorder.CollectionInterval)
	}
	if cfg.Stability.BaselineAlpha != 0.25 {
		t.Fatalf("expected alpha 0.25, got %v", cfg.Stability.BaselineAlpha)
	}
	if len(cfg.Fuses.Definitions) != 1 {
		t.Fatalf("expected the file's fuse list to replace defaults, got %d", len(cfg.Fuses.Definitions))
	}
	def := cfg.Fuses.Definitions[0]
	if def.ID != "swap_pressure" || def.SustainDuration != 45*time.Second {
		t.Fatalf("unexpected fuse definition: %+v", def)
	}
	// Unset stability thresholds backfill from defaults.
	if cfg.Stability.StabilityThresholds.HighlyStable != 0.95 {
		t.Fatalf("expected backfilled thresholds, got %+v", cfg.Stability.StabilityThresholds)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config path")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIRADOR_GUARD_SERVER_ADDRESS", ":7000")
	t.Setenv("MIRADOR_GUARD_LOG_LEVEL", "debug")
	t.Setenv("MIRADOR_GUARD_CACHE_ENABLED", "true")
	t.Setenv("MIRADOR_GUARD_CACHE_ADDR", "localhost:6379")
	t.Setenv("MIRADOR_GUARD_CACHE_STATUS_TTL", "45s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Fatalf("expected env address, got %s", cfg.Server.Address)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %s", cfg.Logging.Level)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "localhost:6379" {
		t.Fatalf("expected cache env overrides, got %+v", cfg.Cache)
	}
	if cfg.Cache.StatusTTL != 45*time.Second {
		t.Fatalf("expected 45s status ttl, got %s", cfg.Cache.StatusTTL)
	}
}
