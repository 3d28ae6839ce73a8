package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/models"
	"github.com/miradorstack/mirador-guard/internal/recorder"
	"github.com/miradorstack/mirador-guard/internal/snapshot"
	"github.com/miradorstack/mirador-guard/internal/stability"
)

func TestRestoreHistorySeedsEvaluator(t *testing.T) {
	snapshots, err := snapshot.NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	now := time.Now().UTC()
	saved := map[string][]models.Sample{}
	for i := 0; i < 12; i++ {
		saved["cpu_usage"] = append(saved["cpu_usage"], models.Sample{
			Timestamp:  now.Add(time.Duration(i) * time.Second),
			Component:  "system",
			MetricName: "cpu_usage",
			Value:      40,
			Unit:       "percent",
		})
	}
	if err := snapshots.SavePerformance(saved); err != nil {
		t.Fatalf("SavePerformance() error = %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	store := recorder.NewStore(cfg.Recorder.MaxSamplesPerMetric)
	evaluator := stability.NewEvaluator(cfg.Stability, nil, nil)

	restoreHistory(store, evaluator, snapshots, slog.Default())

	restored := store.PerformanceSince(time.Time{})
	if got := len(restored["cpu_usage"]); got != 12 {
		t.Fatalf("expected 12 restored samples in store, got %d", got)
	}

	view, ok := evaluator.ComponentStability("system")
	if !ok {
		t.Fatalf("expected evaluator history for system after restore")
	}
	if view.MetricsCount != 12 {
		t.Fatalf("expected 12 evaluator metrics after restore, got %d", view.MetricsCount)
	}
}
