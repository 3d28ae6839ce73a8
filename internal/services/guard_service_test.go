package services

import (
	"context"
	"testing"
	"time"

	"github.com/miradorstack/mirador-guard/internal/cache"
	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/fuse"
	"github.com/miradorstack/mirador-guard/internal/models"
	"github.com/miradorstack/mirador-guard/internal/recorder"
	"github.com/miradorstack/mirador-guard/internal/stability"
)

type staticSource struct {
	value float64
}

func (s staticSource) Value(models.ResourceType) (float64, error) {
	return s.value, nil
}

func newTestService(t *testing.T, source fuse.ValueSource) (*GuardService, *recorder.Recorder, *fuse.Controller) {
	t.Helper()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	rec := recorder.NewRecorder(nil, recorder.NewStore(100), cfg.Recorder)
	evaluator := stability.NewEvaluator(cfg.Stability, nil, nil)
	rec.SetObserver(evaluator)

	registry := fuse.NewActionRegistry(fuse.RegistryOptions{}, nil)
	controller, err := fuse.NewController(config.FusesConfig{
		CheckInterval:       time.Second,
		DefaultRecoveryTime: time.Minute,
		ActionTimeout:       time.Second,
		Definitions: []models.FuseConfig{
			{ID: "memory_critical", Resource: models.ResourceMemory, Threshold: 90},
		},
	}, source, registry, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(controller.Stop)

	service := NewGuardService(nil, rec, evaluator, controller, cache.NewMemoryProvider(), time.Minute)
	return service, rec, controller
}

func TestComponentStabilityUnknown(t *testing.T) {
	service, _, _ := newTestService(t, staticSource{value: 10})
	if _, err := service.ComponentStability("nope"); err == nil {
		t.Fatalf("expected error for unknown component")
	}
}

func TestStabilityOverviewAfterRecording(t *testing.T) {
	service, rec, _ := newTestService(t, staticSource{value: 10})
	for i := 0; i < 12; i++ {
		rec.RecordMetric("api", "latency_ms", 100, "ms", nil)
	}

	overview := service.StabilityOverview()
	if len(overview) != 1 || overview[0].Component != "api" {
		t.Fatalf("unexpected overview: %+v", overview)
	}
	if overview[0].Level != models.StabilityHighlyStable {
		t.Fatalf("expected highly_stable, got %s", overview[0].Level)
	}

	view, err := service.ComponentStability("api")
	if err != nil {
		t.Fatalf("component stability: %v", err)
	}
	if view.MetricsCount != 12 {
		t.Fatalf("expected 12 metrics, got %d", view.MetricsCount)
	}
}

func TestPublishAndReadCachedStatus(t *testing.T) {
	service, rec, controller := newTestService(t, staticSource{value: 99})
	for i := 0; i < 6; i++ {
		rec.RecordMetric("api", "latency_ms", 100, "ms", nil)
	}
	controller.CheckAll(context.Background())

	ctx := context.Background()
	service.PublishStatus(ctx)

	doc, err := service.CachedStatus(ctx)
	if err != nil {
		t.Fatalf("cached status: %v", err)
	}
	if doc.Fuses.TriggeredFuses != 1 {
		t.Fatalf("expected one triggered fuse in status, got %+v", doc.Fuses)
	}
	if len(doc.Stability) != 1 {
		t.Fatalf("expected one stability entry, got %d", len(doc.Stability))
	}
	if len(doc.Patterns) != 1 || doc.Patterns[0].Resource != models.ResourceMemory {
		t.Fatalf("expected mined memory pattern, got %+v", doc.Patterns)
	}
}

func TestCachedStatusMissWithoutPublish(t *testing.T) {
	service, _, _ := newTestService(t, staticSource{value: 10})
	if _, err := service.CachedStatus(context.Background()); err == nil {
		t.Fatalf("expected cache miss before first publish")
	}
}

func TestFusesView(t *testing.T) {
	service, _, controller := newTestService(t, staticSource{value: 10})
	views := service.Fuses()
	if len(views) != 1 {
		t.Fatalf("expected one fuse view, got %d", len(views))
	}
	if views[0].Config.ID != "memory_critical" || views[0].State != models.FuseArmed {
		t.Fatalf("unexpected view: %+v", views[0])
	}

	if err := controller.Disable("memory_critical"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	views = service.Fuses()
	if views[0].State != models.FuseDisabled {
		t.Fatalf("expected disabled state, got %s", views[0].State)
	}
}

func TestMetricsSummaryWindow(t *testing.T) {
	service, rec, _ := newTestService(t, staticSource{value: 10})
	rec.RecordMetric("api", "latency_ms", 10, "ms", nil)
	rec.RecordQualityMetric("responses", "answer_quality", 8, 10, nil)

	summary := service.MetricsSummary(time.Hour)
	if summary.PerformancePoints != 1 || summary.QualityPoints != 1 {
		t.Fatalf("unexpected summary points: %+v", summary)
	}
}
