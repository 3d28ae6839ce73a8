package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/recorder"
	"github.com/miradorstack/mirador-guard/internal/stability"
)

func testSchedulerConfig() config.Config {
	cfg, _ := config.Load("")
	cfg.Stability.EvaluationInterval = 10 * time.Millisecond
	cfg.Fuses.CheckInterval = 10 * time.Millisecond
	cfg.Recorder.CollectionInterval = 10 * time.Millisecond
	return *cfg
}

func TestSchedulerStartStop(t *testing.T) {
	cfg := testSchedulerConfig()
	evaluator := stability.NewEvaluator(cfg.Stability, nil, nil)

	scheduler := NewScheduler(cfg, Options{Evaluator: evaluator}, nil)
	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := scheduler.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSchedulerDoubleStartFails(t *testing.T) {
	cfg := testSchedulerConfig()
	scheduler := NewScheduler(cfg, Options{Evaluator: stability.NewEvaluator(cfg.Stability, nil, nil)}, nil)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer scheduler.Stop()

	if err := scheduler.Start(context.Background()); err == nil {
		t.Fatalf("expected error on double start")
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	cfg := testSchedulerConfig()
	scheduler := NewScheduler(cfg, Options{}, nil)
	if err := scheduler.Stop(); err != nil {
		t.Fatalf("stop without start must be a no-op: %v", err)
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	cfg := testSchedulerConfig()
	rec := recorder.NewRecorder(nil, recorder.NewStore(100), cfg.Recorder)
	evaluator := stability.NewEvaluator(cfg.Stability, nil, nil)
	rec.SetObserver(evaluator)

	scheduler := NewScheduler(cfg, Options{Recorder: rec, Evaluator: evaluator}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	cancel()
	// Stop must return promptly once the context is already cancelled.
	done := make(chan error, 1)
	go func() { done <- scheduler.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stop after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return after context cancel")
	}
}
