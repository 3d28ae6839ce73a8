package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/fuse"
	"github.com/miradorstack/mirador-guard/internal/recorder"
	"github.com/miradorstack/mirador-guard/internal/sampler"
	"github.com/miradorstack/mirador-guard/internal/services"
	"github.com/miradorstack/mirador-guard/internal/snapshot"
	"github.com/miradorstack/mirador-guard/internal/stability"
)

// stopTimeout bounds how long Stop waits for loops to drain.
const stopTimeout = 5 * time.Second

// Scheduler runs the periodic protection loops: resource collection,
// stability evaluation, fuse checks and snapshot autosave. Each loop runs in
// its own goroutine and stops cooperatively when the context is cancelled.
type Scheduler struct {
	cfg       config.Config
	logger    *slog.Logger
	recorder  *recorder.Recorder
	evaluator *stability.Evaluator
	fuses     *fuse.Controller
	sampler   *sampler.SystemSampler
	snapshots *snapshot.Store
	service   *services.GuardService

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Options collects the scheduler's collaborators. Sampler, snapshots and
// service are optional; loops that need a missing collaborator are skipped.
type Options struct {
	Recorder  *recorder.Recorder
	Evaluator *stability.Evaluator
	Fuses     *fuse.Controller
	Sampler   *sampler.SystemSampler
	Snapshots *snapshot.Store
	Service   *services.GuardService
}

// NewScheduler builds a Scheduler.
func NewScheduler(cfg config.Config, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:       cfg,
		logger:    logger,
		recorder:  opts.Recorder,
		evaluator: opts.Evaluator,
		fuses:     opts.Fuses,
		sampler:   opts.Sampler,
		snapshots: opts.Snapshots,
		service:   opts.Service,
	}
}

// Start launches the loops. Calling Start twice is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("monitor: scheduler already started")
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.sampler != nil && s.recorder != nil {
		s.launch(loopCtx, "collection", s.cfg.Recorder.CollectionInterval, s.collectTick)
	}
	if s.evaluator != nil {
		s.launch(loopCtx, "evaluation", s.cfg.Stability.EvaluationInterval, s.evaluateTick)
	}
	if s.fuses != nil {
		s.launch(loopCtx, "fuse-check", s.cfg.Fuses.CheckInterval, s.fuseTick)
	}
	if s.snapshots != nil && s.recorder != nil {
		s.launch(loopCtx, "autosave", s.cfg.Snapshot.AutoSaveInterval, s.autosaveTick)
	}
	return nil
}

// launch runs tick on its interval until the context is cancelled.
func (s *Scheduler) launch(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	if interval <= 0 {
		s.logger.Warn("loop disabled by non-positive interval", "loop", name)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("loop started", "loop", name, "interval", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("loop stopped", "loop", name)
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
}

// Stop cancels the loops and waits up to stopTimeout for them to drain.
// Returns an error when a loop failed to stop in time.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started || s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		return errors.New("monitor: loops did not stop within timeout")
	}
}

func (s *Scheduler) collectTick(_ context.Context) {
	if s.cfg.Recorder.CollectSystem {
		for _, sample := range s.sampler.Samples() {
			s.recorder.RecordMetric(sample.Component, sample.MetricName, sample.Value, sample.Unit, sample.Metadata)
		}
	}
	if s.cfg.Recorder.CollectProcess {
		for _, sample := range s.sampler.ProcessSamples() {
			s.recorder.RecordMetric(sample.Component, sample.MetricName, sample.Value, sample.Unit, sample.Metadata)
		}
	}
}

func (s *Scheduler) evaluateTick(ctx context.Context) {
	reports := s.evaluator.EvaluateAll()
	s.logger.Debug("evaluation cycle complete", "reports", len(reports))
	if s.service != nil {
		s.service.PublishStatus(ctx)
	}
}

func (s *Scheduler) fuseTick(ctx context.Context) {
	s.fuses.CheckAll(ctx)
}

func (s *Scheduler) autosaveTick(_ context.Context) {
	store := s.recorder.Store()
	if err := s.snapshots.SavePerformance(store.PerformanceSince(time.Time{})); err != nil {
		s.logger.Warn("performance autosave failed", "error", err)
	}
	if err := s.snapshots.SaveQuality(store.QualitySince(time.Time{})); err != nil {
		s.logger.Warn("quality autosave failed", "error", err)
	}
}
