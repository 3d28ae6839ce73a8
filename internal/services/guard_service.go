package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-guard/internal/cache"
	"github.com/miradorstack/mirador-guard/internal/fuse"
	"github.com/miradorstack/mirador-guard/internal/models"
	"github.com/miradorstack/mirador-guard/internal/patterns"
	"github.com/miradorstack/mirador-guard/internal/recorder"
	"github.com/miradorstack/mirador-guard/internal/stability"
	"github.com/miradorstack/mirador-guard/internal/utils"
)

const statusCacheKey = "mirador-guard:status"

// GuardService is the read facade over the recorder, evaluator and fuse
// controller. The HTTP API talks only to this type.
type GuardService struct {
	logger     *slog.Logger
	recorder   *recorder.Recorder
	evaluator  *stability.Evaluator
	controller *fuse.Controller
	miner      *patterns.Miner
	cache      cache.Provider
	statusTTL  time.Duration
	latencies  *utils.LatencyTracker
}

// NewGuardService constructs the service facade. The cache provider may be
// a NoopProvider when caching is disabled.
func NewGuardService(logger *slog.Logger, rec *recorder.Recorder, eval *stability.Evaluator, ctrl *fuse.Controller, provider cache.Provider, statusTTL time.Duration) *GuardService {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &GuardService{
		logger:     logger,
		recorder:   rec,
		evaluator:  eval,
		controller: ctrl,
		miner:      patterns.NewMiner(logger),
		cache:      provider,
		statusTTL:  statusTTL,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// ComponentStability returns the current stability view for one component.
func (s *GuardService) ComponentStability(component string) (models.ComponentStability, error) {
	start := time.Now()
	view, ok := s.evaluator.ComponentStability(component)
	s.observeLatency(time.Since(start))
	if !ok {
		return models.ComponentStability{}, fmt.Errorf("component %q has no recorded metrics", component)
	}
	return view, nil
}

// StabilityOverview returns the current view for every known component.
func (s *GuardService) StabilityOverview() []models.ComponentStability {
	components := s.evaluator.Components()
	out := make([]models.ComponentStability, 0, len(components))
	for _, component := range components {
		if view, ok := s.evaluator.ComponentStability(component); ok {
			out = append(out, view)
		}
	}
	return out
}

// Reports returns retained stability reports for a component, oldest first.
func (s *GuardService) Reports(component string) []models.StabilityReport {
	return s.evaluator.Reports(component)
}

// MetricsSummary aggregates recorded metrics over the given window.
func (s *GuardService) MetricsSummary(window time.Duration) models.MetricsSummary {
	start := time.Now()
	summary := s.recorder.Summary(window)
	s.observeLatency(time.Since(start))
	return summary
}

// FuseStatus reports aggregate fuse controller state.
func (s *GuardService) FuseStatus() models.FuseStatus {
	return s.controller.Status()
}

// Fuses lists registered fuse definitions with their current state.
func (s *GuardService) Fuses() []FuseView {
	defs := s.controller.Fuses()
	out := make([]FuseView, 0, len(defs))
	for _, def := range defs {
		state, _ := s.controller.State(def.ID)
		out = append(out, FuseView{Config: def, State: state})
	}
	return out
}

// FuseView pairs a fuse definition with its live state.
type FuseView struct {
	Config models.FuseConfig `json:"config"`
	State  models.FuseState  `json:"state"`
}

// TripPatterns mines the retained trigger history into per-resource
// patterns.
func (s *GuardService) TripPatterns() []models.TripPattern {
	return s.miner.Mine(s.controller.Events())
}

// TriggerEvents returns the retained fuse trigger events, oldest first.
func (s *GuardService) TriggerEvents() []models.FuseTriggerEvent {
	return s.controller.Events()
}

// StatusDocument is the combined status payload published to the cache and
// served by the status endpoint.
type StatusDocument struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Stability   []models.ComponentStability `json:"stability"`
	Fuses       models.FuseStatus           `json:"fuses"`
	Patterns    []models.TripPattern        `json:"patterns"`
}

// PublishStatus pushes the combined status document to the cache so other
// processes can read guard state without hitting the API. Failures are
// logged, never fatal.
func (s *GuardService) PublishStatus(ctx context.Context) {
	doc := StatusDocument{
		GeneratedAt: time.Now().UTC(),
		Stability:   s.StabilityOverview(),
		Fuses:       s.FuseStatus(),
		Patterns:    s.TripPatterns(),
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		s.logger.Warn("encode status document failed", "error", err)
		return
	}
	if err := s.cache.Set(ctx, statusCacheKey, payload, s.statusTTL); err != nil {
		s.logger.Warn("publish status to cache failed", "error", err)
	}
}

// CachedStatus reads the last published status document from the cache.
func (s *GuardService) CachedStatus(ctx context.Context) (*StatusDocument, error) {
	payload, err := s.cache.Get(ctx, statusCacheKey)
	if err != nil {
		return nil, err
	}
	var doc StatusDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode cached status: %w", err)
	}
	return &doc, nil
}

// LatencyP95 returns the current p95 read-path latency.
func (s *GuardService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *GuardService) observeLatency(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("read latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}
