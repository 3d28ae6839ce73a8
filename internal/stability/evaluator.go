package stability

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/metrics"
	"github.com/miradorstack/mirador-guard/internal/models"
)

const maxReportsPerComponent = 50

// Evaluator maintains per-component stability histories and produces
// windowed stability reports. It implements recorder.Observer so every
// recorded sample is scored against its adaptive baseline on ingest.
type Evaluator struct {
	cfg     config.StabilityConfig
	tracker *BaselineTracker
	rules   *RuleEngine
	logger  *slog.Logger

	mu      sync.RWMutex
	history map[string][]models.StabilityMetric // component -> bounded ring, oldest first
	reports map[string][]models.StabilityReport
}

// NewEvaluator builds an Evaluator from configuration. The rule engine is
// optional; a nil engine contributes no extra recommendations.
func NewEvaluator(cfg config.StabilityConfig, rules *RuleEngine, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		cfg:     cfg,
		tracker: NewBaselineTracker(cfg.BaselineAlpha),
		rules:   rules,
		logger:  logger,
		history: make(map[string][]models.StabilityMetric),
		reports: make(map[string][]models.StabilityReport),
	}
}

// Observe scores one sample against the component baseline and appends the
// scored metric to the component history. Satisfies recorder.Observer.
func (e *Evaluator) Observe(sample models.Sample) {
	history := e.metricHistory(sample.Component, sample.MetricName)
	baseline := e.tracker.GetOrSeed(sample.Component, sample.MetricName, sample.Value, history)

	// A zero baseline carries no information yet, so the sample is taken
	// at face value rather than scored as a full deviation.
	deviation := 0.0
	if baseline != 0 {
		deviation = math.Abs(sample.Value-baseline) / math.Abs(baseline)
	}

	metric := models.StabilityMetric{
		Timestamp:      sample.Timestamp,
		Component:      sample.Component,
		MetricName:     sample.MetricName,
		Value:          sample.Value,
		Baseline:       baseline,
		Deviation:      deviation,
		StabilityScore: e.scoreDeviation(deviation),
	}

	e.mu.Lock()
	entries := append(e.history[sample.Component], metric)
	if max := e.cfg.MaxMetricsPerComponent; max > 0 && len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	e.history[sample.Component] = entries
	e.mu.Unlock()

	e.tracker.Update(sample.Component, sample.MetricName, sample.Value)
}

// scoreDeviation buckets relative deviation into a stability score.
func (e *Evaluator) scoreDeviation(deviation float64) float64 {
	t := e.cfg.DeviationThresholds
	switch {
	case deviation <= t.Low:
		return 1.0
	case deviation <= t.Medium:
		return 0.8
	case deviation <= t.High:
		return 0.6
	case deviation <= t.Critical:
		return 0.3
	default:
		return 0.1
	}
}

// Evaluate produces a stability report for one component over the configured
// evaluation window. Returns an error when the window holds too few samples
// to say anything meaningful.
func (e *Evaluator) Evaluate(component string) (*models.StabilityReport, error) {
	started := time.Now()
	cutoff := started.Add(-e.cfg.EvaluationWindow)

	e.mu.RLock()
	all := e.history[component]
	windowed := make([]models.StabilityMetric, 0, len(all))
	for _, m := range all {
		if !m.Timestamp.Before(cutoff) {
			windowed = append(windowed, m)
		}
	}
	e.mu.RUnlock()

	if len(windowed) < 3 {
		return nil, fmt.Errorf("stability: component %q has %d samples in window, need at least 3", component, len(windowed))
	}

	total := 0.0
	groups := make(map[string][]models.StabilityMetric)
	for _, m := range windowed {
		total += m.StabilityScore
		groups[m.MetricName] = append(groups[m.MetricName], m)
	}
	score := total / float64(len(windowed))
	level := e.levelForScore(score)

	var anomalies []models.Anomaly
	if e.cfg.Anomaly.Enabled {
		anomalies = detectAnomalies(groups, e.cfg.Anomaly.Sensitivity, e.cfg.Anomaly.MinSamples)
		for _, a := range anomalies {
			metrics.ObserveAnomaly(string(a.Severity))
		}
	}

	trends := map[string]models.Trend{}
	if e.cfg.Trend.Enabled {
		trends = fitTrends(groups, e.cfg.Trend.MinSamples, e.cfg.Trend.SlopeEpsilon)
	}

	recommendations := buildRecommendations(component, level, anomalies, trends)
	recommendations = appendUnique(recommendations, e.rules.Recommend(level, anomalies, trends)...)

	report := &models.StabilityReport{
		ReportID:         uuid.NewString(),
		Component:        component,
		EvaluationWindow: e.cfg.EvaluationWindow,
		OverallStability: level,
		StabilityScore:   score,
		Anomalies:        anomalies,
		Trends:           trends,
		Recommendations:  recommendations,
		CreatedAt:        started,
	}

	e.mu.Lock()
	kept := append(e.reports[component], *report)
	if len(kept) > maxReportsPerComponent {
		kept = kept[len(kept)-maxReportsPerComponent:]
	}
	e.reports[component] = kept
	e.mu.Unlock()

	metrics.ObserveEvaluation(time.Since(started))

	if level <= models.StabilityUnstable {
		e.logger.Warn("component stability degraded",
			"component", component,
			"level", level.String(),
			"score", score,
			"anomalies", len(anomalies))
	}
	return report, nil
}

// EvaluateAll evaluates every known component. A component with too little
// data is skipped without failing the rest.
func (e *Evaluator) EvaluateAll() []*models.StabilityReport {
	e.mu.RLock()
	components := make([]string, 0, len(e.history))
	for component := range e.history {
		components = append(components, component)
	}
	e.mu.RUnlock()
	sort.Strings(components)

	reports := make([]*models.StabilityReport, 0, len(components))
	for _, component := range components {
		report, err := e.Evaluate(component)
		if err != nil {
			e.logger.Debug("skipping component evaluation", "component", component, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// ComponentStability returns the current read-API view for one component,
// scored over its most recent metrics. ok is false for unknown components.
func (e *Evaluator) ComponentStability(component string) (models.ComponentStability, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entries := e.history[component]
	if len(entries) == 0 {
		return models.ComponentStability{}, false
	}

	recent := entries
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	total := 0.0
	for _, m := range recent {
		total += m.StabilityScore
	}
	score := total / float64(len(recent))

	return models.ComponentStability{
		Component:      component,
		Level:          e.levelForScore(score),
		StabilityScore: score,
		MetricsCount:   len(entries),
		LastUpdated:    entries[len(entries)-1].Timestamp,
	}, true
}

// Components lists every component with recorded stability history.
func (e *Evaluator) Components() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.history))
	for component := range e.history {
		out = append(out, component)
	}
	sort.Strings(out)
	return out
}

// Reports returns the retained reports for a component, oldest first.
func (e *Evaluator) Reports(component string) []models.StabilityReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	kept := e.reports[component]
	out := make([]models.StabilityReport, len(kept))
	copy(out, kept)
	return out
}

func (e *Evaluator) levelForScore(score float64) models.StabilityLevel {
	t := e.cfg.StabilityThresholds
	switch {
	case score >= t.HighlyStable:
		return models.StabilityHighlyStable
	case score >= t.Stable:
		return models.StabilityStable
	case score >= t.Moderate:
		return models.StabilityModerate
	case score >= t.Unstable:
		return models.StabilityUnstable
	default:
		return models.StabilityCritical
	}
}

// metricHistory extracts past values of one metric for baseline seeding.
func (e *Evaluator) metricHistory(component, metric string) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var values []float64
	for _, m := range e.history[component] {
		if m.MetricName == metric {
			values = append(values, m.Value)
		}
	}
	return values
}
