package recorder

import (
	"log/slog"
	"math"
	"time"

	"github.com/miradorstack/mirador-guard/internal/config"
	"github.com/miradorstack/mirador-guard/internal/metrics"
	"github.com/miradorstack/mirador-guard/internal/models"
)

// Observer receives every recorded performance sample. The stability
// evaluator hangs off this hook so producers only ever talk to the Recorder.
type Observer interface {
	Observe(sample models.Sample)
}

// Recorder is the producer-facing ingestion surface: it appends samples to
// the bounded store, checks static limits, and fans out to the observer.
// Recording never blocks on I/O.
type Recorder struct {
	logger   *slog.Logger
	store    *Store
	limits   map[string]config.Limits
	minimums map[string]float64
	observer Observer
}

// NewRecorder constructs a Recorder around the given store.
func NewRecorder(logger *slog.Logger, store *Store, cfg config.RecorderConfig) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewStore(cfg.MaxSamplesPerMetric)
	}
	return &Recorder{
		logger:   logger,
		store:    store,
		limits:   cfg.Limits,
		minimums: cfg.QualityMinimums,
	}
}

// SetObserver registers the downstream consumer of performance samples.
func (r *Recorder) SetObserver(observer Observer) {
	r.observer = observer
}

// Store exposes the underlying bounded store for readers.
func (r *Recorder) Store() *Store {
	return r.store
}

// RecordMetric records one performance observation.
func (r *Recorder) RecordMetric(component, name string, value float64, unit string, metadata map[string]any) {
	sample := models.Sample{
		Timestamp:  time.Now().UTC(),
		Component:  component,
		MetricName: name,
		Value:      value,
		Unit:       unit,
		Metadata:   metadata,
	}

	r.store.AppendPerformance(sample)
	metrics.ObserveSample("performance")
	r.checkLimits(sample)

	if r.observer != nil {
		r.observer.Observe(sample)
	}
}

// RecordQualityMetric records one quality observation scored out of maxScore.
func (r *Recorder) RecordQualityMetric(component, name string, score, maxScore float64, details map[string]any) {
	sample := models.QualitySample{
		Timestamp:  time.Now().UTC(),
		Component:  component,
		MetricName: name,
		Score:      score,
		MaxScore:   maxScore,
		Details:    details,
	}

	r.store.AppendQuality(sample)
	metrics.ObserveSample("quality")
	r.checkQuality(sample)
}

func (r *Recorder) checkLimits(sample models.Sample) {
	limits, ok := r.limits[sample.MetricName]
	if !ok {
		return
	}
	result := CheckLimits(sample.Value, limits)
	switch result.Level {
	case LevelCritical:
		metrics.ObserveThresholdCrossing(string(LevelCritical))
		r.logger.Error("critical threshold crossed",
			slog.String("component", sample.Component),
			slog.String("metric", sample.MetricName),
			slog.Float64("value", sample.Value),
			slog.Float64("limit", limits.Critical),
			slog.String("unit", sample.Unit))
	case LevelWarning:
		metrics.ObserveThresholdCrossing(string(LevelWarning))
		r.logger.Warn("warning threshold crossed",
			slog.String("component", sample.Component),
			slog.String("metric", sample.MetricName),
			slog.Float64("value", sample.Value),
			slog.Float64("limit", limits.Warning),
			slog.String("unit", sample.Unit))
	}
}

func (r *Recorder) checkQuality(sample models.QualitySample) {
	minimum, ok := r.minimums[sample.MetricName]
	if !ok {
		return
	}
	if normalized := sample.Normalized(); normalized < minimum {
		r.logger.Warn("quality below minimum",
			slog.String("component", sample.Component),
			slog.String("metric", sample.MetricName),
			slog.Float64("score", normalized),
			slog.Float64("minimum", minimum))
	}
}

// Summary aggregates retained samples within the lookback window.
func (r *Recorder) Summary(window time.Duration) models.MetricsSummary {
	cutoff := time.Now().UTC().Add(-window)

	performance := make(map[string]models.MetricSummary)
	performancePoints := 0
	for name, samples := range r.store.PerformanceSince(cutoff) {
		performancePoints += len(samples)
		performance[name] = summarizePerformance(samples)
	}

	quality := make(map[string]models.QualitySummary)
	qualityPoints := 0
	for name, samples := range r.store.QualitySince(cutoff) {
		qualityPoints += len(samples)
		quality[name] = summarizeQuality(samples)
	}

	return models.MetricsSummary{
		WindowSeconds:     window.Seconds(),
		Performance:       performance,
		Quality:           quality,
		PerformancePoints: performancePoints,
		QualityPoints:     qualityPoints,
	}
}

func summarizePerformance(samples []models.Sample) models.MetricSummary {
	summary := models.MetricSummary{Count: len(samples)}
	if len(samples) == 0 {
		return summary
	}

	summary.Unit = samples[0].Unit
	summary.Min = samples[0].Value
	summary.Max = samples[0].Value
	sum := 0.0
	for _, s := range samples {
		sum += s.Value
		if s.Value < summary.Min {
			summary.Min = s.Value
		}
		if s.Value > summary.Max {
			summary.Max = s.Value
		}
	}
	summary.Mean = sum / float64(len(samples))
	summary.Latest = samples[len(samples)-1].Value

	if len(samples) > 1 {
		variance := 0.0
		for _, s := range samples {
			variance += (s.Value - summary.Mean) * (s.Value - summary.Mean)
		}
		variance /= float64(len(samples) - 1)
		summary.Stdev = math.Sqrt(variance)
	}
	return summary
}

func summarizeQuality(samples []models.QualitySample) models.QualitySummary {
	summary := models.QualitySummary{Count: len(samples)}
	if len(samples) == 0 {
		return summary
	}

	first := samples[0].Normalized()
	summary.MinScore = first
	summary.MaxScore = first
	sum := 0.0
	for _, s := range samples {
		normalized := s.Normalized()
		sum += normalized
		if normalized < summary.MinScore {
			summary.MinScore = normalized
		}
		if normalized > summary.MaxScore {
			summary.MaxScore = normalized
		}
	}
	summary.MeanScore = sum / float64(len(samples))
	summary.LatestScore = samples[len(samples)-1].Normalized()
	return summary
}
