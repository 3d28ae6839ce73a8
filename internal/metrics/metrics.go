package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	samplesRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_guard",
			Name:      "samples_recorded_total",
			Help:      "Total number of samples recorded, partitioned by kind.",
		},
		[]string{"kind"},
	)

	thresholdCrossingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_guard",
			Name:      "threshold_crossings_total",
			Help:      "Static threshold crossings observed on record, partitioned by level.",
		},
		[]string{"level"},
	)

	anomaliesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_guard",
			Name:      "anomalies_detected_total",
			Help:      "Anomalies flagged by stability evaluation, partitioned by severity.",
		},
		[]string{"severity"},
	)

	fuseTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_guard",
			Name:      "fuse_triggers_total",
			Help:      "Fuse trips, partitioned by fuse id and severity.",
		},
		[]string{"fuse", "severity"},
	)

	evaluationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_guard",
			Name:      "evaluation_seconds",
			Help:      "Stability evaluation cycle latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	actionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_guard",
			Name:      "action_failures_total",
			Help:      "Mitigation action failures, partitioned by action name.",
		},
		[]string{"action"},
	)
)

// Register attaches mirador-guard collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		samplesRecordedTotal,
		thresholdCrossingsTotal,
		anomaliesDetectedTotal,
		fuseTriggersTotal,
		evaluationSeconds,
		actionFailuresTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveSample counts one recorded sample of the given kind (performance/quality).
func ObserveSample(kind string) {
	samplesRecordedTotal.WithLabelValues(kind).Inc()
}

// ObserveThresholdCrossing counts a warning or critical limit crossing.
func ObserveThresholdCrossing(level string) {
	thresholdCrossingsTotal.WithLabelValues(level).Inc()
}

// ObserveAnomaly counts one flagged anomaly.
func ObserveAnomaly(severity string) {
	anomaliesDetectedTotal.WithLabelValues(severity).Inc()
}

// ObserveFuseTrigger counts one fuse trip.
func ObserveFuseTrigger(fuseID, severity string) {
	fuseTriggersTotal.WithLabelValues(fuseID, severity).Inc()
}

// ObserveEvaluation records one evaluation cycle duration.
func ObserveEvaluation(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	evaluationSeconds.Observe(duration.Seconds())
}

// ObserveActionFailure counts one failed mitigation action.
func ObserveActionFailure(action string) {
	actionFailuresTotal.WithLabelValues(action).Inc()
}
