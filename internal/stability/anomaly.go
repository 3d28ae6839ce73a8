package stability

import (
	"math"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// detectAnomalies flags samples whose z-score against their metric group's
// population mean exceeds the configured sensitivity. Groups smaller than
// minSamples are skipped, as are constant signals (zero stdev).
func detectAnomalies(groups map[string][]models.StabilityMetric, sensitivity float64, minSamples int) []models.Anomaly {
	anomalies := make([]models.Anomaly, 0)

	for name, group := range groups {
		if len(group) < minSamples {
			continue
		}

		mean := 0.0
		for _, m := range group {
			mean += m.Value
		}
		mean /= float64(len(group))

		variance := 0.0
		for _, m := range group {
			variance += (m.Value - mean) * (m.Value - mean)
		}
		variance /= float64(len(group))
		stdev := math.Sqrt(variance)
		if stdev == 0 {
			continue
		}

		for _, m := range group {
			zScore := math.Abs(m.Value-mean) / stdev
			if zScore <= sensitivity {
				continue
			}
			severity := models.SeverityMedium
			if zScore > sensitivity*1.5 {
				severity = models.SeverityHigh
			}
			anomalies = append(anomalies, models.Anomaly{
				Timestamp:  m.Timestamp,
				MetricName: name,
				Value:      m.Value,
				Expected:   mean,
				ZScore:     zScore,
				Severity:   severity,
			})
		}
	}

	return anomalies
}
