package stability

import (
	"math"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// fitTrends fits an ordinary least-squares line per metric group against the
// sample index rather than wall-clock time, keeping the slope insensitive to
// uneven sampling. Groups smaller than minSamples are skipped.
func fitTrends(groups map[string][]models.StabilityMetric, minSamples int, slopeEpsilon float64) map[string]models.Trend {
	trends := make(map[string]models.Trend)

	for name, group := range groups {
		if len(group) < minSamples {
			continue
		}

		n := float64(len(group))
		sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0
		for i, m := range group {
			x := float64(i)
			sumX += x
			sumY += m.Value
			sumXY += x * m.Value
			sumX2 += x * x
		}

		denom := n*sumX2 - sumX*sumX
		if denom == 0 {
			trends[name] = models.Trend{Direction: models.TrendStable, DataPoints: len(group)}
			continue
		}
		slope := (n*sumXY - sumX*sumY) / denom

		direction := models.TrendStable
		if math.Abs(slope) >= slopeEpsilon {
			if slope > 0 {
				direction = models.TrendIncreasing
			} else {
				direction = models.TrendDecreasing
			}
		}

		trends[name] = models.Trend{
			Direction:  direction,
			Slope:      slope,
			Strength:   math.Min(1, math.Abs(slope)*1000),
			DataPoints: len(group),
		}
	}

	return trends
}
