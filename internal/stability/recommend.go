package stability

import (
	"fmt"
	"sort"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// buildRecommendations renders deterministic guidance from the evaluation
// outcome. This is presentation only; nothing here feeds back into scoring.
func buildRecommendations(component string, level models.StabilityLevel, anomalies []models.Anomaly, trends map[string]models.Trend) []string {
	recommendations := make([]string, 0, 4)

	switch level {
	case models.StabilityCritical:
		recommendations = append(recommendations,
			fmt.Sprintf("CRITICAL: component %s requires immediate attention", component),
			"Consider restarting the component or checking for resource issues",
			"Review recent changes that might have affected stability")
	case models.StabilityUnstable:
		recommendations = append(recommendations,
			fmt.Sprintf("Component %s shows instability", component),
			"Monitor closely and consider preventive measures",
			"Check for resource constraints or configuration issues")
	case models.StabilityModerate:
		recommendations = append(recommendations,
			fmt.Sprintf("Component %s stability is moderate", component),
			"Consider optimization to improve stability")
	}

	if len(anomalies) > 0 {
		highSeverity := 0
		for _, a := range anomalies {
			if a.Severity == models.SeverityHigh {
				highSeverity++
			}
		}
		if highSeverity > 0 {
			recommendations = append(recommendations,
				fmt.Sprintf("High-severity anomalies detected in %d metrics", highSeverity),
				"Investigate root cause of anomalous behavior")
		}
		recommendations = append(recommendations, fmt.Sprintf("Total anomalies detected: %d", len(anomalies)))
	}

	names := make([]string, 0, len(trends))
	for name := range trends {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		trend := trends[name]
		if trend.Strength <= 0.5 {
			continue
		}
		switch trend.Direction {
		case models.TrendIncreasing:
			recommendations = append(recommendations,
				fmt.Sprintf("Increasing trend detected in %s - monitor for potential issues", name))
		case models.TrendDecreasing:
			recommendations = append(recommendations,
				fmt.Sprintf("Decreasing trend detected in %s - investigate cause", name))
		}
	}

	if len(recommendations) == 0 && level >= models.StabilityStable {
		recommendations = append(recommendations,
			fmt.Sprintf("Component %s is operating stably", component),
			"Continue current monitoring practices")
	}

	return recommendations
}

func appendUnique(target []string, values ...string) []string {
	for _, value := range values {
		exists := false
		for _, existing := range target {
			if existing == value {
				exists = true
				break
			}
		}
		if !exists {
			target = append(target, value)
		}
	}
	return target
}
