package patterns

import (
	"log/slog"
	"sort"
	"time"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// Miner mines simple frequency-based trip patterns from fuse trigger
// history. Patterns answer "which resource keeps tripping, how far over
// threshold, and how bad" for the read API.
type Miner struct {
	logger *slog.Logger
}

// NewMiner constructs a Miner.
func NewMiner(logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{logger: logger}
}

type resourceAggregate struct {
	count          int
	ratioSum       float64
	severityCounts map[models.Severity]int
	lastTriggered  time.Time
}

// Mine aggregates trigger events into one pattern per resource, sorted by
// trip count descending.
func (m *Miner) Mine(events []models.FuseTriggerEvent) []models.TripPattern {
	if len(events) == 0 {
		return nil
	}

	stats := make(map[models.ResourceType]*resourceAggregate)
	for _, event := range events {
		agg := stats[event.Resource]
		if agg == nil {
			agg = &resourceAggregate{severityCounts: make(map[models.Severity]int)}
			stats[event.Resource] = agg
		}
		agg.count++
		if event.Threshold > 0 {
			agg.ratioSum += event.TriggerValue / event.Threshold
		}
		agg.severityCounts[event.Severity]++
		if event.TriggeredAt.After(agg.lastTriggered) {
			agg.lastTriggered = event.TriggeredAt
		}
	}

	patterns := make([]models.TripPattern, 0, len(stats))
	for resource, agg := range stats {
		patterns = append(patterns, models.TripPattern{
			Resource:         resource,
			TripCount:        agg.count,
			AvgRatio:         agg.ratioSum / float64(agg.count),
			DominantSeverity: dominantSeverity(agg.severityCounts),
			LastTriggered:    agg.lastTriggered,
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].TripCount != patterns[j].TripCount {
			return patterns[i].TripCount > patterns[j].TripCount
		}
		return patterns[i].Resource < patterns[j].Resource
	})

	m.logger.Debug("mined trip patterns", "events", len(events), "patterns", len(patterns))
	return patterns
}

// dominantSeverity picks the most frequent severity, breaking ties toward
// the more severe level.
func dominantSeverity(counts map[models.Severity]int) models.Severity {
	order := []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow}
	best := models.SeverityLow
	bestCount := -1
	for _, severity := range order {
		if counts[severity] > bestCount {
			best = severity
			bestCount = counts[severity]
		}
	}
	return best
}
