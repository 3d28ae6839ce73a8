package models

// MetricSummary describes one performance metric over a window.
type MetricSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Stdev  float64 `json:"stdev"`
	Latest float64 `json:"latest"`
	Unit   string  `json:"unit"`
}

// QualitySummary describes one quality metric over a window, normalized to [0,1].
type QualitySummary struct {
	Count       int     `json:"count"`
	MeanScore   float64 `json:"mean_score"`
	MinScore    float64 `json:"min_score"`
	MaxScore    float64 `json:"max_score"`
	LatestScore float64 `json:"latest_score"`
}

// MetricsSummary is the windowed view served by the read API.
type MetricsSummary struct {
	WindowSeconds      float64                   `json:"window_seconds"`
	Performance        map[string]MetricSummary  `json:"performance_metrics"`
	Quality            map[string]QualitySummary `json:"quality_metrics"`
	PerformancePoints  int                       `json:"total_performance_points"`
	QualityPoints      int                       `json:"total_quality_points"`
}
