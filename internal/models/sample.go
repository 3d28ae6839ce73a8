package models

import "time"

// Sample is one recorded performance observation. Immutable once recorded.
type Sample struct {
	Timestamp  time.Time      `json:"timestamp"`
	Component  string         `json:"component"`
	MetricName string         `json:"metric_name"`
	Value      float64        `json:"value"`
	Unit       string         `json:"unit"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// QualitySample is one recorded quality observation with a score out of a maximum.
type QualitySample struct {
	Timestamp  time.Time      `json:"timestamp"`
	Component  string         `json:"component"`
	MetricName string         `json:"metric_name"`
	Score      float64        `json:"score"`
	MaxScore   float64        `json:"max_score"`
	Details    map[string]any `json:"details,omitempty"`
}

// Normalized returns the score scaled into [0,1], or 0 when MaxScore is zero.
func (q QualitySample) Normalized() float64 {
	if q.MaxScore <= 0 {
		return 0
	}
	return q.Score / q.MaxScore
}

// StabilityMetric is a Sample scored against its component baseline.
type StabilityMetric struct {
	Timestamp      time.Time `json:"timestamp"`
	Component      string    `json:"component"`
	MetricName     string    `json:"metric_name"`
	Value          float64   `json:"value"`
	Baseline       float64   `json:"baseline"`
	Deviation      float64   `json:"deviation"`
	StabilityScore float64   `json:"stability_score"`
}
