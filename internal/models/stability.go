package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StabilityLevel orders component stability from worst to best so that
// comparisons are compiler-checked instead of string lookups.
type StabilityLevel int

const (
	StabilityCritical StabilityLevel = iota
	StabilityUnstable
	StabilityModerate
	StabilityStable
	StabilityHighlyStable
)

var stabilityNames = map[StabilityLevel]string{
	StabilityCritical:     "critical",
	StabilityUnstable:     "unstable",
	StabilityModerate:     "moderate",
	StabilityStable:       "stable",
	StabilityHighlyStable: "highly_stable",
}

func (l StabilityLevel) String() string {
	if name, ok := stabilityNames[l]; ok {
		return name
	}
	return fmt.Sprintf("stability(%d)", int(l))
}

// MarshalJSON renders the level as its string name.
func (l StabilityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts the string names produced by MarshalJSON.
func (l *StabilityLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for level, candidate := range stabilityNames {
		if candidate == name {
			*l = level
			return nil
		}
	}
	return fmt.Errorf("unknown stability level %q", name)
}

// Severity captures impact levels for anomalies and fuse trips.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFromRatio derives trip severity from the trigger/threshold ratio.
func SeverityFromRatio(ratio float64) Severity {
	switch {
	case ratio >= 1.5:
		return SeverityCritical
	case ratio >= 1.2:
		return SeverityHigh
	case ratio >= 1.1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// TrendDirection enumerates fitted trend directions.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Anomaly flags one sample whose z-score exceeded the configured sensitivity.
type Anomaly struct {
	Timestamp  time.Time `json:"timestamp"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Expected   float64   `json:"expected"`
	ZScore     float64   `json:"z_score"`
	Severity   Severity  `json:"severity"`
}

// Trend summarises the least-squares fit for one metric over the window.
type Trend struct {
	Direction  TrendDirection `json:"direction"`
	Slope      float64        `json:"slope"`
	Strength   float64        `json:"strength"`
	DataPoints int            `json:"data_points"`
}

// StabilityReport is the snapshot produced for one component per evaluation cycle.
type StabilityReport struct {
	ReportID         string           `json:"report_id"`
	Component        string           `json:"component"`
	EvaluationWindow time.Duration    `json:"evaluation_window"`
	OverallStability StabilityLevel   `json:"overall_stability"`
	StabilityScore   float64          `json:"stability_score"`
	Anomalies        []Anomaly        `json:"anomalies"`
	Trends           map[string]Trend `json:"trends"`
	Recommendations  []string         `json:"recommendations"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ComponentStability is the read-API view of a component's current stability.
type ComponentStability struct {
	Component      string         `json:"component"`
	Level          StabilityLevel `json:"stability_level"`
	StabilityScore float64        `json:"stability_score"`
	MetricsCount   int            `json:"metrics_count"`
	LastUpdated    time.Time      `json:"last_updated"`
}
