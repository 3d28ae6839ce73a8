package models

import "time"

// ResourceType names the live resource a fuse protects.
type ResourceType string

const (
	ResourceMemory  ResourceType = "memory"
	ResourceCPU     ResourceType = "cpu"
	ResourceDisk    ResourceType = "disk"
	ResourceProcess ResourceType = "process"
)

// FuseState is the runtime state of one fuse instance.
type FuseState string

const (
	FuseArmed     FuseState = "armed"
	FuseTriggered FuseState = "triggered"
	FuseDisabled  FuseState = "disabled"
)

// FuseConfig is the static definition of one fuse. Immutable after load.
type FuseConfig struct {
	ID              string        `yaml:"id" json:"id"`
	Resource        ResourceType  `yaml:"resource" json:"resource"`
	Description     string        `yaml:"description" json:"description,omitempty"`
	Threshold       float64       `yaml:"threshold" json:"threshold"`
	SustainDuration time.Duration `yaml:"sustainDuration" json:"sustain_duration"`
	RecoveryTime    time.Duration `yaml:"recoveryTime" json:"recovery_time"`
	AutoRecovery    bool          `yaml:"autoRecovery" json:"auto_recovery"`
	Actions         []string      `yaml:"actions" json:"actions"`
}

// FuseTriggerEvent records one trip of a fuse.
type FuseTriggerEvent struct {
	EventID      string       `json:"event_id"`
	FuseID       string       `json:"fuse_id"`
	Resource     ResourceType `json:"resource"`
	Severity     Severity     `json:"severity"`
	TriggerValue float64      `json:"trigger_value"`
	Threshold    float64      `json:"threshold"`
	TriggeredAt  time.Time    `json:"triggered_at"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
	ActionsTaken []string     `json:"actions_taken"`
}

// FuseStatus aggregates controller state for the read API.
type FuseStatus struct {
	TotalFuses     int `json:"total_fuses"`
	ArmedFuses     int `json:"armed_fuses"`
	TriggeredFuses int `json:"triggered_fuses"`
	DisabledFuses  int `json:"disabled_fuses"`
	ActiveTriggers int `json:"active_triggers"`
	TotalEvents    int `json:"total_trigger_events"`
}

// TripPattern aggregates trigger history per resource type.
type TripPattern struct {
	Resource         ResourceType `json:"resource"`
	TripCount        int          `json:"trip_count"`
	AvgRatio         float64      `json:"avg_ratio"`
	DominantSeverity Severity     `json:"dominant_severity"`
	LastTriggered    time.Time    `json:"last_triggered"`
}

// ResourceSnapshot captures live resource state, used by the emergency snapshot action.
type ResourceSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	MemoryPercent float64   `json:"memory_percent"`
	CPUPercent    float64   `json:"cpu_percent"`
	DiskPercent   float64   `json:"disk_percent"`
}
