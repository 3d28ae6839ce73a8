package recorder

import "github.com/miradorstack/mirador-guard/internal/config"

// Level classifies a threshold check outcome.
type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// CheckResult is the outcome of comparing a value against static limits.
type CheckResult struct {
	OK    bool
	Level Level
}

// CheckLimits compares a value against optional warning/critical limits.
// A zero limit disables that check. Pure function; callers decide how to
// surface crossings.
func CheckLimits(value float64, limits config.Limits) CheckResult {
	if limits.Critical > 0 && value >= limits.Critical {
		return CheckResult{OK: false, Level: LevelCritical}
	}
	if limits.Warning > 0 && value >= limits.Warning {
		return CheckResult{OK: false, Level: LevelWarning}
	}
	return CheckResult{OK: true, Level: LevelOK}
}
