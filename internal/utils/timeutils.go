package utils

import (
	"fmt"
	"strconv"
	"time"
)

// ParseWindow parses a lookback window from a query parameter. Accepts Go
// duration syntax ("30m", "1h") or a bare number of seconds. Empty input
// returns the fallback.
func ParseWindow(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("window must be positive")
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse window: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}
	return d, nil
}
