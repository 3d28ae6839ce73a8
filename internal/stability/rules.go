package stability

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// RuleEngine appends operator-maintained recommendations on top of the
// built-in deterministic text when a rule matches the evaluation outcome.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single recommendation rule.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch defines optional attributes for rule matching. All set
// attributes must match for the rule to fire.
type RuleMatch struct {
	Level        string `yaml:"level"`
	Metric       string `yaml:"metric"`
	Trend        string `yaml:"trend"`
	MinAnomalies int    `yaml:"min_anomalies"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or the
// file does not exist, returns a nil engine, which matches nothing.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Recommend returns recommendations from every rule matching the outcome.
func (e *RuleEngine) Recommend(level models.StabilityLevel, anomalies []models.Anomaly, trends map[string]models.Trend) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.Level != "" && !strings.EqualFold(rule.Match.Level, level.String()) {
			continue
		}
		if rule.Match.MinAnomalies > 0 && len(anomalies) < rule.Match.MinAnomalies {
			continue
		}
		if rule.Match.Metric != "" || rule.Match.Trend != "" {
			if !trendMatches(rule.Match, trends) {
				continue
			}
		}
		matched = appendUnique(matched, rule.Recommendations...)
	}
	return matched
}

func trendMatches(match RuleMatch, trends map[string]models.Trend) bool {
	for name, trend := range trends {
		if match.Metric != "" && !strings.EqualFold(match.Metric, name) {
			continue
		}
		if match.Trend != "" && !strings.EqualFold(match.Trend, string(trend.Direction)) {
			continue
		}
		return true
	}
	return false
}
