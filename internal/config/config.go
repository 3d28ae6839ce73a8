package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// Config captures the settings required to boot the guard engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Stability StabilityConfig `yaml:"stability"`
	Fuses     FusesConfig     `yaml:"fuses"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls the HTTP read API and Prometheus listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json or console
}

// RecorderConfig bounds sample retention and sets static limits.
type RecorderConfig struct {
	MaxSamplesPerMetric int                `yaml:"maxSamplesPerMetric"`
	CollectionInterval  time.Duration      `yaml:"collectionInterval"`
	CollectSystem       bool               `yaml:"collectSystem"`
	CollectProcess      bool               `yaml:"collectProcess"`
	Limits              map[string]Limits  `yaml:"limits"`
	QualityMinimums     map[string]float64 `yaml:"qualityMinimums"`
}

// Limits holds static warning/critical thresholds for one metric.
// A zero value disables the corresponding check.
type Limits struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// StabilityConfig tunes the baseline tracker and evaluator.
type StabilityConfig struct {
	EvaluationInterval     time.Duration       `yaml:"evaluationInterval"`
	EvaluationWindow       time.Duration       `yaml:"evaluationWindow"`
	BaselineAlpha          float64             `yaml:"baselineAlpha"`
	MaxMetricsPerComponent int                 `yaml:"maxMetricsPerComponent"`
	StabilityThresholds    StabilityThresholds `yaml:"stabilityThresholds"`
	DeviationThresholds    DeviationThresholds `yaml:"deviationThresholds"`
	Anomaly                AnomalyConfig       `yaml:"anomaly"`
	Trend                  TrendConfig         `yaml:"trend"`
	RulesPath              string              `yaml:"rulesPath"`
}

// StabilityThresholds are the ordinal cut points for stability levels.
type StabilityThresholds struct {
	HighlyStable float64 `yaml:"highlyStable"`
	Stable       float64 `yaml:"stable"`
	Moderate     float64 `yaml:"moderate"`
	Unstable     float64 `yaml:"unstable"`
}

// DeviationThresholds bucket relative deviation into stability scores.
type DeviationThresholds struct {
	Low      float64 `yaml:"low"`
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// AnomalyConfig tunes z-score anomaly detection.
type AnomalyConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Sensitivity float64 `yaml:"sensitivity"`
	MinSamples  int     `yaml:"minSamples"`
}

// TrendConfig tunes least-squares trend fitting.
type TrendConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MinSamples   int     `yaml:"minSamples"`
	SlopeEpsilon float64 `yaml:"slopeEpsilon"`
}

// FusesConfig holds the fuse check cadence and per-fuse definitions.
type FusesConfig struct {
	CheckInterval       time.Duration       `yaml:"checkInterval"`
	DefaultRecoveryTime time.Duration       `yaml:"defaultRecoveryTime"`
	ActionTimeout       time.Duration       `yaml:"actionTimeout"`
	Definitions         []models.FuseConfig `yaml:"definitions"`
}

// SnapshotConfig controls JSON state persistence.
type SnapshotConfig struct {
	Dir              string        `yaml:"dir"`
	AutoSaveInterval time.Duration `yaml:"autoSaveInterval"`
	TempDir          string        `yaml:"tempDir"`
	TempMaxAge       time.Duration `yaml:"tempMaxAge"`
}

// CacheConfig controls publishing status snapshots to a Redis-compatible server.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	StatusTTL    time.Duration `yaml:"statusTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
// A missing path falls back to documented defaults; startup is only aborted
// when an explicitly named file cannot be read or parsed.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_GUARD_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	sanitize(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8480",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Recorder: RecorderConfig{
			MaxSamplesPerMetric: 10000,
			CollectionInterval:  5 * time.Second,
			CollectSystem:       true,
			CollectProcess:      true,
			Limits: map[string]Limits{
				"cpu_usage":    {Warning: 80, Critical: 95},
				"memory_usage": {Warning: 85, Critical: 95},
				"disk_usage":   {Warning: 90, Critical: 98},
			},
			QualityMinimums: map[string]float64{
				"accuracy":    0.8,
				"consistency": 0.9,
				"reliability": 0.95,
			},
		},
		Stability: StabilityConfig{
			EvaluationInterval:     time.Minute,
			EvaluationWindow:       30 * time.Minute,
			BaselineAlpha:          0.1,
			MaxMetricsPerComponent: 1000,
			StabilityThresholds: StabilityThresholds{
				HighlyStable: 0.95,
				Stable:       0.85,
				Moderate:     0.70,
				Unstable:     0.50,
			},
			DeviationThresholds: DeviationThresholds{
				Low:      0.05,
				Medium:   0.15,
				High:     0.30,
				Critical: 0.50,
			},
			Anomaly: AnomalyConfig{Enabled: true, Sensitivity: 2.0, MinSamples: 10},
			Trend:   TrendConfig{Enabled: true, MinSamples: 5, SlopeEpsilon: 0.001},
		},
		Fuses: FusesConfig{
			CheckInterval:       5 * time.Second,
			DefaultRecoveryTime: 5 * time.Minute,
			ActionTimeout:       10 * time.Second,
			Definitions: []models.FuseConfig{
				{
					ID:              "memory_critical",
					Resource:        models.ResourceMemory,
					Threshold:       95,
					SustainDuration: 30 * time.Second,
					AutoRecovery:    true,
					Actions:         []string{"log_alert", "free_memory", "emergency_snapshot"},
				},
				{
					ID:              "cpu_overload",
					Resource:        models.ResourceCPU,
					Threshold:       98,
					SustainDuration: time.Minute,
					AutoRecovery:    true,
					Actions:         []string{"log_alert", "throttle_admission"},
				},
				{
					ID:              "disk_full",
					Resource:        models.ResourceDisk,
					Threshold:       98,
					SustainDuration: 10 * time.Second,
					AutoRecovery:    true,
					Actions:         []string{"log_alert", "cleanup_temp"},
				},
			},
		},
		Snapshot: SnapshotConfig{
			Dir:              "data/guard",
			AutoSaveInterval: 5 * time.Minute,
			TempDir:          os.TempDir(),
			TempMaxAge:       time.Hour,
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			StatusTTL:    2 * time.Minute,
		},
	}
}

// sanitize backfills zero values left by partial YAML documents so that a
// sparse config never produces a stalled ticker or an unbounded buffer.
func sanitize(cfg *Config) {
	def := defaultConfig()
	if cfg.Recorder.MaxSamplesPerMetric <= 0 {
		cfg.Recorder.MaxSamplesPerMetric = def.Recorder.MaxSamplesPerMetric
	}
	if cfg.Recorder.CollectionInterval <= 0 {
		cfg.Recorder.CollectionInterval = def.Recorder.CollectionInterval
	}
	if cfg.Stability.EvaluationInterval <= 0 {
		cfg.Stability.EvaluationInterval = def.Stability.EvaluationInterval
	}
	if cfg.Stability.EvaluationWindow <= 0 {
		cfg.Stability.EvaluationWindow = def.Stability.EvaluationWindow
	}
	if cfg.Stability.BaselineAlpha <= 0 || cfg.Stability.BaselineAlpha > 1 {
		cfg.Stability.BaselineAlpha = def.Stability.BaselineAlpha
	}
	if cfg.Stability.MaxMetricsPerComponent <= 0 {
		cfg.Stability.MaxMetricsPerComponent = def.Stability.MaxMetricsPerComponent
	}
	if cfg.Stability.Anomaly.Sensitivity <= 0 {
		cfg.Stability.Anomaly.Sensitivity = def.Stability.Anomaly.Sensitivity
	}
	if cfg.Stability.Anomaly.MinSamples <= 0 {
		cfg.Stability.Anomaly.MinSamples = def.Stability.Anomaly.MinSamples
	}
	if cfg.Stability.Trend.MinSamples <= 0 {
		cfg.Stability.Trend.MinSamples = def.Stability.Trend.MinSamples
	}
	if cfg.Stability.Trend.SlopeEpsilon <= 0 {
		cfg.Stability.Trend.SlopeEpsilon = def.Stability.Trend.SlopeEpsilon
	}
	if zeroThresholds(cfg.Stability.StabilityThresholds) {
		cfg.Stability.StabilityThresholds = def.Stability.StabilityThresholds
	}
	if zeroDeviations(cfg.Stability.DeviationThresholds) {
		cfg.Stability.DeviationThresholds = def.Stability.DeviationThresholds
	}
	if cfg.Fuses.CheckInterval <= 0 {
		cfg.Fuses.CheckInterval = def.Fuses.CheckInterval
	}
	if cfg.Fuses.DefaultRecoveryTime <= 0 {
		cfg.Fuses.DefaultRecoveryTime = def.Fuses.DefaultRecoveryTime
	}
	if cfg.Fuses.ActionTimeout <= 0 {
		cfg.Fuses.ActionTimeout = def.Fuses.ActionTimeout
	}
	if cfg.Snapshot.AutoSaveInterval <= 0 {
		cfg.Snapshot.AutoSaveInterval = def.Snapshot.AutoSaveInterval
	}
	if cfg.Snapshot.TempMaxAge <= 0 {
		cfg.Snapshot.TempMaxAge = def.Snapshot.TempMaxAge
	}
	if cfg.Snapshot.TempDir == "" {
		cfg.Snapshot.TempDir = def.Snapshot.TempDir
	}
	for i := range cfg.Fuses.Definitions {
		if cfg.Fuses.Definitions[i].RecoveryTime <= 0 {
			cfg.Fuses.Definitions[i].RecoveryTime = cfg.Fuses.DefaultRecoveryTime
		}
	}
}

func zeroThresholds(t StabilityThresholds) bool {
	return t.HighlyStable == 0 && t.Stable == 0 && t.Moderate == 0 && t.Unstable == 0
}

func zeroDeviations(t DeviationThresholds) bool {
	return t.Low == 0 && t.Medium == 0 && t.High == 0 && t.Critical == 0
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_GUARD_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MIRADOR_GUARD_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_GUARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_GUARD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MIRADOR_GUARD_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("MIRADOR_GUARD_RULES_PATH"); v != "" {
		cfg.Stability.RulesPath = v
	}
	if v := os.Getenv("MIRADOR_GUARD_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("MIRADOR_GUARD_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_GUARD_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_GUARD_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_GUARD_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_GUARD_CACHE_STATUS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.StatusTTL = d
		}
	}
}
