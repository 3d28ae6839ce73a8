package sampler

import (
	"testing"

	"github.com/miradorstack/mirador-guard/internal/config"
)

func TestSamplesNamesMatchDefaultLimits(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	s, err := NewSystemSampler("/", nil)
	if err != nil {
		t.Fatalf("NewSystemSampler() error = %v", err)
	}

	for _, sample := range s.Samples() {
		if sample.Component != "system" {
			t.Errorf("sample %s: component = %q, want system", sample.MetricName, sample.Component)
		}
		if _, ok := cfg.Recorder.Limits[sample.MetricName]; !ok {
			t.Errorf("collected metric %q has no default limits entry", sample.MetricName)
		}
	}
}

func TestProcessSamplesNaming(t *testing.T) {
	s, err := NewSystemSampler("", nil)
	if err != nil {
		t.Fatalf("NewSystemSampler() error = %v", err)
	}

	samples := s.ProcessSamples()
	if len(samples) == 0 {
		t.Fatal("ProcessSamples() returned no samples")
	}
	for _, sample := range samples {
		if sample.Component != "process" {
			t.Errorf("sample %s: component = %q, want process", sample.MetricName, sample.Component)
		}
		if len(sample.MetricName) < len("process_") || sample.MetricName[:len("process_")] != "process_" {
			t.Errorf("process metric %q should carry the process_ prefix", sample.MetricName)
		}
	}
}
