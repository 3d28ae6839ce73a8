package models

import (
	"encoding/json"
	"testing"
)

func TestStabilityLevelJSONUsesNames(t *testing.T) {
	data, err := json.Marshal(StabilityHighlyStable)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"highly_stable"` {
		t.Fatalf("expected name encoding, got %s", data)
	}

	var level StabilityLevel
	if err := json.Unmarshal([]byte(`"critical"`), &level); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if level != StabilityCritical {
		t.Fatalf("expected critical, got %v", level)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &level); err == nil {
		t.Fatalf("expected error for unknown level name")
	}
}

func TestSeverityFromRatioBoundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  Severity
	}{
		{1.0, SeverityLow},
		{1.09, SeverityLow},
		{1.1, SeverityMedium},
		{1.19, SeverityMedium},
		{1.2, SeverityHigh},
		{1.49, SeverityHigh},
		{1.5, SeverityCritical},
		{3.0, SeverityCritical},
	}
	for _, tc := range cases {
		if got := SeverityFromRatio(tc.ratio); got != tc.want {
			t.Fatalf("ratio %v: expected %s, got %s", tc.ratio, tc.want, got)
		}
	}
}

func TestQualitySampleNormalized(t *testing.T) {
	if got := (QualitySample{Score: 8, MaxScore: 10}).Normalized(); got != 0.8 {
		t.Fatalf("expected 0.8, got %v", got)
	}
	if got := (QualitySample{Score: 8}).Normalized(); got != 0 {
		t.Fatalf("zero max score must normalize to 0, got %v", got)
	}
}
