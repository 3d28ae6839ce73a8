package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miradorstack/mirador-guard/internal/models"
)

func TestSaveAndLoadPerformance(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	saved := map[string][]models.Sample{
		"latency_ms": {
			{Timestamp: time.Now().UTC().Truncate(time.Second), Component: "api", MetricName: "latency_ms", Value: 12.5, Unit: "ms"},
		},
	}
	if err := store.SavePerformance(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.LoadPerformance()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	samples := loaded["latency_ms"]
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].Value != 12.5 || samples[0].Component != "api" {
		t.Fatalf("unexpected sample: %+v", samples[0])
	}
}

func TestLoadMissingFilesIsColdStart(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	performance, err := store.LoadPerformance()
	if err != nil {
		t.Fatalf("load performance: %v", err)
	}
	if len(performance) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(performance))
	}

	quality, err := store.LoadQuality()
	if err != nil {
		t.Fatalf("load quality: %v", err)
	}
	if len(quality) != 0 {
		t.Fatalf("expected empty quality history, got %d entries", len(quality))
	}
}

func TestSaveEmergencyStampsTime(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	event := models.FuseTriggerEvent{FuseID: "memory_critical", Resource: models.ResourceMemory}
	if err := store.SaveEmergency(EmergencyState{Reason: "test trip", Event: &event}); err != nil {
		t.Fatalf("save emergency: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "emergency_state.json"))
	if err != nil {
		t.Fatalf("read emergency file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty emergency file")
	}
	// No temp file may be left behind after the atomic rename.
	if _, err := os.Stat(filepath.Join(dir, "emergency_state.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestNewStoreRequiresDir(t *testing.T) {
	if _, err := NewStore("", nil); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
