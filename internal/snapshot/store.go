package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/miradorstack/mirador-guard/internal/models"
	"github.com/miradorstack/mirador-guard/internal/utils"
)

const (
	performanceFile = "performance_metrics.json"
	qualityFile     = "quality_metrics.json"
	emergencyFile   = "emergency_state.json"
)

// Store persists metric histories and emergency state as JSON files under a
// data directory. Writes go to a temp file first and rename into place so a
// crash mid-write never corrupts the previous snapshot.
type Store struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// EmergencyState is the file written synchronously when a fuse trips.
type EmergencyState struct {
	WrittenAt time.Time                `json:"written_at"`
	Reason    string                   `json:"reason"`
	Event     *models.FuseTriggerEvent `json:"event,omitempty"`
	Resources *models.ResourceSnapshot `json:"resources,omitempty"`
}

// NewStore creates the data directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("snapshot: data directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// SavePerformance writes the full performance history.
func (s *Store) SavePerformance(samples map[string][]models.Sample) error {
	return s.write(performanceFile, samples)
}

// SaveQuality writes the full quality history.
func (s *Store) SaveQuality(samples map[string][]models.QualitySample) error {
	return s.write(qualityFile, samples)
}

// SaveEmergency writes emergency state synchronously. Called from the fuse
// trigger path, so it must not defer or batch.
func (s *Store) SaveEmergency(state EmergencyState) error {
	if state.WrittenAt.IsZero() {
		state.WrittenAt = time.Now().UTC()
	}
	return s.write(emergencyFile, state)
}

// LoadPerformance restores a previously saved performance history. A missing
// file is a cold start, not an error.
func (s *Store) LoadPerformance() (map[string][]models.Sample, error) {
	out := make(map[string][]models.Sample)
	if err := s.read(performanceFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadQuality restores a previously saved quality history.
func (s *Store) LoadQuality() (map[string][]models.QualitySample, error) {
	out := make(map[string][]models.QualitySample)
	if err := s.read(qualityFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) write(name string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return utils.NewAppError("snapshot.write", "encode "+name, err)
	}

	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return utils.NewAppError("snapshot.write", "write "+tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return utils.NewAppError("snapshot.write", "rename into "+target, err)
	}
	return nil
}

func (s *Store) read(name string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return utils.NewAppError("snapshot.read", "read "+name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return utils.NewAppError("snapshot.read", "decode "+name, err)
	}
	return nil
}
