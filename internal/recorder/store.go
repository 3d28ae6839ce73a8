package recorder

import (
	"sync"
	"time"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// sampleRing is a fixed-capacity ring buffer of samples. When full, the
// oldest entry is overwritten first.
type sampleRing struct {
	buf  []models.Sample
	next int
	full bool
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{buf: make([]models.Sample, capacity)}
}

func (r *sampleRing) append(s models.Sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *sampleRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// snapshot returns samples ordered oldest first.
func (r *sampleRing) snapshot() []models.Sample {
	if !r.full {
		return append([]models.Sample(nil), r.buf[:r.next]...)
	}
	out := make([]models.Sample, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

type qualityRing struct {
	buf  []models.QualitySample
	next int
	full bool
}

func newQualityRing(capacity int) *qualityRing {
	return &qualityRing{buf: make([]models.QualitySample, capacity)}
}

func (r *qualityRing) append(s models.QualitySample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *qualityRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

func (r *qualityRing) snapshot() []models.QualitySample {
	if !r.full {
		return append([]models.QualitySample(nil), r.buf[:r.next]...)
	}
	out := make([]models.QualitySample, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

// Store keeps bounded per-metric buffers of performance and quality samples.
// Appends and reads are safe for concurrent callers; eviction order is
// strictly oldest-first per metric.
type Store struct {
	mu           sync.RWMutex
	maxPerMetric int
	performance  map[string]*sampleRing
	quality      map[string]*qualityRing
}

// NewStore creates a store bounding each metric at maxPerMetric samples.
func NewStore(maxPerMetric int) *Store {
	if maxPerMetric <= 0 {
		maxPerMetric = 10000
	}
	return &Store{
		maxPerMetric: maxPerMetric,
		performance:  make(map[string]*sampleRing),
		quality:      make(map[string]*qualityRing),
	}
}

// AppendPerformance records one performance sample, evicting the oldest entry
// for that metric when the buffer is full.
func (s *Store) AppendPerformance(sample models.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.performance[sample.MetricName]
	if !ok {
		ring = newSampleRing(s.maxPerMetric)
		s.performance[sample.MetricName] = ring
	}
	ring.append(sample)
}

// AppendQuality records one quality sample.
func (s *Store) AppendQuality(sample models.QualitySample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.quality[sample.MetricName]
	if !ok {
		ring = newQualityRing(s.maxPerMetric)
		s.quality[sample.MetricName] = ring
	}
	ring.append(sample)
}

// Len reports the retained sample count for one performance metric.
func (s *Store) Len(metricName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ring, ok := s.performance[metricName]; ok {
		return ring.len()
	}
	return 0
}

// PerformanceSince returns all retained performance samples newer than cutoff,
// grouped by metric name and ordered oldest first within each group.
func (s *Store) PerformanceSince(cutoff time.Time) map[string][]models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.Sample, len(s.performance))
	for name, ring := range s.performance {
		for _, sample := range ring.snapshot() {
			if sample.Timestamp.Before(cutoff) {
				continue
			}
			out[name] = append(out[name], sample)
		}
	}
	return out
}

// QualitySince returns all retained quality samples newer than cutoff.
func (s *Store) QualitySince(cutoff time.Time) map[string][]models.QualitySample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.QualitySample, len(s.quality))
	for name, ring := range s.quality {
		for _, sample := range ring.snapshot() {
			if sample.Timestamp.Before(cutoff) {
				continue
			}
			out[name] = append(out[name], sample)
		}
	}
	return out
}

