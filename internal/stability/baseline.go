package stability

import (
	"sort"
	"sync"
)

type baselineKey struct {
	component string
	metric    string
}

// baselineEntry carries its own lock so the synchronous record path and the
// periodic evaluation path serialize EMA updates per (component, metric)
// without contending on a global lock.
type baselineEntry struct {
	mu    sync.Mutex
	value float64
}

// BaselineTracker maintains one exponentially-weighted baseline per
// (component, metric) pair. Baselines are owned exclusively by this tracker.
type BaselineTracker struct {
	mu      sync.RWMutex
	entries map[baselineKey]*baselineEntry
	alpha   float64
}

// NewBaselineTracker creates a tracker with the given EMA smoothing factor.
func NewBaselineTracker(alpha float64) *BaselineTracker {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &BaselineTracker{
		entries: make(map[baselineKey]*baselineEntry),
		alpha:   alpha,
	}
}

// Seed installs an explicit baseline for a (component, metric) pair,
// replacing whatever cold-start policy would otherwise apply.
func (t *BaselineTracker) Seed(component, metric string, value float64) {
	entry := t.ensure(baselineKey{component, metric}, value)
	entry.mu.Lock()
	entry.value = value
	entry.mu.Unlock()
}

// GetOrSeed returns the baseline for a pair, establishing one if absent:
// the median of history when at least ten samples exist (robust to
// outliers), otherwise the current value itself.
func (t *BaselineTracker) GetOrSeed(component, metric string, current float64, history []float64) float64 {
	key := baselineKey{component, metric}

	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()
	if ok {
		entry.mu.Lock()
		value := entry.value
		entry.mu.Unlock()
		return value
	}

	seed := current
	if len(history) >= 10 {
		seed = median(history)
	}
	entry = t.ensure(key, seed)
	entry.mu.Lock()
	value := entry.value
	entry.mu.Unlock()
	return value
}

// Update applies the EMA rule baseline' = alpha*value + (1-alpha)*baseline.
// Called unconditionally after every sample.
func (t *BaselineTracker) Update(component, metric string, value float64) float64 {
	entry := t.ensure(baselineKey{component, metric}, value)
	entry.mu.Lock()
	entry.value = t.alpha*value + (1-t.alpha)*entry.value
	updated := entry.value
	entry.mu.Unlock()
	return updated
}

// ensure returns the entry for key, creating it with the initial value when
// missing. The first creator wins under concurrent calls.
func (t *BaselineTracker) ensure(key baselineKey, initial float64) *baselineEntry {
	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()
	if ok {
		return entry
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok = t.entries[key]; ok {
		return entry
	}
	entry = &baselineEntry{value: initial}
	t.entries[key] = entry
	return entry
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
