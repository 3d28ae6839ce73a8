package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/miradorstack/mirador-guard/internal/models"
	"github.com/miradorstack/mirador-guard/internal/snapshot"
)

// ActionFunc executes one protective action for a trigger event. The context
// carries the per-action timeout.
type ActionFunc func(ctx context.Context, event models.FuseTriggerEvent) error

// Gate is the admission throttle engaged by the throttle_admission action.
// Request paths ask Throttled() before accepting expensive work.
type Gate struct {
	throttled atomic.Bool
}

func (g *Gate) Throttle() { g.throttled.Store(true) }
func (g *Gate) Release()  { g.throttled.Store(false) }

// Throttled reports whether admission is currently restricted.
func (g *Gate) Throttled() bool { return g.throttled.Load() }

// Snapshotter captures live resource utilisation for the emergency snapshot.
type Snapshotter interface {
	Snapshot() models.ResourceSnapshot
}

// ActionRegistry maps action names from fuse definitions to executable
// actions. Unknown names fail the individual action, never the trigger.
type ActionRegistry struct {
	actions map[string]ActionFunc
	gate    *Gate
	logger  *slog.Logger
}

// RegistryOptions wires the dependencies the built-in actions need.
type RegistryOptions struct {
	Snapshots  *snapshot.Store
	Resources  Snapshotter
	AlertPath  string
	TempDir    string
	TempMaxAge time.Duration
}

// NewActionRegistry builds a registry with the built-in protective actions
// registered.
func NewActionRegistry(opts RegistryOptions, logger *slog.Logger) *ActionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ActionRegistry{
		actions: make(map[string]ActionFunc),
		gate:    &Gate{},
		logger:  logger,
	}
	r.Register("log_alert", logAlertAction(opts.AlertPath, logger))
	r.Register("free_memory", freeMemoryAction(logger))
	r.Register("throttle_admission", throttleAction(r.gate))
	r.Register("cleanup_temp", cleanupTempAction(opts.TempDir, opts.TempMaxAge))
	if opts.Snapshots != nil {
		r.Register("emergency_snapshot", emergencySnapshotAction(opts.Snapshots, opts.Resources))
	}
	return r
}

// Register adds or replaces a named action.
func (r *ActionRegistry) Register(name string, fn ActionFunc) {
	r.actions[name] = fn
}

// Lookup returns the action for a name.
func (r *ActionRegistry) Lookup(name string) (ActionFunc, bool) {
	fn, ok := r.actions[name]
	return fn, ok
}

// Gate returns the shared admission gate.
func (r *ActionRegistry) Gate() *Gate {
	return r.gate
}

func logAlertAction(path string, logger *slog.Logger) ActionFunc {
	return func(_ context.Context, event models.FuseTriggerEvent) error {
		logger.Error("fuse tripped",
			"fuse", event.FuseID,
			"resource", string(event.Resource),
			"value", event.TriggerValue,
			"threshold", event.Threshold,
			"severity", string(event.Severity))
		if path == "" {
			return nil
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open alert log: %w", err)
		}
		defer f.Close()
		line := fmt.Sprintf("%s fuse=%s resource=%s value=%.2f threshold=%.2f severity=%s\n",
			event.TriggeredAt.UTC().Format(time.RFC3339),
			event.FuseID, event.Resource, event.TriggerValue, event.Threshold, event.Severity)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("append alert log: %w", err)
		}
		return nil
	}
}

func freeMemoryAction(logger *slog.Logger) ActionFunc {
	return func(_ context.Context, event models.FuseTriggerEvent) error {
		var before runtime.MemStats
		runtime.ReadMemStats(&before)
		runtime.GC()
		debug.FreeOSMemory()
		var after runtime.MemStats
		runtime.ReadMemStats(&after)
		logger.Info("forced memory release",
			"fuse", event.FuseID,
			"heap_before_bytes", before.HeapAlloc,
			"heap_after_bytes", after.HeapAlloc)
		return nil
	}
}

func throttleAction(gate *Gate) ActionFunc {
	return func(_ context.Context, _ models.FuseTriggerEvent) error {
		gate.Throttle()
		return nil
	}
}

// cleanupTempAction removes files older than maxAge from dir. Subdirectories
// are left alone.
func cleanupTempAction(dir string, maxAge time.Duration) ActionFunc {
	return func(ctx context.Context, _ models.FuseTriggerEvent) error {
		if dir == "" {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read temp dir: %w", err)
		}
		cutoff := time.Now().Add(-maxAge)
		var firstErr error
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", entry.Name(), err)
			}
		}
		return firstErr
	}
}

func emergencySnapshotAction(store *snapshot.Store, resources Snapshotter) ActionFunc {
	return func(_ context.Context, event models.FuseTriggerEvent) error {
		state := snapshot.EmergencyState{
			Reason: fmt.Sprintf("fuse %s tripped on %s", event.FuseID, event.Resource),
			Event:  &event,
		}
		if resources != nil {
			snap := resources.Snapshot()
			state.Resources = &snap
		}
		return store.SaveEmergency(state)
	}
}
