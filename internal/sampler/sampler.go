package sampler

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/miradorstack/mirador-guard/internal/models"
)

// SystemSampler reads host and process utilisation via gopsutil.
type SystemSampler struct {
	diskPath string
	proc     *process.Process
	logger   *slog.Logger
}

// NewSystemSampler builds a sampler rooted at the given disk path ("/" when
// empty). Process-level readings cover the current process.
func NewSystemSampler(diskPath string, logger *slog.Logger) (*SystemSampler, error) {
	if diskPath == "" {
		diskPath = "/"
	}
	if logger == nil {
		logger = slog.Default()
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("sampler: attach to own process: %w", err)
	}
	return &SystemSampler{diskPath: diskPath, proc: proc, logger: logger}, nil
}

// Value implements ValueSource. An error means no reading this tick, not a
// permanent failure; callers should keep prior state and try again.
func (s *SystemSampler) Value(resource models.ResourceType) (float64, error) {
	switch resource {
	case models.ResourceMemory:
		vm, err := mem.VirtualMemory()
		if err != nil {
			return 0, fmt.Errorf("sampler: memory: %w", err)
		}
		return vm.UsedPercent, nil
	case models.ResourceCPU:
		// Non-blocking read against the previous call's counters.
		percents, err := cpu.Percent(0, false)
		if err != nil {
			return 0, fmt.Errorf("sampler: cpu: %w", err)
		}
		if len(percents) == 0 {
			return 0, fmt.Errorf("sampler: cpu: no reading")
		}
		return percents[0], nil
	case models.ResourceDisk:
		usage, err := disk.Usage(s.diskPath)
		if err != nil {
			return 0, fmt.Errorf("sampler: disk %s: %w", s.diskPath, err)
		}
		return usage.UsedPercent, nil
	case models.ResourceProcess:
		pct, err := s.proc.MemoryPercent()
		if err != nil {
			return 0, fmt.Errorf("sampler: process memory: %w", err)
		}
		return float64(pct), nil
	default:
		return 0, fmt.Errorf("sampler: unknown resource %q", resource)
	}
}

// Snapshot reads memory, cpu and disk in one pass for the status surfaces.
// A failed reading leaves that field at zero rather than failing the whole
// snapshot.
func (s *SystemSampler) Snapshot() models.ResourceSnapshot {
	snap := models.ResourceSnapshot{Timestamp: time.Now().UTC()}
	if v, err := s.Value(models.ResourceMemory); err == nil {
		snap.MemoryPercent = v
	} else {
		s.logger.Debug("memory snapshot unavailable", "error", err)
	}
	if v, err := s.Value(models.ResourceCPU); err == nil {
		snap.CPUPercent = v
	} else {
		s.logger.Debug("cpu snapshot unavailable", "error", err)
	}
	if v, err := s.Value(models.ResourceDisk); err == nil {
		snap.DiskPercent = v
	} else {
		s.logger.Debug("disk snapshot unavailable", "error", err)
	}
	return snap
}

// Samples converts the current snapshot into recorder samples for the
// "system" component. The metric names here are the ones the default
// recorder limits are keyed to; keep both in sync.
func (s *SystemSampler) Samples() []models.Sample {
	snap := s.Snapshot()
	return []models.Sample{
		{Timestamp: snap.Timestamp, Component: "system", MetricName: "memory_usage", Value: snap.MemoryPercent, Unit: "percent"},
		{Timestamp: snap.Timestamp, Component: "system", MetricName: "cpu_usage", Value: snap.CPUPercent, Unit: "percent"},
		{Timestamp: snap.Timestamp, Component: "system", MetricName: "disk_usage", Value: snap.DiskPercent, Unit: "percent"},
	}
}

// ProcessSamples reads process-level metrics for the "process" component.
func (s *SystemSampler) ProcessSamples() []models.Sample {
	now := time.Now().UTC()
	var out []models.Sample
	if info, err := s.proc.MemoryInfo(); err == nil {
		out = append(out, models.Sample{Timestamp: now, Component: "process", MetricName: "process_memory_rss", Value: float64(info.RSS) / (1 << 20), Unit: "MB"})
	}
	if pct, err := s.proc.CPUPercent(); err == nil {
		out = append(out, models.Sample{Timestamp: now, Component: "process", MetricName: "process_cpu_usage", Value: pct, Unit: "percent"})
	}
	if threads, err := s.proc.NumThreads(); err == nil {
		out = append(out, models.Sample{Timestamp: now, Component: "process", MetricName: "process_threads", Value: float64(threads), Unit: "count"})
	}
	if fds, err := s.proc.NumFDs(); err == nil {
		out = append(out, models.Sample{Timestamp: now, Component: "process", MetricName: "process_open_fds", Value: float64(fds), Unit: "count"})
	}
	return out
}
