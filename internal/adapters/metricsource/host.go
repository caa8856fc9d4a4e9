package metricsource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/frostdev-ops/alert-engine/internal/core/monitoring"
)

type hostReader func(ctx context.Context) (float64, error)

// HostSource reads live metrics of the machine the engine runs on. Metric
// names are the configured prefix followed by one of HostMetrics.
type HostSource struct {
	prefix  string
	readers map[string]hostReader
}

var _ monitoring.MetricSource = (*HostSource)(nil)

// NewHostSource creates a host source answering metrics under prefix
func NewHostSource(prefix string) *HostSource {
	return &HostSource{
		prefix: prefix,
		readers: map[string]hostReader{
			"cpu.usage_percent":      cpuUsage,
			"cpu.temperature":        cpuTemperature,
			"memory.used_percent":    memoryUsedPercent,
			"memory.available_bytes": memoryAvailable,
			"swap.used_percent":      swapUsedPercent,
			"disk.used_percent":      diskUsedPercent("/"),
			"disk.free_bytes":        diskFree("/"),
			"load.1":                 loadAvg(func(a *load.AvgStat) float64 { return a.Load1 }),
			"load.5":                 loadAvg(func(a *load.AvgStat) float64 { return a.Load5 }),
			"load.15":                loadAvg(func(a *load.AvgStat) float64 { return a.Load15 }),
			"uptime_seconds":         uptime,
		},
	}
}

// Prefix returns the metric prefix this source answers
func (s *HostSource) Prefix() string {
	return s.prefix
}

// HostMetrics lists the metric names served, without prefix
func (s *HostSource) HostMetrics() []string {
	names := make([]string, 0, len(s.readers))
	for name := range s.readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLatestValue samples the metric now; window and tenant do not apply to
// host readings
func (s *HostSource) GetLatestValue(ctx context.Context, metric, _ string, _ time.Duration) (*float64, error) {
	name := strings.TrimPrefix(metric, s.prefix)
	reader, ok := s.readers[name]
	if !ok {
		return nil, fmt.Errorf("unknown host metric %q", metric)
	}

	value, err := reader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", metric, err)
	}
	return &value, nil
}

func cpuUsage(ctx context.Context) (float64, error) {
	// interval 0 compares against the previous call
	percent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percent) == 0 {
		return 0, fmt.Errorf("no cpu samples")
	}
	return percent[0], nil
}

func cpuTemperature(ctx context.Context) (float64, error) {
	sensors, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(sensors) == 0 {
		return 0, err
	}

	found := false
	var hottest float64
	for _, s := range sensors {
		if s.Temperature <= 0 {
			continue
		}
		if !found || s.Temperature > hottest {
			hottest = s.Temperature
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("no temperature sensors")
	}
	return hottest, nil
}

func memoryUsedPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func memoryAvailable(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return float64(vm.Available), nil
}

func swapUsedPercent(ctx context.Context) (float64, error) {
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return swap.UsedPercent, nil
}

func diskUsedPercent(path string) hostReader {
	return func(ctx context.Context) (float64, error) {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return 0, err
		}
		return usage.UsedPercent, nil
	}
}

func diskFree(path string) hostReader {
	return func(ctx context.Context) (float64, error) {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return 0, err
		}
		return float64(usage.Free), nil
	}
}

func loadAvg(pick func(*load.AvgStat) float64) hostReader {
	return func(ctx context.Context) (float64, error) {
		avg, err := load.AvgWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return pick(avg), nil
	}
}

func uptime(ctx context.Context) (float64, error) {
	seconds, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return float64(seconds), nil
}
