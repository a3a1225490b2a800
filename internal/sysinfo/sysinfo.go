// Package sysinfo snapshots host CPU and memory utilization at request time.
package sysinfo

import (
	"log/slog"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time view of host utilization. Nil fields mean
// sampling failed; callers must treat them as absent, not zero.
type Snapshot struct {
	CPUPercent   *float64
	RAMMegabytes *float64
}

// Sampler reads host utilization. Implementations must never block the
// caller on failure; they degrade to an empty Snapshot instead.
type Sampler interface {
	Sample() Snapshot
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() Snapshot

func (f SamplerFunc) Sample() Snapshot { return f() }

// HostSampler samples the local machine via gopsutil.
type HostSampler struct{}

// Sample returns current CPU load and used memory in megabytes. Any probe
// failure yields an empty Snapshot.
func (HostSampler) Sample() Snapshot {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		slog.Debug("cpu sampling failed", "error", err)
		return Snapshot{}
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		slog.Debug("memory sampling failed", "error", err)
		return Snapshot{}
	}

	cpuPct := percents[0]
	ramMB := float64(vm.Used) / 1024 / 1024
	return Snapshot{CPUPercent: &cpuPct, RAMMegabytes: &ramMB}
}
