package probe

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSource reads live counters from the running host via gopsutil.
type SystemSource struct{}

// CPUTimes returns the aggregate (all-CPU) cumulative counters.
func (SystemSource) CPUTimes() (CPUTimes, error) {
	times, err := cpu.Times(false)
	if err != nil {
		return CPUTimes{}, fmt.Errorf("probe: read cpu times: %w", err)
	}
	if len(times) == 0 {
		return CPUTimes{}, fmt.Errorf("probe: no aggregate cpu times reported")
	}
	t := times[0]
	return CPUTimes{
		User:    t.User,
		Nice:    t.Nice,
		System:  t.System,
		Idle:    t.Idle,
		Iowait:  t.Iowait,
		Irq:     t.Irq,
		Softirq: t.Softirq,
		Steal:   t.Steal,
	}, nil
}

// Memory returns the current memory accounting figures.
func (SystemSource) Memory() (MemInfo, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemInfo{}, fmt.Errorf("probe: read memory stats: %w", err)
	}
	return MemInfo{
		Total:   vm.Total,
		Free:    vm.Free,
		Buffers: vm.Buffers,
		Cached:  vm.Cached,
	}, nil
}

// Mounts enumerates mounted filesystems. Pseudo filesystems are dropped
// before statting; mounts whose stat call fails are skipped.
func (SystemSource) Mounts() ([]Mount, error) {
	parts, err := disk.Partitions(true)
	if err != nil {
		return nil, fmt.Errorf("probe: enumerate mounts: %w", err)
	}

	mounts := make([]Mount, 0, len(parts))
	for _, p := range parts {
		if pseudoFstypes[p.Fstype] {
			continue
		}
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			// Unreadable mount: skipped, never fatal.
			continue
		}
		mounts = append(mounts, Mount{
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
			Total:      usage.Total,
			Free:       usage.Free,
		})
	}
	return mounts, nil
}

// Compile-time interface compliance check.
var _ Source = SystemSource{}
