// Package probe reads raw utilization data from the operating system and
// derives the percentages syswatch samples. The Source interface separates
// "give me current counters" from the sampling math, so the math can be
// tested against fixtures instead of live OS state.
package probe

// MemoryUnavailable is the sentinel recorded when the memory source cannot
// be read at all.
const MemoryUnavailable = -1.0

// CPUTimes is a snapshot of the cumulative per-state CPU counters. The
// counters are monotonically non-decreasing between reboots; a single
// snapshot carries no percentage meaning, only the delta between two does.
type CPUTimes struct {
	User    float64
	Nice    float64
	System  float64
	Idle    float64
	Iowait  float64
	Irq     float64
	Softirq float64
	Steal   float64
}

// MemInfo is a point-in-time memory accounting reading, in bytes.
type MemInfo struct {
	Total   uint64
	Free    uint64
	Buffers uint64
	Cached  uint64
}

// Mount describes one mounted filesystem with its space totals in bytes.
type Mount struct {
	Mountpoint string
	Fstype     string
	Total      uint64
	Free       uint64
}

// Source provides the raw readings the samplers derive percentages from.
type Source interface {
	// CPUTimes returns the current cumulative CPU counters.
	CPUTimes() (CPUTimes, error)

	// Memory returns a point-in-time memory accounting reading.
	Memory() (MemInfo, error)

	// Mounts enumerates mounted filesystems with their space totals.
	// Mounts that cannot be statted are omitted, not reported as errors.
	Mounts() ([]Mount, error)
}

// pseudoFstypes are mount types with no backing storage. They are excluded
// from disk utilization; squashfs is excluded too because those mounts are
// read-only and permanently full, which would pin the maximum at 100%.
var pseudoFstypes = map[string]bool{
	"proc":        true,
	"procfs":      true,
	"sysfs":       true,
	"tmpfs":       true,
	"devtmpfs":    true,
	"devpts":      true,
	"cgroup":      true,
	"cgroup2":     true,
	"debugfs":     true,
	"tracefs":     true,
	"securityfs":  true,
	"pstore":      true,
	"bpf":         true,
	"mqueue":      true,
	"hugetlbfs":   true,
	"configfs":    true,
	"fusectl":     true,
	"binfmt_misc": true,
	"autofs":      true,
	"nsfs":        true,
	"rpc_pipefs":  true,
	"ramfs":       true,
	"squashfs":    true,
}

// CPUPercent derives percent busy from two cumulative counter snapshots.
// Idle time includes iowait. Returns 0 when no time elapsed between the
// snapshots (or the counters went backwards, e.g. across a reboot).
func CPUPercent(prev, cur CPUTimes) float64 {
	prevIdle := prev.Idle + prev.Iowait
	idle := cur.Idle + cur.Iowait

	prevBusy := prev.User + prev.Nice + prev.System + prev.Irq + prev.Softirq + prev.Steal
	busy := cur.User + cur.Nice + cur.System + cur.Irq + cur.Softirq + cur.Steal

	totald := (idle + busy) - (prevIdle + prevBusy)
	idled := idle - prevIdle

	if totald <= 0 {
		return 0
	}
	return (totald - idled) * 100.0 / totald
}

// MemoryPercent derives percent used from a memory reading:
// 100 * (Total - Free - Buffers - Cached) / Total, 0 when Total is 0.
func MemoryPercent(mi MemInfo) float64 {
	if mi.Total == 0 {
		return 0
	}
	reclaimable := mi.Free + mi.Buffers + mi.Cached
	if reclaimable >= mi.Total {
		return 0
	}
	used := mi.Total - reclaimable
	return float64(used) * 100.0 / float64(mi.Total)
}

// MaxDiskPercent returns the highest percent-used across real (non-pseudo)
// mounts, or 0 when there are none. Used space is clamped at 0 so a mount
// reporting more free than total blocks cannot go negative.
func MaxDiskPercent(mounts []Mount) float64 {
	var maxPct float64
	for _, m := range mounts {
		if pseudoFstypes[m.Fstype] {
			continue
		}
		if m.Total == 0 {
			continue
		}
		var used uint64
		if m.Total > m.Free {
			used = m.Total - m.Free
		}
		pct := float64(used) * 100.0 / float64(m.Total)
		if pct > maxPct {
			maxPct = pct
		}
	}
	return maxPct
}
