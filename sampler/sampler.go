// Package sampler contains the periodic workers that produce metric
// samples: one for CPU and memory utilization, one for disk utilization.
// Each worker runs its own timed loop against a probe.Source and feeds the
// shared ring buffer, the latest-values table, and the metrics log.
package sampler

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/syswatch/probe"
	"gitlab.com/tinyland/lab/syswatch/state"
)

const (
	// DefaultCPUMemPeriod is the default sampling period for CPU/memory.
	DefaultCPUMemPeriod = 5 * time.Second

	// DefaultDiskPeriod is the default sampling period for disk.
	DefaultDiskPeriod = 10 * time.Second
)

// Appender receives every successfully composed sample.
type Appender interface {
	AppendSample(s state.Sample) error
}

// CPUMem samples CPU utilization from successive cumulative counter
// snapshots and memory utilization from a point-in-time reading.
type CPUMem struct {
	source  probe.Source
	ring    *state.Ring
	metrics *state.Metrics
	sink    Appender
	logger  *slog.Logger

	mu     sync.Mutex
	period time.Duration
	kick   chan struct{} // wakes Run when the period changes

	prev   probe.CPUTimes
	seeded bool
}

// NewCPUMem creates the CPU/memory sampler. A period <= 0 falls back to
// DefaultCPUMemPeriod; a nil logger discards output.
func NewCPUMem(source probe.Source, ring *state.Ring, metrics *state.Metrics, sink Appender, period time.Duration, logger *slog.Logger) *CPUMem {
	if period <= 0 {
		period = DefaultCPUMemPeriod
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CPUMem{
		source:  source,
		ring:    ring,
		metrics: metrics,
		sink:    sink,
		period:  period,
		kick:    make(chan struct{}, 1),
		logger:  logger,
	}
}

// Period returns the current sampling period.
func (w *CPUMem) Period() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.period
}

// SetPeriod changes the sampling period, taking effect immediately even
// while Run is waiting out the old one. A period <= 0 is ignored.
func (w *CPUMem) SetPeriod(p time.Duration) {
	if p <= 0 {
		return
	}
	w.mu.Lock()
	w.period = p
	w.mu.Unlock()
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run loops until the running flag stops. The first counter reading only
// seeds the baseline; samples are emitted once a delta exists to compare
// against.
func (w *CPUMem) Run(run *state.Running) {
	if prev, err := w.source.CPUTimes(); err == nil {
		w.prev = prev
		w.seeded = true
	} else {
		w.logger.Warn("cpu baseline read failed, will retry", "error", err)
	}

	period := w.Period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-run.Done():
			return
		case <-w.kick:
			if p := w.Period(); p != period {
				period = p
				ticker.Reset(p)
			}
		case <-ticker.C:
			w.sample()
		}
	}
}

// sample performs one cycle: read counters, derive percentages, publish.
// An unreadable counter source skips the whole cycle; an unreadable memory
// source records the unavailable sentinel. Neither is ever fatal.
func (w *CPUMem) sample() {
	cur, err := w.source.CPUTimes()
	if err != nil {
		w.logger.Warn("cpu counters unreadable, skipping cycle", "error", err)
		return
	}
	if !w.seeded {
		w.prev = cur
		w.seeded = true
		return
	}

	cpuPct := probe.CPUPercent(w.prev, cur)
	w.prev = cur

	memPct := probe.MemoryUnavailable
	if mi, err := w.source.Memory(); err != nil {
		w.logger.Warn("memory stats unreadable", "error", err)
	} else {
		memPct = probe.MemoryPercent(mi)
	}

	// Disk is carried over from whatever the disk sampler last computed.
	_, _, diskPct := w.metrics.Current()

	s := state.Sample{
		CPU:       cpuPct,
		Memory:    memPct,
		Disk:      diskPct,
		Timestamp: time.Now(),
	}

	w.ring.Push(s)
	w.metrics.SetCPUMem(cpuPct, memPct)
	if err := w.sink.AppendSample(s); err != nil {
		w.logger.Error("metrics log append failed", "error", err)
	}

	w.logger.Debug("cpu/mem sampled", "cpu", cpuPct, "mem", memPct)
}

// Disk samples the maximum utilization across mounted real filesystems.
type Disk struct {
	source  probe.Source
	ring    *state.Ring
	metrics *state.Metrics
	sink    Appender
	logger  *slog.Logger

	mu     sync.Mutex
	period time.Duration
	kick   chan struct{}
}

// NewDisk creates the disk sampler. A period <= 0 falls back to
// DefaultDiskPeriod; a nil logger discards output.
func NewDisk(source probe.Source, ring *state.Ring, metrics *state.Metrics, sink Appender, period time.Duration, logger *slog.Logger) *Disk {
	if period <= 0 {
		period = DefaultDiskPeriod
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Disk{
		source:  source,
		ring:    ring,
		metrics: metrics,
		sink:    sink,
		period:  period,
		kick:    make(chan struct{}, 1),
		logger:  logger,
	}
}

// Period returns the current sampling period.
func (w *Disk) Period() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.period
}

// SetPeriod changes the sampling period, taking effect immediately even
// while Run is waiting out the old one. A period <= 0 is ignored.
func (w *Disk) SetPeriod(p time.Duration) {
	if p <= 0 {
		return
	}
	w.mu.Lock()
	w.period = p
	w.mu.Unlock()
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run loops until the running flag stops.
func (w *Disk) Run(run *state.Running) {
	period := w.Period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-run.Done():
			return
		case <-w.kick:
			if p := w.Period(); p != period {
				period = p
				ticker.Reset(p)
			}
		case <-ticker.C:
			w.sample()
		}
	}
}

// sample performs one cycle: enumerate mounts, take the maximum percent
// used, publish. Enumeration failure skips the cycle.
func (w *Disk) sample() {
	mounts, err := w.source.Mounts()
	if err != nil {
		w.logger.Warn("mount enumeration failed, skipping cycle", "error", err)
		return
	}

	diskPct := probe.MaxDiskPercent(mounts)
	w.metrics.SetDisk(diskPct)

	// CPU and memory are carried over from the other sampler's last values.
	cpuPct, memPct, _ := w.metrics.Current()

	s := state.Sample{
		CPU:       cpuPct,
		Memory:    memPct,
		Disk:      diskPct,
		Timestamp: time.Now(),
	}

	w.ring.Push(s)
	if err := w.sink.AppendSample(s); err != nil {
		w.logger.Error("metrics log append failed", "error", err)
	}

	w.logger.Debug("disk sampled", "disk", diskPct, "mounts", len(mounts))
}
