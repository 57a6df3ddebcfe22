package state

import "sync"

// Metrics holds the latest known cpu/memory/disk utilization, each field
// independently overwritten by whichever sampler computed it last. A single
// lock guards the triple; a condition variable is broadcast on every update
// so consumers can wait for "next change" instead of polling.
//
// Cross-field staleness is expected: the disk field updates on a slower
// period than cpu/memory, and readers may observe a triple mixing sampling
// instants.
type Metrics struct {
	mu      sync.Mutex
	cond    *sync.Cond
	cpu     float64
	memory  float64
	disk    float64
	version uint64
}

// NewMetrics returns a Metrics table with all fields zero.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// SetCPUMem records the latest cpu and memory values and wakes any waiters.
func (m *Metrics) SetCPUMem(cpu, memory float64) {
	m.mu.Lock()
	m.cpu = cpu
	m.memory = memory
	m.version++
	m.cond.Broadcast()
	m.mu.Unlock()
}

// SetDisk records the latest disk value and wakes any waiters.
func (m *Metrics) SetDisk(disk float64) {
	m.mu.Lock()
	m.disk = disk
	m.version++
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Current returns the latest cpu, memory and disk values.
func (m *Metrics) Current() (cpu, memory, disk float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cpu, m.memory, m.disk
}

// Version returns a counter that increments on every update. Pass it to
// AwaitChange to block until the table changes again.
func (m *Metrics) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// AwaitChange blocks until the table has been updated past the seen version
// and returns the new version.
func (m *Metrics) AwaitChange(seen uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.version == seen {
		m.cond.Wait()
	}
	return m.version
}
