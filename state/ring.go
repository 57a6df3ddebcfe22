// Package state holds the shared mutable state of the syswatch daemon: the
// ring buffer of recent metric samples, the latest-values table updated by
// the samplers, and the one-shot running flag every worker loop polls.
//
// All of it is created once at startup and passed by reference to the
// workers; nothing here is a package-level global, so tests can run several
// independent instances side by side.
package state

import (
	"fmt"
	"sync"
	"time"
)

// Sample is one timestamped utilization reading. Percent fields are 0-100.
// Memory is MemoryUnavailable (-1) when the memory source could not be read
// for that cycle.
type Sample struct {
	CPU       float64
	Memory    float64
	Disk      float64
	Timestamp time.Time
}

// Ring is a fixed-capacity circular buffer of Samples. Once full, each push
// overwrites the oldest entry. Safe for concurrent use by multiple samplers
// and readers.
type Ring struct {
	mu    sync.Mutex
	buf   []Sample
	head  int // next write position
	count int
}

// NewRing creates a Ring holding at most capacity samples.
// Capacity must be at least 1.
func NewRing(capacity int) (*Ring, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("state: ring capacity must be >= 1, got %d", capacity)
	}
	return &Ring{buf: make([]Sample, capacity)}, nil
}

// Push inserts a sample at the next write position, evicting the oldest
// entry once the ring is at capacity.
func (r *Ring) Push(s Sample) {
	r.mu.Lock()
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Snapshot returns a copy of all held samples, oldest first. The lock is
// held only for the duration of the copy, so producers are never blocked
// across anything slower than a memcpy.
func (r *Ring) Snapshot() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		idx := (r.head + len(r.buf) - r.count + i) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.buf)
}
