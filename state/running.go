package state

import (
	"sync"
	"sync/atomic"
)

// Running is the process-wide stop flag. It starts in the running position
// and flips exactly once; nothing ever sets it back. Worker loops either
// poll Running() once per iteration or select on Done() inside their waits,
// which bounds shutdown latency to one period or timeout per worker.
type Running struct {
	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewRunning returns a flag in the running position.
func NewRunning() *Running {
	return &Running{done: make(chan struct{})}
}

// Stop flips the flag. Safe to call more than once; only the first call
// has any effect.
func (r *Running) Stop() {
	r.once.Do(func() {
		r.stopped.Store(true)
		close(r.done)
	})
}

// Running reports whether the flag is still in the running position.
func (r *Running) Running() bool {
	return !r.stopped.Load()
}

// Done returns a channel closed when Stop is called, for use in selects
// alongside tickers and timeouts.
func (r *Running) Done() <-chan struct{} {
	return r.done
}
