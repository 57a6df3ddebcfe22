// Package logtail follows a set of log files for an error signature. Files
// are opened at end-of-file so only newly appended content is scanned, and
// rotation is detected by comparing the on-disk file identity against the
// held handle, so a rotated or recreated file is picked up within one poll
// cycle without re-reading old content.
//
// Matching operates on raw read chunks with no line framing, so a
// signature split across two reads can be missed. This mirrors the
// documented behavior of the original watcher and is covered by tests as
// specified rather than silently fixed.
package logtail

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"gitlab.com/tinyland/lab/syswatch/state"
)

const (
	// readChunkSize bounds each read from a ready handle.
	readChunkSize = 4096

	// pollTimeout bounds the multiplexed wait so the loop stays
	// responsive to shutdown even with no log activity.
	pollTimeout = 2 * time.Second

	// idleSleep is the wait used when no paths are open at all.
	idleSleep = time.Second
)

// signatures are the substrings that trigger an alert, matched
// case-insensitively against each read chunk.
var signatures = [][]byte{[]byte("error"), []byte("fail")}

// Alerter receives an alert line for the metrics log when a watched file
// matches the signature.
type Alerter interface {
	AppendAlert(path string) error
}

// entry tracks one configured path and, when open, its read handle plus
// the identity of the file that handle refers to.
type entry struct {
	path string
	file *os.File
	info os.FileInfo
}

// Watcher multiplexes over the configured log files. Run drives the poll
// loop from a single goroutine; SetPaths may be called concurrently from
// the control plane.
type Watcher struct {
	mu      sync.Mutex
	entries []*entry
	retired []*entry // entries dropped from the watch list, closed by the Run goroutine
	sink    Alerter
	logger  *slog.Logger
}

// New creates a Watcher over the given paths. Paths that do not exist yet
// are retried every cycle. A nil logger discards output.
func New(paths []string, sink Alerter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := &Watcher{sink: sink, logger: logger}
	for _, p := range paths {
		w.entries = append(w.entries, &entry{path: p})
	}
	return w
}

// SetPaths replaces the watched path list, keeping open handles for paths
// that remain. Removed entries are queued whole for the Run goroutine to
// close at the start of its next cycle; their file and info fields are
// never written here, since the Run goroutine may be mid-cycle holding
// them outside the lock.
func (w *Watcher) SetPaths(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing := make(map[string]*entry, len(w.entries))
	for _, e := range w.entries {
		existing[e.path] = e
	}

	var next []*entry
	for _, p := range paths {
		if e, ok := existing[p]; ok {
			next = append(next, e)
			delete(existing, p)
			continue
		}
		next = append(next, &entry{path: p})
	}

	for _, e := range existing {
		if e.file != nil {
			w.retired = append(w.retired, e)
		}
	}

	w.entries = next
}

// Paths returns the currently watched path list.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.path
	}
	return out
}

// Run drives poll cycles until the running flag stops, then closes every
// open handle.
func (w *Watcher) Run(run *state.Running) {
	for run.Running() {
		if !w.cycle() {
			// Nothing open: idle briefly, staying responsive to shutdown.
			select {
			case <-run.Done():
			case <-time.After(idleSleep):
			}
		}
	}
	w.closeAll()
}

// cycle performs one poll cycle: refresh handles, wait on all of them with
// a bounded timeout, drain whichever became ready. Returns false when no
// handle was open so no multiplexed wait was performed.
func (w *Watcher) cycle() bool {
	open := w.refresh()
	if len(open) == 0 {
		return false
	}

	fds := make([]unix.PollFd, len(open))
	for i, e := range open {
		fds[i] = unix.PollFd{
			Fd:     int32(e.file.Fd()),
			Events: unix.POLLIN | unix.POLLPRI,
		}
	}

	n, err := unix.Poll(fds, int(pollTimeout.Milliseconds()))
	if err != nil {
		if err != unix.EINTR {
			w.logger.Warn("poll failed", "error", err)
		}
		return true
	}
	if n == 0 {
		return true
	}

	for i, e := range open {
		if fds[i].Revents&(unix.POLLIN|unix.POLLPRI) != 0 {
			w.drain(e)
		}
	}
	return true
}

// refresh closes retired handles, opens any unopened path, re-opens any
// path whose on-disk identity no longer matches the held handle, and
// returns the entries holding open handles.
func (w *Watcher) refresh() []*entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.retired {
		e.file.Close()
		e.file = nil
		e.info = nil
	}
	w.retired = nil

	var open []*entry
	for _, e := range w.entries {
		if e.file == nil {
			w.open(e)
		} else if cur, err := os.Stat(e.path); err == nil && !os.SameFile(e.info, cur) {
			// Rotated or recreated: drop the stale handle, follow the
			// new file from its current end. A stat failure keeps the
			// handle; the next cycle re-checks.
			w.logger.Info("log file rotated, reopening", "path", e.path)
			e.file.Close()
			e.file = nil
			e.info = nil
			w.open(e)
		}
		if e.file != nil {
			open = append(open, e)
		}
	}
	return open
}

// open tries to open the entry's path and seek to end-of-file, recording
// the opened file's identity. Failure leaves the entry unopened; it is
// retried every cycle.
func (w *Watcher) open(e *entry) {
	f, err := os.Open(e.path)
	if err != nil {
		w.logger.Debug("log open failed, will retry", "path", e.path, "error", err)
		return
	}
	info, err := f.Stat()
	if err != nil {
		w.logger.Warn("log stat failed", "path", e.path, "error", err)
		f.Close()
		return
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		w.logger.Warn("log seek failed", "path", e.path, "error", err)
		f.Close()
		return
	}
	e.file = f
	e.info = info
	w.logger.Info("following log file", "path", e.path)
}

// drain reads all currently available bytes from a ready handle, scanning
// each chunk for the alert signature.
func (w *Watcher) drain(e *entry) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := e.file.Read(buf)
		if n > 0 && matches(buf[:n]) {
			w.alert(e.path)
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// matches reports whether the chunk contains any alert signature,
// case-insensitively.
func matches(chunk []byte) bool {
	lower := bytes.ToLower(chunk)
	for _, sig := range signatures {
		if bytes.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// alert reports a signature hit on the diagnostic stream and appends the
// corresponding line to the metrics log.
func (w *Watcher) alert(path string) {
	w.logger.Warn("alert: log contains error pattern", "path", path)
	if w.sink == nil {
		return
	}
	if err := w.sink.AppendAlert(path); err != nil {
		w.logger.Error("alert append failed", "path", path, "error", err)
	}
}

// closeAll closes every open or retired handle. Called once on shutdown.
func (w *Watcher) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.retired {
		e.file.Close()
		e.file = nil
		e.info = nil
	}
	w.retired = nil
	for _, e := range w.entries {
		if e.file != nil {
			e.file.Close()
			e.file = nil
			e.info = nil
		}
	}
}
