// Package sink appends timestamped metric lines, alert lines, and dump
// blocks to the append-only metrics log. The line formats are a durable
// contract parsed by external tooling and must not change.
package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/syswatch/state"
)

// timeFormat is the timestamp layout used on every line.
const timeFormat = "2006-01-02 15:04:05"

// MetricsLog is the append-only metrics log writer. Every call opens the
// file in append mode, writes, and closes, so the file can be rotated or
// truncated externally at any time. A mutex serializes writers.
type MetricsLog struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// New creates a MetricsLog writing to path. If logger is nil, a no-op
// logger is used.
func New(path string, logger *slog.Logger) *MetricsLog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MetricsLog{path: path, logger: logger}
}

// SetPath switches the log to a new file path. Used on configuration
// reload; in-flight writes finish against the old path.
func (l *MetricsLog) SetPath(path string) {
	l.mu.Lock()
	l.path = path
	l.mu.Unlock()
}

// Path returns the current log file path.
func (l *MetricsLog) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// AppendSample writes one metric line:
//
//	2006-01-02 15:04:05 cpu=12.34 mem=56.78 disk=90.12
func (l *MetricsLog) AppendSample(s state.Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(formatSample(s) + "\n")
}

// AppendAlert writes one alert line naming the offending log file:
//
//	2006-01-02 15:04:05 ALERT log=/var/log/app.log contains error pattern
func (l *MetricsLog) AppendAlert(path string) error {
	line := fmt.Sprintf("%s ALERT log=%s contains error pattern\n",
		time.Now().Format(timeFormat), path)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(line)
}

// DumpAll snapshots the ring and writes a bracketed block of all held
// samples. The same timestamp appears on both markers.
func (l *MetricsLog) DumpAll(ring *state.Ring) error {
	samples := ring.Snapshot()
	now := time.Now().Format(timeFormat)

	var b strings.Builder
	fmt.Fprintf(&b, "%s DUMP START (last %d samples)\n", now, len(samples))
	for _, s := range samples {
		b.WriteString(formatSample(s))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s DUMP END\n", now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.write(b.String()); err != nil {
		return err
	}
	l.logger.Info("dumped ring buffer to metrics log", "samples", len(samples))
	return nil
}

// formatSample renders one metric line without the trailing newline.
func formatSample(s state.Sample) string {
	return fmt.Sprintf("%s cpu=%.2f mem=%.2f disk=%.2f",
		s.Timestamp.Format(timeFormat), s.CPU, s.Memory, s.Disk)
}

// write appends text to the log file. Caller holds the mutex.
func (l *MetricsLog) write(text string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", l.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("sink: write %s: %w", l.path, err)
	}
	return nil
}
