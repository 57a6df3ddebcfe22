package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/syswatch/config"
	"gitlab.com/tinyland/lab/syswatch/probe"
	"gitlab.com/tinyland/lab/syswatch/sampler"
)

// tickingSource returns counters that advance on every read so the cpu
// worker always has a fresh delta.
type tickingSource struct {
	calls float64
}

func (s *tickingSource) CPUTimes() (probe.CPUTimes, error) {
	s.calls++
	return probe.CPUTimes{User: s.calls * 10, Idle: s.calls * 90}, nil
}

func (s *tickingSource) Memory() (probe.MemInfo, error) {
	return probe.MemInfo{Total: 1000, Free: 400, Buffers: 100, Cached: 100}, nil
}

func (s *tickingSource) Mounts() ([]probe.Mount, error) {
	return []probe.Mount{{Mountpoint: "/", Fstype: "ext4", Total: 1000, Free: 250}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.MetricsLog = filepath.Join(dir, "metrics.log")
	cfg.RingSize = 10
	cfg.CPUMemInterval = "10ms"
	cfg.DiskInterval = "10ms"
	return cfg, filepath.Join(dir, "syswatch.yaml")
}

func TestDaemonRunAndShutdown(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Port = 0 // ephemeral, avoids collisions between test runs

	d, err := newDaemon(cfg, cfgPath, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	d.source = &tickingSource{}

	done := make(chan error, 1)
	go func() { done <- d.start() }()

	// Let a few sampling cycles land, then stop.
	time.Sleep(100 * time.Millisecond)
	d.stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	data, err := os.ReadFile(cfg.MetricsLog)
	if err != nil {
		t.Fatalf("read metrics log: %v", err)
	}
	log := string(data)

	if !strings.Contains(log, "cpu=10.00 mem=40.00") {
		t.Errorf("metrics log missing sampled lines:\n%s", log)
	}
	// Shutdown appends one final dump block.
	if !strings.Contains(log, "DUMP START") || !strings.Contains(log, "DUMP END") {
		t.Errorf("metrics log missing final dump block:\n%s", log)
	}

	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Errorf("PID file %s not removed on shutdown", d.pidFile)
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg, cfgPath := testConfig(t)

	d, err := newDaemon(cfg, cfgPath, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	// Simulate a live instance: our own PID always passes the probe.
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write PID file: %v", err)
	}

	if err := d.start(); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("start with live PID file = %v, want already-running error", err)
	}
}

func TestDaemonCleansStalePIDFile(t *testing.T) {
	cfg, cfgPath := testConfig(t)

	d, err := newDaemon(cfg, cfgPath, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	// PID far above any live process on a test machine.
	if err := os.WriteFile(d.pidFile, []byte("999999999"), 0o644); err != nil {
		t.Fatalf("write PID file: %v", err)
	}

	running, _ := d.isRunning()
	if running {
		t.Error("stale PID reported as running")
	}
	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Error("stale PID file not cleaned up")
	}
}

func TestDaemonCleansCorruptPIDFile(t *testing.T) {
	cfg, cfgPath := testConfig(t)

	d, err := newDaemon(cfg, cfgPath, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	if err := os.WriteFile(d.pidFile, []byte("not a pid"), 0o644); err != nil {
		t.Fatalf("write PID file: %v", err)
	}

	if running, _ := d.isRunning(); running {
		t.Error("corrupt PID reported as running")
	}
	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Error("corrupt PID file not cleaned up")
	}
}

func TestReloadAppliesPathsKeepsRingAndPort(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	dir := filepath.Dir(cfgPath)

	d, err := newDaemon(cfg, cfgPath, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	next := config.DefaultConfig()
	next.LogFiles = []string{filepath.Join(dir, "app.log")}
	next.MetricsLog = filepath.Join(dir, "relocated.log")
	next.RingSize = 500 // must be ignored until restart
	if err := config.SaveConfig(next, cfgPath); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	d.reload()

	if got := d.watcher.Paths(); len(got) != 1 || got[0] != next.LogFiles[0] {
		t.Errorf("watcher paths after reload = %v, want %v", got, next.LogFiles)
	}
	if d.sink.Path() != next.MetricsLog {
		t.Errorf("sink path after reload = %q, want %q", d.sink.Path(), next.MetricsLog)
	}
	if d.ring.Cap() != 10 {
		t.Errorf("ring capacity changed on reload: %d", d.ring.Cap())
	}
}

func TestReloadAppliesSamplingPeriods(t *testing.T) {
	cfg, cfgPath := testConfig(t)

	d, err := newDaemon(cfg, cfgPath, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	d.source = &tickingSource{}
	d.cpuMem = sampler.NewCPUMem(d.source, d.ring, d.metrics, d.sink, cfg.CPUMemPeriod(), d.logger)
	d.disk = sampler.NewDisk(d.source, d.ring, d.metrics, d.sink, cfg.DiskPeriod(), d.logger)

	next := config.DefaultConfig()
	next.MetricsLog = cfg.MetricsLog
	next.CPUMemInterval = "250ms"
	next.DiskInterval = "700ms"
	if err := config.SaveConfig(next, cfgPath); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	d.reload()

	if got := d.cpuMem.Period(); got != 250*time.Millisecond {
		t.Errorf("cpu/mem period after reload = %v, want 250ms", got)
	}
	if got := d.disk.Period(); got != 700*time.Millisecond {
		t.Errorf("disk period after reload = %v, want 700ms", got)
	}
}

func TestReloadInvalidConfigKeepsCurrentSettings(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.LogFiles = []string{"/var/log/app.log"}

	d, err := newDaemon(cfg, cfgPath, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	bad := config.DefaultConfig()
	bad.Port = 0
	if err := config.SaveConfig(bad, cfgPath); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	d.reload()

	if got := d.watcher.Paths(); len(got) != 1 || got[0] != "/var/log/app.log" {
		t.Errorf("invalid reload changed watcher paths: %v", got)
	}
	if d.sink.Path() != cfg.MetricsLog {
		t.Errorf("invalid reload changed sink path: %q", d.sink.Path())
	}
}
