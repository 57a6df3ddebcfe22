package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"gitlab.com/tinyland/lab/syswatch/config"
	"gitlab.com/tinyland/lab/syswatch/logtail"
	"gitlab.com/tinyland/lab/syswatch/probe"
	"gitlab.com/tinyland/lab/syswatch/sampler"
	"gitlab.com/tinyland/lab/syswatch/server"
	"gitlab.com/tinyland/lab/syswatch/sink"
	"gitlab.com/tinyland/lab/syswatch/state"
)

// daemon owns the shared state and workers of a syswatch instance and the
// shutdown sequencing between them. All shared objects are constructed
// here and passed by reference; nothing is a package global.
type daemon struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	run     *state.Running
	ring    *state.Ring
	metrics *state.Metrics
	sink    *sink.MetricsLog
	watcher *logtail.Watcher
	source  probe.Source

	// Samplers are constructed in start, before the signal dispatcher
	// launches, so reload can adjust their periods.
	cpuMem *sampler.CPUMem
	disk   *sampler.Disk

	pidFile string

	// reloadMu serializes configuration reloads.
	reloadMu sync.Mutex
}

// newDaemon builds a daemon from validated configuration. The ring buffer
// is allocated here: failure is fatal before any worker starts.
func newDaemon(cfg *config.Config, cfgPath string, logger *slog.Logger) (*daemon, error) {
	ring, err := state.NewRing(cfg.RingSize)
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	metricsLog := sink.New(cfg.MetricsLog, logger)

	return &daemon{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		run:     state.NewRunning(),
		ring:    ring,
		metrics: state.NewMetrics(),
		sink:    metricsLog,
		watcher: logtail.New(cfg.LogFiles, metricsLog, logger),
		source:  probe.SystemSource{},
		pidFile: filepath.Join(filepath.Dir(cfg.MetricsLog), "syswatch.pid"),
	}, nil
}

// start runs the daemon until a terminate signal (or stop) flips the
// running flag, then joins every worker in a fixed order and performs one
// final dump.
func (d *daemon) start() error {
	if running, pid := d.isRunning(); running {
		return fmt.Errorf("daemon already running (PID %d)", pid)
	}
	if err := d.writePIDFile(); err != nil {
		return err
	}
	defer d.removePIDFile()

	d.cpuMem = sampler.NewCPUMem(d.source, d.ring, d.metrics, d.sink, d.cfg.CPUMemPeriod(), d.logger)
	d.disk = sampler.NewDisk(d.source, d.ring, d.metrics, d.sink, d.cfg.DiskPeriod(), d.logger)
	status := server.New(d.cfg.Port, d.ring, d.metrics, d.logger)

	// The dispatcher goroutine is the only consumer of control signals;
	// Go routes them onto this channel instead of interrupting other
	// goroutines, which is the runtime's version of masking them
	// everywhere else.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGHUP)
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		d.dispatchSignals(sigCh)
	}()

	d.logger.Info("syswatch starting",
		"version", version,
		"port", d.cfg.Port,
		"ring_size", d.ring.Cap(),
		"log_files", len(d.cfg.LogFiles),
		"metrics_log", d.sink.Path(),
	)

	cpuMemDone := startWorker(func() { d.cpuMem.Run(d.run) })
	diskDone := startWorker(func() { d.disk.Run(d.run) })
	logDone := startWorker(func() { d.watcher.Run(d.run) })
	netDone := startWorker(func() { status.Run(d.run) })

	// The main goroutine only waits for the stop flag, then joins the
	// workers in a fixed order.
	<-d.run.Done()

	<-cpuMemDone
	<-diskDone
	<-logDone
	<-netDone

	// Unregister and close the signal channel so the dispatcher's range
	// loop terminates even while blocked waiting for a signal.
	signal.Stop(sigCh)
	close(sigCh)
	<-dispatcherDone

	if err := d.sink.DumpAll(d.ring); err != nil {
		d.logger.Error("final metrics dump failed", "error", err)
	}

	d.logger.Info("syswatch stopped")
	return nil
}

// stop flips the running flag, initiating the shutdown sequence.
func (d *daemon) stop() {
	d.run.Stop()
}

// startWorker runs f in a goroutine and returns a channel closed when it
// returns, giving start a fixed-order join.
func startWorker(f func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	return done
}

// dispatchSignals translates control signals into actions on the shared
// state: terminate -> stop, USR1 -> immediate dump, HUP -> config reload.
// It returns when the channel is closed during shutdown.
func (d *daemon) dispatchSignals(ch chan os.Signal) {
	for sig := range ch {
		switch sig {
		case syscall.SIGTERM:
			d.logger.Info("received SIGTERM, shutting down gracefully")
			d.run.Stop()
		case syscall.SIGUSR1:
			d.logger.Info("received SIGUSR1, forcing metrics dump")
			if err := d.sink.DumpAll(d.ring); err != nil {
				d.logger.Error("metrics dump failed", "error", err)
			}
		case syscall.SIGHUP:
			d.logger.Info("received SIGHUP, reloading configuration", "path", d.cfgPath)
			d.reload()
		}
	}
}

// reload re-reads the configuration file and applies what can change at
// runtime: the tailed log file list, the metrics log path, and the
// sampling periods. Ring capacity and the bound port keep their startup
// values.
func (d *daemon) reload() {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	cfg, err := config.LoadConfig(d.cfgPath)
	if err != nil {
		d.logger.Error("config reload failed, keeping current settings", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		d.logger.Error("reloaded config invalid, keeping current settings", "error", err)
		return
	}

	d.watcher.SetPaths(cfg.LogFiles)
	d.sink.SetPath(cfg.MetricsLog)
	if d.cpuMem != nil {
		d.cpuMem.SetPeriod(cfg.CPUMemPeriod())
	}
	if d.disk != nil {
		d.disk.SetPeriod(cfg.DiskPeriod())
	}

	if cfg.RingSize != d.ring.Cap() {
		d.logger.Warn("ring_size change ignored until restart",
			"current", d.ring.Cap(), "requested", cfg.RingSize)
	}
	if cfg.Port != d.cfg.Port {
		d.logger.Warn("port change ignored until restart",
			"current", d.cfg.Port, "requested", cfg.Port)
	}

	d.cfg = cfg
	d.logger.Info("configuration reloaded", "log_files", len(cfg.LogFiles))
}

// writePIDFile records the current PID for singleton enforcement.
func (d *daemon) writePIDFile() error {
	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0o755); err != nil {
		return fmt.Errorf("daemon: create PID file directory: %w", err)
	}
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("daemon: write PID file: %w", err)
	}
	d.logger.Debug("wrote PID file", "path", d.pidFile)
	return nil
}

// removePIDFile removes the PID file on shutdown.
func (d *daemon) removePIDFile() {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		d.logger.Error("failed to remove PID file", "path", d.pidFile, "error", err)
	}
}

// isRunning checks whether another instance already holds the PID file.
// Stale or corrupt PID files are cleaned up.
func (d *daemon) isRunning() (bool, int) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		d.logger.Warn("corrupt PID file, removing", "path", d.pidFile)
		os.Remove(d.pidFile)
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(d.pidFile)
		return false, 0
	}

	// Signal 0 probes for existence without delivering anything.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		d.logger.Warn("stale PID file, removing", "path", d.pidFile, "pid", pid)
		os.Remove(d.pidFile)
		return false, 0
	}

	return true, pid
}
