// syswatch is a host monitoring daemon. It samples CPU, memory and disk
// utilization on independent schedules, tails configured log files for
// error patterns across rotations, appends everything to a metrics log,
// and serves the latest values plus recent history as JSON over TCP.
//
// Usage:
//
//	syswatch [flags]
//
// Flags:
//
//	-config string  Path to YAML configuration file (default ./syswatch.yaml)
//	-status         Fetch current status from a running daemon and print gauges
//	-json           With -status, print the raw JSON document instead
//	-top            Live terminal view polling a running daemon
//	-addr string    Daemon address for -status/-top (default 127.0.0.1:<port>)
//	-verbose        Enable debug logging
//	-version        Print version and exit
//
// With no mode flag, syswatch runs the daemon in the foreground. Signals:
// SIGTERM shuts down gracefully, SIGUSR1 forces a metrics dump, SIGHUP
// reloads the configuration.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gitlab.com/tinyland/lab/syswatch/client"
	"gitlab.com/tinyland/lab/syswatch/config"
	"gitlab.com/tinyland/lab/syswatch/tui"
	"gitlab.com/tinyland/lab/syswatch/widgets"
)

func main() {
	var (
		configPath  = flag.String("config", "./syswatch.yaml", "Path to YAML configuration file")
		runStatus   = flag.Bool("status", false, "Fetch current status from a running daemon")
		rawJSON     = flag.Bool("json", false, "With -status, print the raw JSON document")
		runTop      = flag.Bool("top", false, "Live terminal view polling a running daemon")
		addrFlag    = flag.String("addr", "", "Daemon address for -status/-top (default 127.0.0.1:<port>)")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("syswatch %s (%s) built %s\n", version, commit, date)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	addr := *addrFlag
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}

	if *runStatus {
		if err := printStatus(addr, *rawJSON); err != nil {
			fmt.Fprintf(os.Stderr, "status fetch failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *runTop {
		if err := tui.Run(addr); err != nil {
			fmt.Fprintf(os.Stderr, "live view error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	d, err := newDaemon(cfg, *configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon init failed: %v\n", err)
		os.Exit(1)
	}
	if err := d.start(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon error: %v\n", err)
		os.Exit(1)
	}
}

// printStatus fetches one status document and renders it, either as raw
// JSON or as gauges with a sample count.
func printStatus(addr string, raw bool) error {
	st, err := client.Fetch(addr, client.DefaultTimeout)
	if err != nil {
		return err
	}

	if raw {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(widgets.Gauge("cpu", st.Current.CPU, 30))
	fmt.Println(widgets.Gauge("mem", st.Current.Memory, 30))
	fmt.Println(widgets.Gauge("disk", st.Current.Disk, 30))
	fmt.Printf("%d samples held\n", len(st.Samples))
	return nil
}
