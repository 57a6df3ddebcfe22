// Package config provides configuration parsing for syswatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is absent from the configuration file.
const (
	DefaultPort       = 9999
	DefaultMetricsLog = "./metrics.log"
	DefaultRingSize   = 100
)

// Config represents the syswatch daemon configuration.
//
// On reload (SIGHUP) only the log file list, the metrics log path, and the
// sampling intervals take effect: the ring buffer and the TCP listener are
// constructed at startup and are not resized or rebound at runtime.
type Config struct {
	// LogFiles is the list of log file paths to tail for error patterns.
	LogFiles []string `yaml:"log_files"`

	// Port is the TCP port the status server listens on.
	Port int `yaml:"port"`

	// MetricsLog is the path of the append-only metrics log file.
	MetricsLog string `yaml:"metrics_log"`

	// RingSize is the capacity of the in-memory sample ring buffer.
	RingSize int `yaml:"ring_size"`

	// CPUMemInterval is a duration string (e.g. "5s") between CPU/memory
	// sampling cycles.
	CPUMemInterval string `yaml:"cpu_mem_interval"`

	// DiskInterval is a duration string between disk sampling cycles.
	DiskInterval string `yaml:"disk_interval"`
}

// DefaultConfig returns a Config populated with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		LogFiles:       []string{},
		Port:           DefaultPort,
		MetricsLog:     DefaultMetricsLog,
		RingSize:       DefaultRingSize,
		CPUMemInterval: "5s",
		DiskInterval:   "10s",
	}
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file yields the defaults, matching the original daemon's
// behavior of running without a config file.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return config, nil
}

// Validate checks the configuration for required fields and sane ranges.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port must be in 1-65535, got %d", c.Port)
	}
	if c.MetricsLog == "" {
		return fmt.Errorf("config: metrics_log is required")
	}
	if c.RingSize < 1 {
		return fmt.Errorf("config: ring_size must be >= 1, got %d", c.RingSize)
	}
	if c.CPUMemInterval != "" {
		if _, err := time.ParseDuration(c.CPUMemInterval); err != nil {
			return fmt.Errorf("config: cpu_mem_interval: %w", err)
		}
	}
	if c.DiskInterval != "" {
		if _, err := time.ParseDuration(c.DiskInterval); err != nil {
			return fmt.Errorf("config: disk_interval: %w", err)
		}
	}
	return nil
}

// CPUMemPeriod returns the CPU/memory sampling period, falling back to 5s
// when unset or unparseable.
func (c *Config) CPUMemPeriod() time.Duration {
	return parsePeriod(c.CPUMemInterval, 5*time.Second)
}

// DiskPeriod returns the disk sampling period, falling back to 10s when
// unset or unparseable.
func (c *Config) DiskPeriod() time.Duration {
	return parsePeriod(c.DiskInterval, 10*time.Second)
}

func parsePeriod(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SaveConfig writes the configuration to a YAML file, creating parent
// directories as needed.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
