// Package config provides configuration management for GoThreadPool.
// It supports JSON and YAML configuration loading with safe defaults for
// CPU-bound workloads.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable parameters for the thread pool host.
// The struct is designed to be loaded once at startup and then shared
// across goroutines as a read-only value, making it inherently
// thread-safe after initialization.
type Config struct {
	// ThreadCount is the number of persistent workers. A negative value
	// selects the platform default (one worker per logical CPU).
	ThreadCount int `json:"thread_count" yaml:"thread_count"`

	// UseNativeLowPriorityThreads selects the low-priority execution
	// strategy. When true, every low-priority task runs on a dedicated
	// short-lived thread and never occupies a pool worker. When false,
	// low-priority work shares the workers under the quota derived from
	// LowPriorityRatio.
	UseNativeLowPriorityThreads bool `json:"use_native_low_priority_threads" yaml:"use_native_low_priority_threads"`

	// LowPriorityRatio is the fraction of workers that may run
	// low-priority work at once, in (0, 1]. The quota is clamped to at
	// least one worker. Ignored when UseNativeLowPriorityThreads is true.
	LowPriorityRatio float64 `json:"low_priority_ratio" yaml:"low_priority_ratio"`

	// DashboardAddr is the listen address of the introspection HTTP
	// server (e.g. ":8080"). Leave empty to disable the dashboard.
	DashboardAddr string `json:"dashboard_addr" yaml:"dashboard_addr"`

	// MonitorInterval is how often the monitor samples pool stats and
	// emits a summary log line.
	MonitorInterval time.Duration `json:"monitor_interval" yaml:"monitor_interval"`

	// LogLevel is the minimum log level: "debug", "info", "warn" or
	// "error". Empty means "info".
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// LoadConfig reads a JSON file at filename and deserialises it into a Config.
// It returns an error if the file cannot be opened or if the JSON is malformed.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 – filename is caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields() // catch typos in config files early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	return &cfg, nil
}

// LoadYAMLConfig reads a YAML file at filename and deserialises it into a
// Config. YAML is accepted alongside JSON because deployment tooling
// tends to standardise on it. Unlike the JSON loader, monitor_interval
// must be a duration string such as "10s"; a bare integer is rejected.
func LoadYAMLConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename) // #nosec G304 – filename is caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	return &cfg, nil
}

// DefaultConfig returns a *Config pre-filled with sensible defaults for a
// CPU-bound host: one worker per logical CPU, a quarter of them available
// to low-priority work, dashboard on :8080.
// Callers are free to mutate the returned struct before passing it to
// other components; each call returns a fresh independent copy.
func DefaultConfig() *Config {
	return &Config{
		ThreadCount:                 -1,
		UseNativeLowPriorityThreads: false,
		LowPriorityRatio:            0.25,
		DashboardAddr:               ":8080",
		MonitorInterval:             10 * time.Second,
		LogLevel:                    "info",
	}
}

// Validate checks the invariants the pool's Init relies on. It returns
// the first violation found.
func (c *Config) Validate() error {
	if c.ThreadCount == 0 {
		return fmt.Errorf("config: thread_count must be positive or negative (platform default), got 0")
	}
	if !c.UseNativeLowPriorityThreads {
		if c.LowPriorityRatio <= 0 || c.LowPriorityRatio > 1 {
			return fmt.Errorf("config: low_priority_ratio must be in (0, 1], got %v", c.LowPriorityRatio)
		}
	}
	if c.MonitorInterval < 0 {
		return fmt.Errorf("config: monitor_interval must not be negative, got %v", c.MonitorInterval)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
