package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firasghr/GoThreadPool/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
	if cfg.LowPriorityRatio <= 0 || cfg.LowPriorityRatio > 1 {
		t.Errorf("LowPriorityRatio = %v, want in (0, 1]", cfg.LowPriorityRatio)
	}
	if cfg.MonitorInterval <= 0 {
		t.Errorf("MonitorInterval = %v, want > 0", cfg.MonitorInterval)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"thread_count": 8,
		"use_native_low_priority_threads": false,
		"low_priority_ratio": 0.5,
		"dashboard_addr": ":9090",
		"monitor_interval": 5000000000,
		"log_level": "debug"
	}`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ThreadCount != 8 {
		t.Errorf("got ThreadCount=%d, want 8", cfg.ThreadCount)
	}
	if cfg.LowPriorityRatio != 0.5 {
		t.Errorf("got LowPriorityRatio=%v, want 0.5", cfg.LowPriorityRatio)
	}
	if cfg.MonitorInterval != 5*time.Second {
		t.Errorf("got MonitorInterval=%v, want 5s", cfg.MonitorInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config does not validate: %v", err)
	}
}

func TestLoadConfig_UnknownFieldRejected(t *testing.T) {
	path := writeFile(t, "config.json", `{"thread_countt": 8}`)
	if _, err := config.LoadConfig(path); err == nil {
		t.Error("expected an error for an unknown field (typo detection)")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
thread_count: 4
use_native_low_priority_threads: true
low_priority_ratio: 0.25
dashboard_addr: ""
monitor_interval: 10s
log_level: warn
`)

	cfg, err := config.LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ThreadCount != 4 {
		t.Errorf("got ThreadCount=%d, want 4", cfg.ThreadCount)
	}
	if !cfg.UseNativeLowPriorityThreads {
		t.Error("UseNativeLowPriorityThreads not set")
	}
	if cfg.MonitorInterval != 10*time.Second {
		t.Errorf("got MonitorInterval=%v, want 10s", cfg.MonitorInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"defaults", func(*config.Config) {}, true},
		{"zero threads", func(c *config.Config) { c.ThreadCount = 0 }, false},
		{"ratio too high", func(c *config.Config) { c.LowPriorityRatio = 1.5 }, false},
		{"ratio zero", func(c *config.Config) { c.LowPriorityRatio = 0 }, false},
		{"ratio ignored in native mode", func(c *config.Config) {
			c.UseNativeLowPriorityThreads = true
			c.LowPriorityRatio = 0
		}, true},
		{"negative monitor interval", func(c *config.Config) { c.MonitorInterval = -time.Second }, false},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
