// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"refmaster/internal/analysis"
	applog "refmaster/internal/log"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Analysis.WindowSize != DefaultWindowSize || cfg.Engine.Kind != DefaultEngineKind {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Engine.Timeout != 0 {
		t.Errorf("default engine timeout = %v, want 0 (no limit)", cfg.Engine.Timeout)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: warn
paths:
  results_dir: /tmp/masters
  keep_result_file: true
engine:
  kind: command
  command: matchering-cli
  args: ["{target}", "{reference}", "{result}"]
  timeout: 90s
analysis:
  window_size: 4096
  window: blackman
ui:
  poll_interval: 250ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Paths.ResultsDir != "/tmp/masters" || !cfg.Paths.KeepResultFile {
		t.Errorf("paths = %+v", cfg.Paths)
	}
	if cfg.Engine.Command != "matchering-cli" || len(cfg.Engine.Args) != 3 || cfg.Engine.Timeout != 90*time.Second {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.BitDepth != DefaultBitDepth {
		t.Errorf("unset engine.bit_depth should keep default, got %d", cfg.Engine.BitDepth)
	}
	if cfg.WindowFunc() != analysis.Blackman || cfg.Analysis.WindowSize != 4096 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.UI.PollInterval != 250*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.UI.PollInterval)
	}
	if cfg.Level() != applog.LevelWarn {
		t.Errorf("level = %v, want WARN", cfg.Level())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REFMASTER_DEBUG", "true")
	t.Setenv("REFMASTER_RESULTS_DIR", "/var/tmp/staging")
	t.Setenv("REFMASTER_ENGINE_COMMAND", "/usr/local/bin/master")
	t.Setenv("REFMASTER_WS_ADDR", "0.0.0.0:9000")

	path := writeTempConfig(t, "log_level: error\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Level() != applog.LevelDebug {
		t.Errorf("debug override should force DEBUG, got %v", cfg.Level())
	}
	if cfg.Paths.ResultsDir != "/var/tmp/staging" {
		t.Errorf("results dir = %s", cfg.Paths.ResultsDir)
	}
	if cfg.Engine.Kind != "command" || cfg.Engine.Command != "/usr/local/bin/master" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddr != "0.0.0.0:9000" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		desc    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"Empty results dir", func(c *Config) { c.Paths.ResultsDir = " " }, "results_dir"},
		{"Unknown engine", func(c *Config) { c.Engine.Kind = "magic" }, "engine.kind"},
		{"Command without program", func(c *Config) { c.Engine.Kind = "command" }, "engine.command"},
		{"Negative timeout", func(c *Config) { c.Engine.Timeout = -time.Second }, "engine.timeout"},
		{"Engine bit depth", func(c *Config) { c.Engine.BitDepth = 20 }, "engine.bit_depth"},
		{"Output bit depth", func(c *Config) { c.Output.BitDepth = 8 }, "output.bit_depth"},
		{"Window not power of two", func(c *Config) { c.Analysis.WindowSize = 5000 }, "window_size"},
		{"Window too small", func(c *Config) { c.Analysis.WindowSize = 128 }, "window_size"},
		{"Unknown window", func(c *Config) { c.Analysis.Window = "kaiser" }, "analysis.window"},
		{"Zero poll", func(c *Config) { c.UI.PollInterval = 0 }, "poll_interval"},
		{"Websocket without port", func(c *Config) {
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddr = "localhost"
		}, "websocket_addr"},
		{"Frames per buffer", func(c *Config) { c.Playback.FramesPerBuffer = 0 }, "frames_per_buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	cfg.UI.PollInterval = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "log_level") || !strings.Contains(err.Error(), "poll_interval") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}
