// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"refmaster/internal/analysis"
	applog "refmaster/internal/log"
)

// Defaults applied before the YAML file and environment are read.
const (
	DefaultLogLevel        = "info"
	DefaultResultsDir      = "./results"
	DefaultEngineKind      = "native"
	DefaultEngineTimeout   = time.Duration(0) // No limit; engine.timeout opts in.
	DefaultBitDepth        = 24
	DefaultWindowSize      = analysis.DefaultWindowSize
	DefaultWindow          = "Hann"
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultWebSocketAddr   = "127.0.0.1:8765"
	DefaultOutputDevice    = -1 // -1 selects the host's default output.
	DefaultFramesPerBuffer = 1024

	// Limits checked by Validate.
	MinWindowSize      = 256
	MaxWindowSize      = 65536
	MaxFramesPerBuffer = 8192
)

// Level returns the parsed log level. Debug mode forces LevelDebug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// WindowFunc returns the configured analysis window, Hann if unknown.
func (c *Config) WindowFunc() analysis.WindowFunc {
	w, _ := analysis.ParseWindowFunc(c.Analysis.Window)
	return w
}
