// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"refmaster/internal/analysis"
	applog "refmaster/internal/log"
	"refmaster/pkg/bitint"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Paths     PathsConfig     `yaml:"paths"`
	Engine    EngineConfig    `yaml:"engine"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Output    OutputConfig    `yaml:"output"`
	UI        UIConfig        `yaml:"ui"`
	Transport TransportConfig `yaml:"transport"`
	Playback  PlaybackConfig  `yaml:"playback"`
}

// PathsConfig controls where staged files live.
type PathsConfig struct {
	ResultsDir     string `yaml:"results_dir"`      // Directory for staged target, reference and result files.
	KeepResultFile bool   `yaml:"keep_result_file"` // Leave the engine's result file after a successful run.
}

// EngineConfig selects and parameterizes the mastering engine.
type EngineConfig struct {
	Kind     string        `yaml:"kind"`      // "native" or "command".
	Command  string        `yaml:"command"`   // Program run by the command engine.
	Args     []string      `yaml:"args"`      // Arguments; {target} {reference} {result} {bits} are expanded.
	Timeout  time.Duration `yaml:"timeout"`   // Optional upper bound for one engine run; 0 (default) never interrupts it.
	BitDepth int           `yaml:"bit_depth"` // PCM depth requested from the engine.
}

// AnalysisConfig holds spectrum settings.
type AnalysisConfig struct {
	WindowSize int    `yaml:"window_size"` // FFT length; power of two.
	Window     string `yaml:"window"`      // Window function name (e.g., "Hann", "Hamming").
}

// OutputConfig controls saved results.
type OutputConfig struct {
	BitDepth int `yaml:"bit_depth"` // 16, 24 or 32.
}

// UIConfig holds presentation settings.
type UIConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // How often the event channel is drained.
}

// TransportConfig holds settings for broadcasting events to external viewers.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddr    string `yaml:"websocket_addr"` // Listen address, e.g. "127.0.0.1:8765".
}

// PlaybackConfig holds audio output settings for previews.
type PlaybackConfig struct {
	OutputDevice    int `yaml:"output_device"`     // PortAudio device index (-1 for default).
	FramesPerBuffer int `yaml:"frames_per_buffer"` // Frames per PortAudio callback.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Paths: PathsConfig{
			ResultsDir: DefaultResultsDir,
		},
		Engine: EngineConfig{
			Kind:     DefaultEngineKind,
			Timeout:  DefaultEngineTimeout,
			BitDepth: DefaultBitDepth,
		},
		Analysis: AnalysisConfig{
			WindowSize: DefaultWindowSize,
			Window:     DefaultWindow,
		},
		Output: OutputConfig{
			BitDepth: DefaultBitDepth,
		},
		UI: UIConfig{
			PollInterval: DefaultPollInterval,
		},
		Transport: TransportConfig{
			WebSocketAddr: DefaultWebSocketAddr,
		},
		Playback: PlaybackConfig{
			OutputDevice:    DefaultOutputDevice,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml", "refmaster.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if strings.TrimSpace(c.Paths.ResultsDir) == "" {
		errs = append(errs, errors.New("paths.results_dir must be set"))
	}

	switch strings.ToLower(c.Engine.Kind) {
	case "native":
	case "command":
		if c.Engine.Command == "" {
			errs = append(errs, errors.New("engine.command must be set when engine.kind is command"))
		}
	default:
		errs = append(errs, fmt.Errorf("engine.kind %q must be native or command", c.Engine.Kind))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, errors.New("engine.timeout must not be negative"))
	}
	if !validBitDepth(c.Engine.BitDepth) {
		errs = append(errs, fmt.Errorf("engine.bit_depth %d must be 16, 24 or 32", c.Engine.BitDepth))
	}
	if !validBitDepth(c.Output.BitDepth) {
		errs = append(errs, fmt.Errorf("output.bit_depth %d must be 16, 24 or 32", c.Output.BitDepth))
	}

	ws := c.Analysis.WindowSize
	if !bitint.IsPowerOfTwo(ws) || ws < MinWindowSize || ws > MaxWindowSize {
		errs = append(errs, fmt.Errorf("analysis.window_size %d must be a power of two in [%d, %d]", ws, MinWindowSize, MaxWindowSize))
	}
	if _, err := analysis.ParseWindowFunc(c.Analysis.Window); err != nil {
		errs = append(errs, fmt.Errorf("analysis.window: %w", err))
	}

	if c.UI.PollInterval <= 0 {
		errs = append(errs, errors.New("ui.poll_interval must be positive"))
	}
	if c.Transport.WebSocketEnabled && !strings.Contains(c.Transport.WebSocketAddr, ":") {
		errs = append(errs, fmt.Errorf("transport.websocket_addr %q appears invalid (missing port?)", c.Transport.WebSocketAddr))
	}

	if c.Playback.OutputDevice < DefaultOutputDevice {
		errs = append(errs, fmt.Errorf("playback.output_device %d is out of range", c.Playback.OutputDevice))
	}
	if fpb := c.Playback.FramesPerBuffer; fpb <= 0 || fpb > MaxFramesPerBuffer {
		errs = append(errs, fmt.Errorf("playback.frames_per_buffer %d must be in (0, %d]", fpb, MaxFramesPerBuffer))
	}

	return errors.Join(errs...)
}

func validBitDepth(bits int) bool {
	return bits == 16 || bits == 24 || bits == 32
}

// applyEnvOverrides lets REFMASTER_* variables win over the file.
func (cfg *Config) applyEnvOverrides() {
	// REFMASTER_DEBUG
	if val, ok := os.LookupEnv("REFMASTER_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		}
	}
	// REFMASTER_LOG_LEVEL
	if val, ok := os.LookupEnv("REFMASTER_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}
	// REFMASTER_RESULTS_DIR
	if val, ok := os.LookupEnv("REFMASTER_RESULTS_DIR"); ok && val != "" {
		cfg.Paths.ResultsDir = val
		applog.Infof("Config: Overriding paths.results_dir from env: %s", val)
	}
	// REFMASTER_ENGINE_COMMAND switches to the command engine.
	if val, ok := os.LookupEnv("REFMASTER_ENGINE_COMMAND"); ok && val != "" {
		cfg.Engine.Kind = "command"
		cfg.Engine.Command = val
		applog.Infof("Config: Overriding engine.command from env: %s", val)
	}
	// REFMASTER_WS_ADDR enables the websocket transport.
	if val, ok := os.LookupEnv("REFMASTER_WS_ADDR"); ok && val != "" {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddr = val
		applog.Infof("Config: Overriding transport.websocket_addr from env: %s", val)
	}
}
