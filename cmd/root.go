// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"refmaster/internal/config"
	"refmaster/internal/engine"
	applog "refmaster/internal/log"
	"refmaster/internal/pipeline"
	"refmaster/pkg/build"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           "refmaster",
		Short:         "Reference-based audio mastering",
		Long:          "Match a target track to a reference track and inspect the levels and spectra of both.",
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newMasterCommand(a),
		newInfoCommand(a),
		newSpectrumCommand(a),
		newPlayCommand(a),
		newDevicesCommand(a),
		newToneCommand(a),
	)
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) loadConfig() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if _, ok := applog.ParseLevel(a.logLevel); !ok {
			return fmt.Errorf("unknown log level %q", a.logLevel)
		}
		cfg.LogLevel = a.logLevel
	}
	applog.SetLevel(cfg.Level())
	a.cfg = cfg
	return nil
}

// newSession builds a Mastering session from the loaded configuration.
func (a *app) newSession() (*pipeline.Mastering, error) {
	eng, err := engine.New(a.cfg.Engine.Kind, a.cfg.Engine.Command, a.cfg.Engine.Args)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		ResultsDir:     a.cfg.Paths.ResultsDir,
		Engine:         eng,
		EngineTimeout:  a.cfg.Engine.Timeout,
		ResultBitDepth: a.cfg.Engine.BitDepth,
		OutputBitDepth: a.cfg.Output.BitDepth,
		KeepResultFile: a.cfg.Paths.KeepResultFile,
	})
}
