// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"refmaster/internal/analysis"
	"refmaster/internal/audio"
	"refmaster/pkg/bitint"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>...",
		Short: "Print level metrics and band levels for audio files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, path := range args {
				if err := a.printInfo(cmd.OutOrStdout(), path); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func (a *app) printInfo(w io.Writer, path string) error {
	buf, err := audio.Load(path)
	if err != nil {
		return err
	}

	report := analysis.Analyze(buf)
	fmt.Fprintf(w, "%s\n%s\nCrest factor: %.1f dB\n", path, report, report.CrestFactorDB())

	series, err := analysis.SpectrumWith(buf, a.cfg.Analysis.WindowSize, a.cfg.WindowFunc())
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Bands:")
	for _, b := range analysis.BandLevels(series) {
		fmt.Fprintf(w, "  %-8s %7.1f dB\n", b.Name, b.LevelDB)
	}
	fmt.Fprintln(w)
	return nil
}

type spectrumOptions struct {
	windowSize int
	window     string
	display    bool
	format     string
}

func newSpectrumCommand(a *app) *cobra.Command {
	opts := &spectrumOptions{}

	spectrumCmd := &cobra.Command{
		Use:   "spectrum <file>",
		Short: "Print the averaged magnitude spectrum of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := audio.Load(args[0])
			if err != nil {
				return err
			}
			series, err := a.spectrum(cmd, buf, opts)
			if err != nil {
				return err
			}
			return writeSeries(cmd.OutOrStdout(), series, opts.format)
		},
	}

	spectrumCmd.Flags().IntVarP(&opts.windowSize, "window-size", "n", 0,
		"FFT length, rounded up to a power of two (default from config)")
	spectrumCmd.Flags().StringVarP(&opts.window, "window", "w", "",
		"Window function (default from config)")
	spectrumCmd.Flags().BoolVar(&opts.display, "display", false,
		"Peak-normalize before the transform, as for plotting")
	spectrumCmd.Flags().StringVarP(&opts.format, "format", "f", "csv",
		"Output format: csv or json")
	return spectrumCmd
}

func (a *app) spectrum(cmd *cobra.Command, buf *audio.Buffer, opts *spectrumOptions) (analysis.Series, error) {
	windowSize := a.cfg.Analysis.WindowSize
	if cmd.Flags().Changed("window-size") {
		if opts.windowSize < 2 {
			return analysis.Series{}, fmt.Errorf("window size must be at least 2, got %d", opts.windowSize)
		}
		windowSize = bitint.NextPowerOfTwo(opts.windowSize)
	}

	if opts.display {
		return analysis.DisplaySpectrum(buf, windowSize)
	}

	window := a.cfg.WindowFunc()
	if opts.window != "" {
		w, err := analysis.ParseWindowFunc(opts.window)
		if err != nil {
			return analysis.Series{}, err
		}
		window = w
	}
	return analysis.SpectrumWith(buf, windowSize, window)
}

func writeSeries(w io.Writer, s analysis.Series, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"frequency_hz", "magnitude_db"}); err != nil {
			return err
		}
		for i := range s.Len() {
			if err := cw.Write([]string{
				strconv.FormatFloat(s.Frequencies[i], 'f', 3, 64),
				strconv.FormatFloat(s.MagnitudesDB[i], 'f', 3, 64),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", format)
	}
}
