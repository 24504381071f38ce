// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"refmaster/internal/analysis"
	"refmaster/internal/audio"
	"refmaster/internal/playback"
	"refmaster/internal/tui"
	"refmaster/pkg/tone"
)

const meterRefresh = 50 * time.Millisecond

func newPlayCommand(a *app) *cobra.Command {
	var (
		deviceID int
		pick     bool
	)

	playCmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play an audio file with a live level meter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := audio.Load(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("device") {
				deviceID = a.cfg.Playback.OutputDevice
			}
			if pick {
				if deviceID, err = pickDevice(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return playWithMeter(ctx, cmd, buf, deviceID, a.cfg.Playback.FramesPerBuffer)
		},
	}

	playCmd.Flags().IntVarP(&deviceID, "device", "d", playback.DefaultDevice,
		"Output device ID. Use 'devices' to see available devices")
	playCmd.Flags().BoolVar(&pick, "pick", false,
		"Choose the output device interactively")
	return playCmd
}

func pickDevice() (int, error) {
	if err := playback.Initialize(); err != nil {
		return playback.DefaultDevice, err
	}
	defer playback.Terminate()

	devices, err := playback.HostDevices()
	if err != nil {
		return playback.DefaultDevice, err
	}
	return tui.PickOutputDevice(devices)
}

// playWithMeter plays buf while an mpb bar shows position and live levels.
func playWithMeter(ctx context.Context, cmd *cobra.Command, buf *audio.Buffer, deviceID, framesPerBuffer int) error {
	meter := &analysis.Meter{}
	total := int64(buf.Duration() / time.Millisecond)

	p := mpb.NewWithContext(ctx, mpb.WithOutput(cmd.ErrOrStderr()), mpb.WithWidth(48), mpb.WithRefreshRate(meterRefresh))
	bar := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name("Playing: "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				peak, rms := meter.Levels()
				return fmt.Sprintf("peak %6.1f dB  rms %6.1f dB", peak, rms)
			}),
		),
	)

	start := time.Now()
	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		t := time.NewTicker(meterRefresh)
		defer t.Stop()
		for {
			select {
			case <-playCtx.Done():
				return
			case <-t.C:
				bar.SetCurrent(min(int64(time.Since(start)/time.Millisecond), total))
			}
		}
	}()

	err := playback.Play(playCtx, buf, deviceID, framesPerBuffer, meter)
	cancel()
	if err != nil || ctx.Err() != nil {
		bar.Abort(false)
	} else {
		bar.SetCurrent(total)
	}
	p.Wait()

	if err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Max peak: %.1f dB over %d blocks\n", meter.MaxPeakDB(), meter.Blocks())
	}
	return err
}

func newDevicesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := playback.Initialize(); err != nil {
				return err
			}
			defer func() {
				if terr := playback.Terminate(); terr != nil && err == nil {
					err = terr
				}
			}()

			devices, err := playback.HostDevices()
			if err != nil {
				return err
			}
			playback.WriteDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
}

type toneOptions struct {
	seconds    float64
	sampleRate int
	frequency  float64
	amplitude  float64
	channels   int
	complex    bool
}

func newToneCommand(a *app) *cobra.Command {
	opts := &toneOptions{}

	toneCmd := &cobra.Command{
		Use:   "tone <out.wav>",
		Short: "Write a synthetic test signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.seconds <= 0 || opts.sampleRate <= 0 || opts.channels < 1 {
				return fmt.Errorf("seconds, sample rate and channels must be positive")
			}
			var buf *audio.Buffer
			if opts.complex {
				buf = tone.Complex(opts.seconds, opts.sampleRate, opts.amplitude, opts.channels)
			} else {
				buf = tone.Sine(opts.seconds, opts.sampleRate, opts.frequency, opts.amplitude, opts.channels)
			}

			format, err := audio.PCMFormat(a.cfg.Output.BitDepth)
			if err != nil {
				return err
			}
			if err := audio.SaveAs(buf, args[0], format); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", args[0], format)
			return nil
		},
	}

	toneCmd.Flags().Float64VarP(&opts.seconds, "seconds", "t", 5, "Length in seconds")
	toneCmd.Flags().IntVarP(&opts.sampleRate, "sample-rate", "s", 44100, "Sample rate, measured in Hertz (Hz)")
	toneCmd.Flags().Float64VarP(&opts.frequency, "frequency", "f", 1000, "Sine frequency in Hz")
	toneCmd.Flags().Float64VarP(&opts.amplitude, "amplitude", "a", 0.5, "Peak amplitude (0-1)")
	toneCmd.Flags().IntVarP(&opts.channels, "channels", "c", 2, "Number of channels (1=mono, 2=stereo)")
	toneCmd.Flags().BoolVar(&opts.complex, "complex", false, "440 Hz with harmonics instead of a pure sine")
	return toneCmd
}
