// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"refmaster/internal/analysis"
	"refmaster/internal/events"
	applog "refmaster/internal/log"
	"refmaster/internal/pipeline"
	"refmaster/internal/transport"
	"refmaster/internal/tui"
)

const waveformPoints = 2000

type masterOptions struct {
	output string
	plain  bool
	serve  string
}

func newMasterCommand(a *app) *cobra.Command {
	opts := &masterOptions{}

	masterCmd := &cobra.Command{
		Use:   "master <target> <reference>",
		Short: "Master the target toward the reference and save the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMaster(cmd, args[0], args[1], opts)
		},
	}

	masterCmd.Flags().StringVarP(&opts.output, "output", "o", "",
		"Output file. Default is <target>_mastered_<timestamp>.wav next to the target")
	masterCmd.Flags().BoolVar(&opts.plain, "plain", false,
		"Show a plain progress bar instead of the terminal UI")
	masterCmd.Flags().StringVar(&opts.serve, "serve", "",
		"Broadcast progress, logs and spectra over websocket on this address")
	return masterCmd
}

func (a *app) runMaster(cmd *cobra.Command, targetPath, referencePath string, opts *masterOptions) error {
	session, err := a.newSession()
	if err != nil {
		return err
	}
	ch := events.NewChannel()
	for _, in := range []struct {
		which pipeline.Which
		path  string
		load  func(string) error
	}{
		{pipeline.Target, targetPath, session.LoadTarget},
		{pipeline.Reference, referencePath, session.LoadReference},
	} {
		if err := in.load(in.path); err != nil {
			return err
		}
		if r, ok := session.Info(in.which); ok {
			ch.Logf(applog.LevelInfo, "Loaded %s %s: %d Hz, %.2f s", in.which, filepath.Base(in.path), r.SampleRate, r.DurationSeconds)
		}
	}

	tr, err := a.openTransport(opts.serve)
	if err != nil {
		return err
	}
	defer tr.Close()

	onEvents := func(batch []events.Event) {
		if err := transport.Publish(tr, batch); err != nil {
			applog.Debugf("CLI: publish: %v", err)
		}
	}

	if opts.plain {
		err = runPlain(cmd.Context(), cmd.ErrOrStderr(), session, ch, a.cfg.UI.PollInterval, onEvents)
	} else {
		err = runTUI(session, ch, tui.Options{PollInterval: a.cfg.UI.PollInterval, OnEvents: onEvents})
	}
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = defaultOutputPath(targetPath, time.Now())
	}
	if err := session.SaveResult(output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", output)

	publishVisuals(tr, session, a.cfg.Analysis.WindowSize)
	return nil
}

// openTransport returns the websocket broadcaster when an address is given
// on the command line or in the config, and a logging transport otherwise.
func (a *app) openTransport(serve string) (transport.Transport, error) {
	addr := serve
	if addr == "" && a.cfg.Transport.WebSocketEnabled {
		addr = a.cfg.Transport.WebSocketAddr
	}
	if addr == "" {
		return transport.NewLoggingTransport(), nil
	}

	ws := transport.NewWebSocketTransport()
	if err := ws.Start(addr); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("websocket transport: %w", err)
	}
	applog.Infof("CLI: Broadcasting on ws://%s/ws", addr)
	return transport.Fanout{ws, transport.NewLoggingTransport()}, nil
}

// publishVisuals sends the report, display spectrum and waveform of every
// loaded buffer.
func publishVisuals(tr transport.Transport, session *pipeline.Mastering, windowSize int) {
	for _, which := range []pipeline.Which{pipeline.Target, pipeline.Reference, pipeline.Result} {
		source := which.String()
		if r, ok := session.Info(which); ok {
			_ = tr.Send(transport.ReportMessage(source, r))
		}
		if s, err := session.Spectrum(which, windowSize); err == nil {
			_ = tr.Send(transport.SpectrumMessage(source, s))
		} else {
			applog.Debugf("CLI: %s spectrum: %v", source, err)
		}
		if buf := session.Buffer(which); buf != nil {
			_ = tr.Send(transport.WaveformMessage(source, analysis.WaveformOverview(buf, waveformPoints)))
		}
	}
}

// runTUI hands the terminal to the mastering screen. The process log is
// silenced meanwhile so it does not draw over the UI.
func runTUI(session *pipeline.Mastering, ch *events.Channel, opts tui.Options) error {
	applog.SetOutput(io.Discard)
	defer applog.SetOutput(os.Stderr)
	return tui.RunMaster(session, ch, opts)
}

// runPlain runs Process on the calling goroutine while a poller drains the
// channel into an mpb bar.
func runPlain(ctx context.Context, w io.Writer, session *pipeline.Mastering, ch *events.Channel, every time.Duration, onEvents func([]events.Event)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p := mpb.NewWithContext(ctx, mpb.WithOutput(w), mpb.WithWidth(64))
	bar := p.AddBar(100,
		mpb.PrependDecorators(
			decor.Name("Mastering: "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)

	pollCtx, stop := context.WithCancel(ctx)
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		events.Poll(pollCtx, ch, every, func(batch []events.Event) {
			onEvents(batch)
			for _, e := range batch {
				if pe, ok := e.(events.ProgressEvent); ok {
					bar.SetCurrent(int64(pe.Percent))
				}
			}
		})
	}()

	err := session.Process(ch)
	stop()
	<-polled

	if err != nil {
		bar.Abort(false)
	} else {
		bar.SetCurrent(100)
	}
	p.Wait()
	return err
}

// defaultOutputPath places the result next to the target.
func defaultOutputPath(target string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	return filepath.Join(filepath.Dir(target), fmt.Sprintf("%s_mastered_%s.wav", base, now.Format("20060102_150405")))
}
