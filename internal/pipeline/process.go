// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"refmaster/internal/audio"
	"refmaster/internal/engine"
	"refmaster/internal/events"
	applog "refmaster/internal/log"
)

// Progress checkpoints reported by Process.
const (
	progressStaging   = 10
	progressStaged    = 30
	progressTransform = 90
	progressComplete  = 100
)

// stagedFiles are the transient paths of one run. An empty path was never
// assigned and needs no cleanup.
type stagedFiles struct {
	target    string
	reference string
	result    string
}

// reporter forwards to its sink. Progress is only ever raised, never
// lowered.
type reporter struct {
	sink events.Sink
	last int
}

func (r *reporter) progress(percent int) {
	if percent < r.last {
		return
	}
	r.last = percent
	r.sink.Progress(percent)
}

func (r *reporter) logf(level applog.LogLevel, format string, args ...any) {
	r.sink.Log(level, fmt.Sprintf(format, args...))
}

// Process runs one mastering pass and reports through sink, which may be nil.
// It returns ErrBusy if another call is in flight and ErrMissingInput, before
// touching the filesystem, if either input is missing. Any other failure
// wraps ErrStaging, ErrTransform or ErrValidation. Staged files are removed
// before Process returns.
func (m *Mastering) Process(sink events.Sink) (err error) {
	if !m.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer m.busy.Store(false)

	r := &reporter{sink: events.Tee(sink, events.Logger("Pipeline: "))}
	m.setResult(nil)

	m.mu.RLock()
	target, reference := m.target, m.reference
	m.mu.RUnlock()

	if target == nil || reference == nil {
		m.setState(StateFailed)
		r.logf(applog.LevelError, "Cannot process: %v", ErrMissingInput)
		return ErrMissingInput
	}

	files := &stagedFiles{}
	defer func() {
		m.cleanup(files, err == nil, r)
	}()

	m.setState(StateStaging)
	r.progress(progressStaging)
	r.logf(applog.LevelInfo, "Staging input files in %s", m.opts.ResultsDir)
	if err := m.stage(files, target, reference); err != nil {
		return m.fail(r, ErrStaging, err)
	}
	r.progress(progressStaged)

	m.setState(StateTransforming)
	r.logf(applog.LevelInfo, "Running mastering engine")
	if err := m.transform(files, r); err != nil {
		return m.fail(r, ErrTransform, err)
	}
	r.progress(progressTransform)

	m.setState(StateValidating)
	res, err := validate(files.result)
	if err != nil {
		return m.fail(r, ErrValidation, err)
	}

	m.setResult(res)
	m.setState(StateDone)
	r.progress(progressComplete)
	r.logf(applog.LevelInfo, "Mastering complete: %d Hz, %d ch, %.2f s",
		res.SampleRate, res.Channels, res.Duration().Seconds())
	return nil
}

func (m *Mastering) fail(r *reporter, stage, cause error) error {
	m.setResult(nil)
	m.setState(StateFailed)
	err := fmt.Errorf("%w: %w", stage, cause)
	r.logf(applog.LevelError, "%v", err)
	return err
}

// stage writes both inputs as 32-bit float WAV. Paths are recorded before
// each write so a partial file is still cleaned up.
func (m *Mastering) stage(files *stagedFiles, target, reference *audio.Buffer) error {
	if err := os.MkdirAll(m.opts.ResultsDir, 0o755); err != nil {
		return err
	}

	stamp := m.opts.Now().Format(timestampLayout)
	// Untruncated: sessions sharing ResultsDir may stage within the same second.
	id := uuid.NewString()
	name := func(prefix string) string {
		return filepath.Join(m.opts.ResultsDir, fmt.Sprintf("%s_%s_%s.wav", prefix, stamp, id))
	}

	files.target = name("temp_target")
	if err := audio.SaveAs(target, files.target, audio.FormatFloat32); err != nil {
		return err
	}
	files.reference = name("temp_reference")
	if err := audio.SaveAs(reference, files.reference, audio.FormatFloat32); err != nil {
		return err
	}
	files.result = name("result")
	return nil
}

func (m *Mastering) transform(files *stagedFiles, r *reporter) error {
	ctx := context.Background()
	if m.opts.EngineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.EngineTimeout)
		defer cancel()
	}

	return m.opts.Engine.Master(ctx, engine.Request{
		Target:    files.target,
		Reference: files.reference,
		Results:   []engine.Result{{Path: files.result, BitDepth: m.opts.ResultBitDepth}},
		Log: func(line string) {
			r.logf(applog.LevelInfo, "%s", line)
		},
	})
}

// validate loads the engine's output and checks it holds audio.
func validate(path string) (*audio.Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("result file was not produced: %w", err)
	}
	buf, err := audio.Load(path)
	if err != nil {
		return nil, err
	}
	if buf.Empty() || buf.SampleRate <= 0 || buf.Channels < 1 {
		return nil, errors.New("result is empty")
	}
	return buf, nil
}

// cleanup removes the staged inputs and, unless a successful run asked to
// keep it, the result file. Failures are reported as warnings only.
func (m *Mastering) cleanup(files *stagedFiles, succeeded bool, r *reporter) {
	paths := []string{files.target, files.reference}
	if !succeeded || !m.opts.KeepResultFile {
		paths = append(paths, files.result)
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logf(applog.LevelWarn, "Could not remove staged file: %v", err)
		}
	}
}
