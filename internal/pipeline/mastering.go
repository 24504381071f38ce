// SPDX-License-Identifier: MIT
/*
Package pipeline owns a mastering session: the target, reference and result
buffers plus the staged run that turns the first two into the third.

Process stages both inputs as float WAV files under the results directory,
hands their paths to an engine.Engine, then loads and checks what the engine
wrote. Staged files are removed on every exit path. The result buffer is set
only when the whole run succeeds.
*/
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"refmaster/internal/analysis"
	"refmaster/internal/audio"
	"refmaster/internal/engine"
	applog "refmaster/internal/log"
)

// DefaultBitDepth is requested from the engine and used by SaveResult unless
// Options override it.
const DefaultBitDepth = 24

const timestampLayout = "20060102_150405"

// Options configure a Mastering session.
type Options struct {
	// ResultsDir holds the staged files. It is created on first use.
	ResultsDir string

	Engine engine.Engine

	// EngineTimeout bounds a single engine call. Zero means no limit.
	EngineTimeout time.Duration

	// ResultBitDepth is the PCM depth requested from the engine.
	ResultBitDepth int

	// OutputBitDepth is the PCM depth SaveResult writes.
	OutputBitDepth int

	// KeepResultFile leaves the engine's result file in ResultsDir after a
	// successful run. Staged inputs are always removed.
	KeepResultFile bool

	// Now stamps staged file names. Defaults to time.Now.
	Now func() time.Time
}

// Mastering is a single session. Buffers may be swapped between runs but not
// while Process is running.
type Mastering struct {
	opts Options

	mu        sync.RWMutex
	target    *audio.Buffer
	reference *audio.Buffer
	result    *audio.Buffer

	state atomic.Int32
	busy  atomic.Bool
}

// New returns an idle session. A nil engine defaults to the native one.
func New(opts Options) (*Mastering, error) {
	if opts.ResultsDir == "" {
		return nil, errors.New("pipeline: results directory is required")
	}
	if opts.Engine == nil {
		opts.Engine = engine.NewNative()
	}
	if opts.ResultBitDepth == 0 {
		opts.ResultBitDepth = DefaultBitDepth
	}
	if opts.OutputBitDepth == 0 {
		opts.OutputBitDepth = DefaultBitDepth
	}
	if _, err := audio.PCMFormat(opts.OutputBitDepth); err != nil {
		return nil, fmt.Errorf("pipeline: output: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Mastering{opts: opts}, nil
}

// State returns the current lifecycle state.
func (m *Mastering) State() State {
	return State(m.state.Load())
}

func (m *Mastering) setState(s State) {
	m.state.Store(int32(s))
}

// LoadTarget replaces the target with the file at path. On failure the
// previous target is kept.
func (m *Mastering) LoadTarget(path string) error {
	return m.load(Target, path)
}

// LoadReference replaces the reference with the file at path. On failure the
// previous reference is kept.
func (m *Mastering) LoadReference(path string) error {
	return m.load(Reference, path)
}

func (m *Mastering) load(which Which, path string) error {
	if m.busy.Load() {
		return ErrBusy
	}
	buf, err := audio.Load(path)
	if err != nil {
		applog.Errorf("Pipeline: Failed to load %s: %v", which, err)
		return err
	}
	applog.Infof("Pipeline: Loaded %s %s (%d Hz, %d ch, %s)", which, path, buf.SampleRate, buf.Channels, buf.Duration())
	return m.set(which, buf)
}

// SetTarget installs an in-memory target.
func (m *Mastering) SetTarget(buf *audio.Buffer) error {
	return m.set(Target, buf)
}

// SetReference installs an in-memory reference.
func (m *Mastering) SetReference(buf *audio.Buffer) error {
	return m.set(Reference, buf)
}

func (m *Mastering) set(which Which, buf *audio.Buffer) error {
	if m.busy.Load() {
		return ErrBusy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch which {
	case Target:
		m.target = buf
	case Reference:
		m.reference = buf
	default:
		return fmt.Errorf("pipeline: %s cannot be set directly", which)
	}
	return nil
}

// Buffer returns the selected buffer, or nil if it is not loaded. Callers
// must treat it as read-only.
func (m *Mastering) Buffer(which Which) *audio.Buffer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch which {
	case Target:
		return m.target
	case Reference:
		return m.reference
	case Result:
		return m.result
	default:
		return nil
	}
}

// Result returns the last successful output, or nil.
func (m *Mastering) Result() *audio.Buffer {
	return m.Buffer(Result)
}

func (m *Mastering) setResult(buf *audio.Buffer) {
	m.mu.Lock()
	m.result = buf
	m.mu.Unlock()
}

// Info analyzes the selected buffer. ok is false if it is not loaded.
func (m *Mastering) Info(which Which) (report analysis.Report, ok bool) {
	buf := m.Buffer(which)
	if buf == nil {
		return analysis.Report{}, false
	}
	return analysis.Analyze(buf), true
}

// Spectrum computes the display spectrum of the selected buffer.
func (m *Mastering) Spectrum(which Which, windowSize int) (analysis.Series, error) {
	buf := m.Buffer(which)
	if buf == nil {
		if which == Result {
			return analysis.Series{}, ErrNoResult
		}
		return analysis.Series{}, fmt.Errorf("%w: %s not loaded", ErrMissingInput, which)
	}
	return analysis.DisplaySpectrum(buf, windowSize)
}

// SaveResult writes the result buffer to path as PCM WAV.
func (m *Mastering) SaveResult(path string) error {
	res := m.Result()
	if res == nil {
		return ErrNoResult
	}
	format, err := audio.PCMFormat(m.opts.OutputBitDepth)
	if err != nil {
		return fmt.Errorf("%w: %w", audio.ErrSave, err)
	}
	if err := audio.SaveAs(res, path, format); err != nil {
		applog.Errorf("Pipeline: Failed to save result: %v", err)
		return err
	}
	applog.Infof("Pipeline: Saved result to %s", path)
	return nil
}
