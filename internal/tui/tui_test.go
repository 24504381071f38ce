// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"refmaster/internal/engine"
	"refmaster/internal/events"
	"refmaster/internal/pipeline"
	"refmaster/internal/playback"
	"refmaster/pkg/tone"
)

func newSession(t *testing.T, eng engine.Engine) *pipeline.Mastering {
	t.Helper()
	return newSessionIn(t, filepath.Join(t.TempDir(), "results"), eng)
}

func newSessionIn(t *testing.T, resultsDir string, eng engine.Engine) *pipeline.Mastering {
	t.Helper()
	m, err := pipeline.New(pipeline.Options{
		ResultsDir: resultsDir,
		Engine:     eng,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	if err := m.SetTarget(tone.Sine(0.5, 44100, 440, 0.2, 1)); err != nil {
		t.Fatal(err)
	}
	if err := m.SetReference(tone.Sine(0.5, 44100, 440, 0.6, 1)); err != nil {
		t.Fatal(err)
	}
	return m
}

// finish runs Process synchronously and feeds its outcome to the model the
// way the worker command would.
func finish(t *testing.T, m MasterModel, session *pipeline.Mastering, ch *events.Channel) MasterModel {
	t.Helper()
	err := session.Process(ch)
	next, _ := m.Update(processDoneMsg{err: err})
	return next.(MasterModel)
}

func TestMasterModelSuccess(t *testing.T) {
	session := newSession(t, nil)
	ch := events.NewChannel()

	var forwarded int
	m := NewMasterModel(session, ch, Options{OnEvents: func(batch []events.Event) {
		forwarded += len(batch)
	}})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = finish(t, next.(MasterModel), session, ch)

	if !m.Finished() || m.Err() != nil {
		t.Fatalf("finished=%v err=%v, want finished without error", m.Finished(), m.Err())
	}
	if m.percent != 1.0 {
		t.Errorf("percent = %f, want 1.0", m.percent)
	}
	if forwarded == 0 {
		t.Error("OnEvents saw no events")
	}
	if len(m.reports) != 3 {
		t.Errorf("reports = %d, want target, reference and result", len(m.reports))
	}

	view := m.View()
	for _, want := range []string{"Done.", "target", "reference", "result"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if ch.Len() != 0 {
		t.Errorf("%d events left undrained", ch.Len())
	}
}

func TestMasterModelFailure(t *testing.T) {
	boom := errors.New("engine exploded")
	session := newSession(t, engine.Func(func(context.Context, engine.Request) error {
		return boom
	}))
	ch := events.NewChannel()

	m := finish(t, NewMasterModel(session, ch, Options{}), session, ch)

	if !errors.Is(m.Err(), boom) {
		t.Fatalf("Err() = %v, want wrapped %v", m.Err(), boom)
	}
	if m.percent == 1.0 {
		t.Error("progress reached 100 on a failed run")
	}
	if !strings.Contains(m.View(), "Processing failed") {
		t.Error("view does not report the failure")
	}
	if len(m.lines) == 0 {
		t.Error("no log lines rendered")
	}
}

func TestMasterModelTicksUntilFinished(t *testing.T) {
	session := newSession(t, nil)
	ch := events.NewChannel()
	m := NewMasterModel(session, ch, Options{})

	ch.Progress(30)
	next, cmd := m.Update(tickMsg{})
	m = next.(MasterModel)
	if cmd == nil {
		t.Fatal("tick while running did not schedule another tick")
	}
	if m.percent != 0.3 {
		t.Errorf("percent = %f, want 0.3", m.percent)
	}

	m.finished = true
	if _, cmd := m.Update(tickMsg{}); cmd != nil {
		t.Error("tick after finish scheduled another tick")
	}
}

func TestMasterModelQuitKeys(t *testing.T) {
	session := newSession(t, nil)
	m := NewMasterModel(session, events.NewChannel(), Options{})

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Error("q quit while processing")
		}
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestRunMasterWaitsForProcessAfterQuit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	started := make(chan struct{})
	release := make(chan struct{})
	var engineDone atomic.Bool
	session := newSessionIn(t, dir, engine.Func(func(ctx context.Context, req engine.Request) error {
		close(started)
		<-release
		defer engineDone.Store(true)
		return engine.NewNative().Master(ctx, req)
	}))

	in, keys := io.Pipe()
	t.Cleanup(func() { keys.Close() })
	go func() {
		<-started
		keys.Write([]byte{0x03}) // ctrl+c
		time.Sleep(200 * time.Millisecond)
		close(release)
	}()

	err := RunMaster(session, events.NewChannel(), Options{ProgramOptions: []tea.ProgramOption{
		tea.WithInput(in),
		tea.WithOutput(io.Discard),
		tea.WithoutSignalHandler(),
	}})

	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("RunMaster() = %v, want ErrInterrupted", err)
	}
	if !engineDone.Load() {
		t.Error("RunMaster returned before the engine finished")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("results dir holds %d files after RunMaster returned, want 0", len(entries))
	}
	if got := session.State(); got != pipeline.StateDone {
		t.Errorf("State() = %v after RunMaster returned, want done", got)
	}
}

func TestRunMasterNotStarted(t *testing.T) {
	m := NewMasterModel(newSession(t, nil), events.NewChannel(), Options{})
	if err := m.awaitInterrupted(nil); !errors.Is(err, ErrInterrupted) {
		t.Errorf("awaitInterrupted(nil) = %v, want ErrInterrupted", err)
	}
	boom := errors.New("no tty")
	if err := m.awaitInterrupted(boom); err != boom {
		t.Errorf("awaitInterrupted(%v) = %v, want the program error unchanged", boom, err)
	}
}

func TestDevicePicker(t *testing.T) {
	devices := []playback.Device{
		{ID: 0, Name: "Mic", MaxInputChannels: 2},
		{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 2, Name: "Headphones", MaxOutputChannels: 2, DefaultSampleRate: 44100},
	}
	m := NewDevicePickerModel(devices)
	if len(m.devices) != 2 {
		t.Fatalf("picker lists %d devices, want the 2 outputs", len(m.devices))
	}

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	if !strings.Contains(model.View(), "Speakers") {
		t.Error("view does not list output devices")
	}
	if strings.Contains(model.View(), "Mic") {
		t.Error("view lists an input-only device")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	if _, ok := model.(DevicePickerModel).Selected(); ok {
		t.Error("device selected before enter")
	}
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	d, ok := model.(DevicePickerModel).Selected()
	if !ok || d.ID != 2 {
		t.Errorf("Selected() = %+v, %v; want Headphones", d, ok)
	}
}
