// SPDX-License-Identifier: MIT
/*
Package tui is the terminal front end. The mastering screen runs
pipeline.Mastering.Process on a worker goroutine and drains the event
channel on a fixed tick; Update never blocks on the pipeline.
*/
package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"refmaster/internal/analysis"
	"refmaster/internal/events"
	"refmaster/internal/pipeline"
)

const (
	consoleHeight  = 10
	maxConsoleLogs = 500
)

// Options tune the mastering screen.
type Options struct {
	// PollInterval is the drain cadence. Defaults to 100ms.
	PollInterval time.Duration

	// OnEvents sees every drained batch before it is rendered, for forwarding
	// to transports.
	OnEvents func([]events.Event)

	// ProgramOptions are appended to the defaults RunMaster passes to
	// bubbletea.
	ProgramOptions []tea.ProgramOption
}

// ErrInterrupted is returned by RunMaster when the screen closed before
// Process returned. The run itself is never cancelled.
var ErrInterrupted = errors.New("tui: closed before processing finished")

type tickMsg time.Time

type processDoneMsg struct {
	err error
}

// worker owns the Process goroutine. It is shared by every copy of the model
// so RunMaster can wait on it after the program has exited.
type worker struct {
	once    sync.Once
	started bool
	done    chan struct{}
	err     error
}

func newWorker() *worker {
	return &worker{done: make(chan struct{})}
}

// start launches Process once. It runs from Init, which bubbletea calls
// before reading any input, so a quit can never race the launch.
func (w *worker) start(session *pipeline.Mastering, ch events.Sink) {
	w.once.Do(func() {
		w.started = true
		go func() {
			defer close(w.done)
			w.err = session.Process(ch)
		}()
	})
}

// result blocks until Process returns and reports its outcome.
func (w *worker) result() tea.Cmd {
	return func() tea.Msg {
		<-w.done
		return processDoneMsg{err: w.err}
	}
}

// wait blocks until a started Process has returned and its staged files are
// gone. It returns false when Process was never started.
func (w *worker) wait() bool {
	if !w.started {
		return false
	}
	<-w.done
	return true
}

// MasterModel shows progress, the log console and the three reports for one
// Process run.
type MasterModel struct {
	session  *pipeline.Mastering
	channel  *events.Channel
	opts     Options
	progress progress.Model
	console  viewport.Model
	lines    []string
	percent  float64
	running  bool
	finished bool
	err      error
	reports  []reportRow
	width    int
	ready    bool
	worker   *worker
}

type reportRow struct {
	which  pipeline.Which
	report analysis.Report
}

// NewMasterModel builds the screen. Process starts from Init.
func NewMasterModel(session *pipeline.Mastering, ch *events.Channel, opts Options) MasterModel {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	return MasterModel{
		session:  session,
		channel:  ch,
		opts:     opts,
		progress: progress.New(progress.WithDefaultGradient()),
		console:  viewport.New(80, consoleHeight),
		running:  true,
		worker:   newWorker(),
	}
}

func (m MasterModel) Init() tea.Cmd {
	return tea.Batch(m.runProcess(), m.tick())
}

func (m MasterModel) runProcess() tea.Cmd {
	m.worker.start(m.session, m.channel)
	return m.worker.result()
}

func (m MasterModel) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m MasterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(msg.Width-4, 10)
		m.console.Width = max(msg.Width-4, 10)
		m.ready = true
		return m, nil

	case tickMsg:
		m.drain()
		if m.finished {
			return m, nil
		}
		return m, m.tick()

	case processDoneMsg:
		m.running = false
		m.finished = true
		m.err = msg.err
		m.drain()
		m.collectReports()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+c"))) {
			return m, tea.Quit
		}
		if !m.running && key.Matches(msg, key.NewBinding(key.WithKeys("q", "enter", "esc"))) {
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.console, cmd = m.console.Update(msg)
	return m, cmd
}

// drain pulls everything queued on the channel into the model.
func (m *MasterModel) drain() {
	batch := m.channel.Drain()
	if batch == nil {
		return
	}
	if m.opts.OnEvents != nil {
		m.opts.OnEvents(batch)
	}
	for _, e := range batch {
		switch e := e.(type) {
		case events.ProgressEvent:
			m.percent = float64(e.Percent) / 100
		case events.LogEvent:
			m.lines = append(m.lines, levelStyle(e.Level).Render(e.String()))
		}
	}
	if len(m.lines) > maxConsoleLogs {
		m.lines = m.lines[len(m.lines)-maxConsoleLogs:]
	}
	m.console.SetContent(strings.Join(m.lines, "\n"))
	m.console.GotoBottom()
}

func (m *MasterModel) collectReports() {
	m.reports = m.reports[:0]
	for _, w := range []pipeline.Which{pipeline.Target, pipeline.Reference, pipeline.Result} {
		if r, ok := m.session.Info(w); ok {
			m.reports = append(m.reports, reportRow{which: w, report: r})
		}
	}
}

func (m MasterModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Reference Mastering"))
	sb.WriteString("\n\n")
	sb.WriteString(m.progress.ViewAs(m.percent))
	sb.WriteString("\n\n")
	sb.WriteString(panelStyle.Render(m.console.View()))
	sb.WriteString("\n")

	switch {
	case m.running:
		sb.WriteString(infoStyle.Render(fmt.Sprintf("Processing (%s)...", m.session.State())))
	case m.err != nil:
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Processing failed: %v", m.err)))
	default:
		sb.WriteString(highlightStyle.Render("Done."))
	}
	sb.WriteString("\n")

	if len(m.reports) > 0 {
		cols := make([]string, len(m.reports))
		for i, row := range m.reports {
			cols[i] = panelStyle.Render(highlightStyle.Render(row.which.String()) + "\n" + row.report.String())
		}
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
		sb.WriteString("\n")
	}

	help := "↑/↓: Scroll log • ctrl+c: Quit"
	if !m.running {
		help = "↑/↓: Scroll log • q: Close"
	}
	sb.WriteString(dimStyle.Render(help))
	return sb.String()
}

// Err returns the outcome of Process once finished.
func (m MasterModel) Err() error {
	return m.err
}

// Finished reports whether Process has returned.
func (m MasterModel) Finished() bool {
	return m.finished
}

// RunMaster runs the mastering screen to completion and returns Process's
// error. Closing the screen early does not stop the pipeline: RunMaster waits
// for Process to return, so its cleanup has run, and then returns
// ErrInterrupted with the late result discarded.
func RunMaster(session *pipeline.Mastering, ch *events.Channel, opts Options) error {
	model := NewMasterModel(session, ch, opts)
	popts := append([]tea.ProgramOption{tea.WithAltScreen()}, opts.ProgramOptions...)
	final, runErr := tea.NewProgram(model, popts...).Run()

	if m, ok := final.(MasterModel); ok && m.Finished() {
		if runErr != nil {
			return runErr
		}
		return m.Err()
	}
	return model.awaitInterrupted(runErr)
}

// awaitInterrupted is the early-exit path of RunMaster.
func (m MasterModel) awaitInterrupted(runErr error) error {
	if m.worker.started {
		fmt.Fprintf(os.Stderr, "Interrupted while %s; waiting for the engine to finish...\n", m.session.State())
	}
	if !m.worker.wait() {
		if runErr != nil {
			return runErr
		}
		return ErrInterrupted
	}
	if runErr != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, runErr)
	}
	return ErrInterrupted
}
