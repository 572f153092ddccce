package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/firefly-forage/packages/forage-preview/internal/events"
)

// ErrInterrupted is returned when the user quits before the bootstrap ends.
var ErrInterrupted = errors.New("interrupted")

// Outcome is what a finished bootstrap reports back to the progress view.
type Outcome struct {
	SessionID string
	URL       string
	Message   string
	Degraded  bool
}

type rowState int

const (
	rowPending rowState = iota
	rowRunning
	rowDone
	rowWarn
	rowFailed
)

type row struct {
	stage  events.Stage
	label  string
	state  rowState
	detail string
	// warned is true when the last event for the row was a warning
	warned bool
}

// stageRows are the bootstrap steps shown, in pipeline order.
var stageRows = []struct {
	stage events.Stage
	label string
}{
	{events.StageCreate, "Create sandbox"},
	{events.StageScaffold, "Write project files"},
	{events.StageInstall, "Install dependencies"},
	{events.StageServer, "Start dev server"},
	{events.StageReadiness, "Wait for dev server"},
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	urlStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

type eventMsg events.Event

type streamClosedMsg struct{}

type doneMsg struct {
	outcome *Outcome
	err     error
}

// Model is the bubbletea model for bootstrap progress
type Model struct {
	spinner     spinner.Model
	rows        []row
	events      <-chan events.Event
	run         func() (*Outcome, error)
	outcome     *Outcome
	err         error
	done        bool
	interrupted bool
}

// NewProgress creates a progress view fed by ch. run performs the bootstrap
// and is started by Init.
func NewProgress(ch <-chan events.Event, run func() (*Outcome, error)) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	rows := make([]row, len(stageRows))
	for i, r := range stageRows {
		rows[i] = row{stage: r.stage, label: r.label}
	}
	rows[0].state = rowRunning

	return Model{
		spinner: s,
		rows:    rows,
		events:  ch,
		run:     run,
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForEvent(m.events)}
	if m.run != nil {
		run := m.run
		cmds = append(cmds, func() tea.Msg {
			o, err := run()
			return doneMsg{outcome: o, err: err}
		})
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.apply(events.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		return m, nil

	case doneMsg:
		m.done = true
		m.outcome = msg.outcome
		m.err = msg.err
		if msg.err == nil {
			m.finish()
		} else {
			m.fail(msg.err.Error())
		}
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.interrupted = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one event into the rows. Reaching a stage settles every
// earlier one.
func (m *Model) apply(ev events.Event) {
	switch ev.Stage {
	case events.StageReady:
		m.finish()
		return
	case events.StageFailed:
		m.fail(ev.Message)
		return
	}

	idx := m.indexOf(ev.Stage)
	if idx < 0 {
		return
	}
	for i := 0; i < idx; i++ {
		m.settle(i)
	}

	r := &m.rows[idx]
	if r.state == rowPending || r.state == rowDone {
		r.state = rowRunning
	}
	r.detail = ev.Message
	if ev.Attempt > 0 && ev.Level != events.LevelInfo {
		r.detail = fmt.Sprintf("attempt %d: %s", ev.Attempt, ev.Message)
	}
	r.warned = ev.Level == events.LevelWarn

	// A create event means the environment exists; the next step is running.
	if ev.Stage == events.StageCreate && idx+1 < len(m.rows) {
		m.settle(idx)
		m.rows[idx+1].state = rowRunning
	}
}

func (m *Model) indexOf(stage events.Stage) int {
	for i, r := range m.rows {
		if r.stage == stage {
			return i
		}
	}
	return -1
}

func (m *Model) settle(i int) {
	r := &m.rows[i]
	if r.state == rowFailed {
		return
	}
	if r.warned {
		r.state = rowWarn
	} else {
		r.state = rowDone
	}
}

func (m *Model) finish() {
	for i := range m.rows {
		m.settle(i)
	}
}

// fail marks the running step failed.
func (m *Model) fail(msg string) {
	for i := range m.rows {
		if m.rows[i].state == rowRunning {
			m.rows[i].state = rowFailed
			m.rows[i].detail = msg
			return
		}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("forage-preview"))
	b.WriteString("\n")

	for _, r := range m.rows {
		var glyph string
		switch r.state {
		case rowPending:
			glyph = pendingStyle.Render("○")
		case rowRunning:
			glyph = m.spinner.View()
		case rowDone:
			glyph = doneStyle.Render("✓")
		case rowWarn:
			glyph = warnStyle.Render("⚠")
		case rowFailed:
			glyph = failStyle.Render("✗")
		}
		line := fmt.Sprintf("%s %s", glyph, r.label)
		if r.detail != "" && r.state != rowDone {
			line += pendingStyle.Render("  " + truncate(r.detail, 60))
		}
		b.WriteString(line + "\n")
	}

	switch {
	case m.done && m.err == nil && m.outcome != nil:
		b.WriteString("\n" + urlStyle.Render(m.outcome.URL) + "\n")
	case !m.done:
		b.WriteString(helpStyle.Render("[q] Quit") + "\n")
	}
	return b.String()
}

// Result returns the outcome once the bootstrap has finished.
func (m Model) Result() (*Outcome, error) {
	if m.interrupted && !m.done {
		return nil, ErrInterrupted
	}
	return m.outcome, m.err
}

// RunProgress shows bootstrap progress until run returns or the user quits.
func RunProgress(ch <-chan events.Event, run func() (*Outcome, error)) (*Outcome, error) {
	p := tea.NewProgram(NewProgress(ch, run))

	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	return finalModel.(Model).Result()
}

// FormatEvent renders an event as a single line for non-interactive output.
func FormatEvent(ev events.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", ev.Stage)
	if ev.Attempt > 0 {
		fmt.Fprintf(&b, " attempt %d:", ev.Attempt)
	}
	b.WriteString(" " + ev.Message)
	if ev.URL != "" {
		b.WriteString(" " + ev.URL)
	}
	return b.String()
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
