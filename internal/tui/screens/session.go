package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/relkin/memscan/internal/engine"
	"github.com/relkin/memscan/internal/session"
	"github.com/relkin/memscan/internal/valuetype"
)

const sessionPollInterval = 150 * time.Millisecond

var cycleTypes = []valuetype.Type{
	valuetype.Byte, valuetype.Short, valuetype.Int, valuetype.Int64,
	valuetype.Float, valuetype.Double, valuetype.String, valuetype.StringUtf16,
	valuetype.Guess, valuetype.Unknown,
}

// SessionPollTickMsg drives the progress bar while a scan is running.
// Exported for testing.
type SessionPollTickMsg struct{}

type sessionKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Type    key.Binding
	Value   key.Binding
	Scan    key.Binding
	Refine  key.Binding
	Undo    key.Binding
	Clear   key.Binding
	Freeze  key.Binding
	NextSes key.Binding
	PrevSes key.Binding
	NewSes  key.Binding
	Help    key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func (k sessionKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Type, k.Value, k.Scan, k.Refine, k.Freeze, k.Help, k.Back}
}

func (k sessionKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Type, k.Value, k.Scan, k.Refine, k.Undo, k.Clear, k.Freeze},
		{k.NextSes, k.PrevSes, k.NewSes},
		{k.Help, k.Back, k.Quit},
	}
}

// SessionScreen is the scan/refine/freeze workspace for the engine's
// active session.
type SessionScreen struct {
	eng      *engine.Engine
	keys     sessionKeyMap
	input    textinput.Model
	editing  bool
	progress progress.Model
	cursor   int
	status   string
	width    int
	height   int
}

func NewSessionScreen(eng *engine.Engine) SessionScreen {
	ti := textinput.New()
	ti.Placeholder = "query text"
	ti.CharLimit = 128

	return SessionScreen{
		eng:      eng,
		input:    ti,
		progress: progress.New(progress.WithDefaultGradient()),
		keys: sessionKeyMap{
			Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Type:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle type")),
			Value:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "edit value")),
			Scan:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scan")),
			Refine:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refine")),
			Undo:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
			Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
			Freeze:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "toggle freeze")),
			NextSes: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next session")),
			PrevSes: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev session")),
			NewSes:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new session")),
			Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
			Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
			Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		},
	}
}

func (m SessionScreen) Init() tea.Cmd {
	return pollSessionTick()
}

func pollSessionTick() tea.Cmd {
	return tea.Tick(sessionPollInterval, func(_ time.Time) tea.Msg {
		return SessionPollTickMsg{}
	})
}

func (m SessionScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 10
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case SessionPollTickMsg:
		snap := m.eng.ResultsSnapshot()
		if m.cursor >= len(snap.Hits) {
			m.cursor = max(0, len(snap.Hits)-1)
		}
		return m, pollSessionTick()

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if m.editing {
			switch msg.String() {
			case "enter":
				m.eng.SetQueryText(m.input.Value())
				m.editing = false
				m.input.Blur()
				return m, nil
			case "esc":
				m.editing = false
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			snap := m.eng.ResultsSnapshot()
			if m.cursor < len(snap.Hits)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Type):
			m.eng.SetValueType(nextType(m.eng.Active().ValueType()))
		case key.Matches(msg, m.keys.Value):
			m.editing = true
			m.input.Focus()
			return m, textinput.Blink
		case key.Matches(msg, m.keys.Scan):
			m.runOrReport(m.eng.InitialScan())
		case key.Matches(msg, m.keys.Refine):
			if m.eng.Active().ValueType() == valuetype.Unknown {
				m.runOrReport(m.eng.TakeSnapshot())
			} else {
				m.runOrReport(m.eng.Refine())
			}
		case key.Matches(msg, m.keys.Undo):
			m.runOrReport(m.eng.UndoActive())
		case key.Matches(msg, m.keys.Clear):
			m.eng.ClearActive()
			m.cursor = 0
		case key.Matches(msg, m.keys.Freeze):
			m.toggleFreeze()
		case key.Matches(msg, m.keys.NewSes):
			m.eng.NewSession(fmt.Sprintf("session %d", len(m.eng.Sessions())+1))
			m.cursor = 0
		case key.Matches(msg, m.keys.NextSes):
			m.switchSession(1)
		case key.Matches(msg, m.keys.PrevSes):
			m.switchSession(-1)
		case key.Matches(msg, m.keys.Back):
			return m, popScreen()
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *SessionScreen) runOrReport(err error) {
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

func (m *SessionScreen) toggleFreeze() {
	snap := m.eng.ResultsSnapshot()
	if m.cursor >= len(snap.Hits) {
		return
	}
	hit := snap.Hits[m.cursor]
	on := !m.isFrozen(hit.Addr)
	if err := m.eng.SetFrozen(hit.Addr, on); err != nil {
		m.status = err.Error()
	}
}

func (m SessionScreen) isFrozen(addr uint64) bool {
	return m.eng.Active().IsFrozen(addr)
}

func (m *SessionScreen) switchSession(delta int) {
	sessions := m.eng.Sessions()
	if len(sessions) == 0 {
		return
	}
	i := m.eng.ActiveIndex() + delta
	if i < 0 {
		i = len(sessions) - 1
	}
	if i >= len(sessions) {
		i = 0
	}
	if err := m.eng.SwitchTo(i); err != nil {
		m.status = err.Error()
		return
	}
	m.cursor = 0
}

func nextType(t valuetype.Type) valuetype.Type {
	for i, c := range cycleTypes {
		if c == t {
			return cycleTypes[(i+1)%len(cycleTypes)]
		}
	}
	return cycleTypes[0]
}

func (m SessionScreen) View() string {
	var b strings.Builder

	active := m.eng.Active()
	snap := m.eng.ResultsSnapshot()

	b.WriteString(fmt.Sprintf("  Session %d: %s  [%s]\n", m.eng.ActiveIndex(), active.Description(), snap.State))
	b.WriteString(fmt.Sprintf("  type=%s\n", active.ValueType()))

	if m.editing {
		b.WriteString("  value> " + m.input.View() + "\n")
	} else {
		b.WriteString(fmt.Sprintf("  value: %s\n", active.QueryText()))
	}
	b.WriteString("\n")

	if snap.State == session.ScanningRegions && snap.TotalBytes > 0 {
		frac := float64(snap.ScannedBytes) / float64(snap.TotalBytes)
		b.WriteString("  " + m.progress.ViewAs(frac) + "\n\n")
	}

	b.WriteString(fmt.Sprintf("  %d candidates\n", snap.ResultCount))
	for i, h := range snap.Hits {
		if i > 30 {
			b.WriteString(fmt.Sprintf("  ... %d more\n", len(snap.Hits)-i))
			break
		}
		line := fmt.Sprintf("0x%x  %s", h.Addr, h.Type)
		if m.isFrozen(h.Addr) {
			line += "  [frozen]"
		}
		if i == m.cursor {
			b.WriteString(lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render("  > " + line))
		} else {
			b.WriteString("    " + line)
		}
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(colorError).Render("  " + m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render(
		"  t type • v value • s scan • r refine • u undo • c clear • f freeze • [ ] session • n new • esc back"))

	return b.String()
}
