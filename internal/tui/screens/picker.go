package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/relkin/memscan/internal/engine"
	"github.com/relkin/memscan/internal/memio"
)

const processPollInterval = 3 * time.Second

// ProcessesLoadedMsg is sent when process enumeration completes.
// Exported for testing.
type ProcessesLoadedMsg struct {
	Processes []memio.ProcessInfo
	Err       error
}

// ProcessPollTickMsg is the periodic re-enumeration tick. Exported for
// testing.
type ProcessPollTickMsg struct{}

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Attach key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Attach, k.Help, k.Quit}
}

func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Attach},
		{k.Help, k.Quit},
	}
}

// ProcessPickerScreen lists attachable processes and attaches the
// engine to whichever one the user selects.
type ProcessPickerScreen struct {
	eng     *engine.Engine
	keys    pickerKeyMap
	help    help.Model
	procs   []memio.ProcessInfo
	cursor  int
	loading bool
	status  string
	err     error
	width   int
	height  int
}

func NewProcessPickerScreen(eng *engine.Engine) ProcessPickerScreen {
	return ProcessPickerScreen{
		eng: eng,
		keys: pickerKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Attach: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "attach")),
			Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
			Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		help:    help.New(),
		loading: true,
	}
}

func (m ProcessPickerScreen) Init() tea.Cmd {
	return tea.Batch(m.listProcesses(), pollProcessesTick())
}

// Processes returns the current process list (for testing).
func (m ProcessPickerScreen) Processes() []memio.ProcessInfo {
	return m.procs
}

// Status returns the current status message (for testing).
func (m ProcessPickerScreen) Status() string {
	return m.status
}

func (m ProcessPickerScreen) listProcesses() tea.Cmd {
	eng := m.eng
	return func() tea.Msg {
		procs, err := eng.ListProcesses()
		return ProcessesLoadedMsg{Processes: procs, Err: err}
	}
}

func pollProcessesTick() tea.Cmd {
	return tea.Tick(processPollInterval, func(_ time.Time) tea.Msg {
		return ProcessPollTickMsg{}
	})
}

func (m ProcessPickerScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case ProcessesLoadedMsg:
		m.loading = false
		m.procs = msg.Processes
		m.err = msg.Err
		if m.cursor >= len(m.procs) {
			m.cursor = max(0, len(m.procs)-1)
		}
		return m, nil

	case ProcessPollTickMsg:
		return m, tea.Batch(m.listProcesses(), pollProcessesTick())

	case tea.KeyMsg:
		if m.loading {
			if key.Matches(msg, m.keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.procs)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Attach):
			if len(m.procs) > 0 {
				p := m.procs[m.cursor]
				if err := m.eng.SetPID(p.PID); err != nil {
					m.status = fmt.Sprintf("Error: %s", err)
					return m, nil
				}
				return m, pushScreen(NewMenuScreen(m.eng))
			}
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ProcessPickerScreen) View() string {
	var b strings.Builder

	b.WriteString("  Attach to a Process\n\n")

	if m.loading {
		b.WriteString("  Enumerating processes...\n")
		return b.String()
	}

	if m.err != nil {
		b.WriteString(fmt.Sprintf("  Error: %s\n", m.err))
		b.WriteString("\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	if len(m.procs) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("  No processes found."))
		b.WriteString("\n")
	} else {
		for i, p := range m.procs {
			detail := fmt.Sprintf("%-8d %s", p.PID, p.Name)
			if i == m.cursor {
				b.WriteString(lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render("  > " + detail))
			} else {
				b.WriteString("    " + detail)
			}
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString("  " + lipgloss.NewStyle().Foreground(colorError).Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}
