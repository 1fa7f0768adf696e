package screens

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/relkin/memscan/internal/engine"
)

type menuItem struct {
	title string
	desc  string
}

type menuKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Help  key.Binding
	Back  key.Binding
	Quit  key.Binding
}

func (k menuKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Help, k.Quit}
}

func (k menuKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Enter},
		{k.Help, k.Back, k.Quit},
	}
}

var defaultMenuKeys = menuKeyMap{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Back:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "detach")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// MenuScreen is the hub shown after attaching to a process.
type MenuScreen struct {
	eng    *engine.Engine
	items  []menuItem
	cursor int
	keys   menuKeyMap
	help   help.Model
	width  int
	height int
}

func NewMenuScreen(eng *engine.Engine) MenuScreen {
	return MenuScreen{
		eng: eng,
		items: []menuItem{
			{title: "Sessions", desc: "Browse, scan and refine candidate sets"},
			{title: "Environment doctor", desc: "Check scan/attach prerequisites"},
			{title: "Configuration", desc: "View engine settings"},
		},
		keys: defaultMenuKeys,
		help: help.New(),
	}
}

func (m MenuScreen) Init() tea.Cmd {
	return nil
}

// Cursor returns the current cursor position (for testing).
func (m MenuScreen) Cursor() int { return m.cursor }

// ItemCount returns the number of menu items (for testing).
func (m MenuScreen) ItemCount() int { return len(m.items) }

func (m MenuScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.cursor--
			if m.cursor < 0 {
				m.cursor = len(m.items) - 1
			}
		case key.Matches(msg, m.keys.Down):
			m.cursor++
			if m.cursor >= len(m.items) {
				m.cursor = 0
			}
		case key.Matches(msg, m.keys.Enter):
			return m, m.selectItem()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Back):
			_ = m.eng.SetPID(0)
			return m, popScreen()
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m MenuScreen) selectItem() tea.Cmd {
	switch m.cursor {
	case 0:
		return pushScreen(NewSessionScreen(m.eng))
	case 1:
		return pushScreen(NewDoctorScreen())
	case 2:
		return pushScreen(NewConfigScreen())
	}
	return nil
}

func (m MenuScreen) View() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("  Attached to pid %d\n\n", m.eng.PID()))

	for i, item := range m.items {
		if i == m.cursor {
			b.WriteString(lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Render("  > " + item.title))
		} else {
			b.WriteString("    " + item.title)
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("    " + item.desc))
		b.WriteString("\n\n")
	}

	b.WriteString(m.help.View(m.keys))

	return b.String()
}
