package screens

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/cpu"
)

type checkResult struct {
	name   string
	status string // "ok", "warning", "error"
	detail string
}

type doctorResultMsg struct {
	checks []checkResult
}

type doctorKeyMap struct {
	Refresh key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func (k doctorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Back, k.Quit}
}

func (k doctorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Back, k.Quit}}
}

type DoctorScreen struct {
	keys    doctorKeyMap
	spinner spinner.Model
	loading bool
	checks  []checkResult
	width   int
	height  int
}

func NewDoctorScreen() DoctorScreen {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return DoctorScreen{
		keys: doctorKeyMap{
			Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
			Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
			Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		spinner: s,
		loading: true,
	}
}

func (m DoctorScreen) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, runDoctorChecks)
}

func runDoctorChecks() tea.Msg {
	var checks []checkResult

	if runtime.GOOS == "linux" {
		checks = append(checks, checkResult{name: "platform", status: "ok", detail: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)})
	} else {
		checks = append(checks, checkResult{name: "platform", status: "warning", detail: fmt.Sprintf("%s/%s — limited support", runtime.GOOS, runtime.GOARCH)})
	}

	if cpu.X86.HasAVX2 {
		checks = append(checks, checkResult{name: "simd", status: "ok", detail: "AVX2 available"})
	} else {
		checks = append(checks, checkResult{name: "simd", status: "warning", detail: "AVX2 unavailable, scalar scan path"})
	}

	if runtime.GOOS == "linux" {
		if _, err := os.Stat("/proc/self/maps"); err != nil {
			checks = append(checks, checkResult{name: "procfs", status: "error", detail: fmt.Sprintf("unavailable: %s", err)})
		} else {
			checks = append(checks, checkResult{name: "procfs", status: "ok", detail: "/proc is readable"})
		}
		checks = append(checks, checkPtraceScopeTUI())
	} else {
		checks = append(checks, checkResult{name: "procfs", status: "warning", detail: "not applicable"})
	}

	return doctorResultMsg{checks: checks}
}

func checkPtraceScopeTUI() checkResult {
	data, err := os.ReadFile("/proc/sys/kernel/yama/ptrace_scope")
	if err != nil {
		return checkResult{name: "ptrace", status: "ok", detail: "yama LSM not present"}
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return checkResult{name: "ptrace", status: "warning", detail: "unexpected ptrace_scope value"}
	}
	switch n {
	case 0:
		return checkResult{name: "ptrace", status: "ok", detail: "ptrace_scope=0"}
	case 1:
		return checkResult{name: "ptrace", status: "warning", detail: "ptrace_scope=1, root required for non-child targets"}
	default:
		return checkResult{name: "ptrace", status: "error", detail: fmt.Sprintf("ptrace_scope=%d, CAP_SYS_PTRACE required", n)}
	}
}

func (m DoctorScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case doctorResultMsg:
		m.loading = false
		m.checks = msg.checks
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, runDoctorChecks)
		case key.Matches(msg, m.keys.Back):
			return m, popScreen()
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m DoctorScreen) View() string {
	var b strings.Builder

	b.WriteString("  Environment Health\n\n")

	if m.loading {
		b.WriteString(fmt.Sprintf("  Running checks...  %s\n", m.spinner.View()))
		return b.String()
	}

	var warnings, errors int
	for _, c := range m.checks {
		var symbol string
		switch c.status {
		case "ok":
			symbol = lipgloss.NewStyle().Foreground(colorSuccess).Render("✓")
		case "warning":
			symbol = lipgloss.NewStyle().Foreground(colorWarning).Render("⚠")
			warnings++
		case "error":
			symbol = lipgloss.NewStyle().Foreground(colorError).Render("✗")
			errors++
		}
		b.WriteString(fmt.Sprintf("  %s %-10s %s\n", symbol, c.name, c.detail))
	}

	b.WriteString("\n")

	if errors > 0 {
		b.WriteString(fmt.Sprintf("  Problems found (%d errors, %d warnings).\n", errors, warnings))
	} else if warnings > 0 {
		b.WriteString(fmt.Sprintf("  Everything looks good (%d warnings).\n", warnings))
	} else {
		b.WriteString("  Everything looks good.\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("  r refresh • esc back • q quit"))

	return b.String()
}
