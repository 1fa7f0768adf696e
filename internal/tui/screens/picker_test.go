package screens

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/relkin/memscan/internal/memio"
)

func pickerWithProcesses(t *testing.T, procs []memio.ProcessInfo) ProcessPickerScreen {
	t.Helper()
	eng := newTestEngine(t)
	m := NewProcessPickerScreen(eng)
	updated, _ := m.Update(ProcessesLoadedMsg{Processes: procs})
	return updated.(ProcessPickerScreen)
}

func TestProcessPickerShowsLoadingInitially(t *testing.T) {
	eng := newTestEngine(t)
	m := NewProcessPickerScreen(eng)
	view := m.View()
	if !strings.Contains(view, "Enumerating") {
		t.Fatalf("expected loading view, got %q", view)
	}
}

func TestProcessPickerShowsEmptyState(t *testing.T) {
	m := pickerWithProcesses(t, nil)
	view := m.View()
	if !strings.Contains(view, "No processes found") {
		t.Fatalf("expected empty state, got %q", view)
	}
}

func TestProcessPickerListsProcesses(t *testing.T) {
	m := pickerWithProcesses(t, []memio.ProcessInfo{{PID: 100, Name: "alpha"}, {PID: 200, Name: "beta"}})
	view := m.View()
	if !strings.Contains(view, "alpha") || !strings.Contains(view, "beta") {
		t.Fatalf("expected both processes listed, got %q", view)
	}
}

func TestProcessPickerAttachPushesMenu(t *testing.T) {
	m := pickerWithProcesses(t, []memio.ProcessInfo{{PID: 42, Name: "target"}})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a push command on attach")
	}
	msg := cmd()
	if _, ok := msg.(PushScreenMsg); !ok {
		t.Fatalf("expected PushScreenMsg, got %T", msg)
	}
}
