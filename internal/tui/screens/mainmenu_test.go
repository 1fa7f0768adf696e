package screens

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/relkin/memscan/internal/engine"
	"github.com/relkin/memscan/internal/memio"
)

type fakeMem struct{ data map[uint64][]byte }

func newFakeMem() *fakeMem { return &fakeMem{data: make(map[uint64][]byte)} }

func (f *fakeMem) Attach(pid int) (memio.Handle, error) { return memio.Handle{PID: pid}, nil }
func (f *fakeMem) Regions(pid int) ([]memio.Region, error) {
	return []memio.Region{{Start: 0x1000, Size: 0x100, Writable: true}}, nil
}
func (f *fakeMem) Read(h memio.Handle, addr uint64, length int) ([]byte, error) {
	return make([]byte, length), nil
}
func (f *fakeMem) Write(h memio.Handle, addr uint64, data []byte) error { return nil }
func (f *fakeMem) ListProcesses() ([]memio.ProcessInfo, error) {
	return []memio.ProcessInfo{{PID: 42, Name: "target"}}, nil
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New(newFakeMem(), engine.Config{Workers: 2, BlockSizeBytes: 1 << 20, FreezeTickMillis: 20, HistoryCap: 10})
	t.Cleanup(eng.Close)
	return eng
}

func TestMenuCursorMovesDownAndWraps(t *testing.T) {
	eng := newTestEngine(t)
	m := NewMenuScreen(eng)
	if m.Cursor() != 0 {
		t.Fatalf("initial cursor = %d, want 0", m.Cursor())
	}

	var model tea.Model = m
	for i := 0; i < m.ItemCount(); i++ {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	}
	menu := model.(MenuScreen)
	if menu.Cursor() != 0 {
		t.Fatalf("cursor after full wrap = %d, want 0", menu.Cursor())
	}
}

func TestMenuCursorWrapsUpFromZero(t *testing.T) {
	eng := newTestEngine(t)
	m := NewMenuScreen(eng)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	menu := updated.(MenuScreen)
	if menu.Cursor() != menu.ItemCount()-1 {
		t.Fatalf("cursor after wrap-up = %d, want %d", menu.Cursor(), menu.ItemCount()-1)
	}
}

func TestMenuViewShowsItems(t *testing.T) {
	eng := newTestEngine(t)
	m := NewMenuScreen(eng)
	view := m.View()
	for _, want := range []string{"Sessions", "Environment doctor", "Configuration"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}
