package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/relkin/memscan/internal/tui/screens"
)

func TestAppStackPushPop(t *testing.T) {
	app := App{stack: []tea.Model{screens.NewDoctorScreen()}}
	if app.StackLen() != 1 {
		t.Fatalf("initial stack len = %d, want 1", app.StackLen())
	}

	updated, _ := app.Update(screens.PushScreenMsg{Screen: screens.NewConfigScreen()})
	app2 := updated.(App)
	if app2.StackLen() != 2 {
		t.Fatalf("stack len after push = %d, want 2", app2.StackLen())
	}

	updated, _ = app2.Update(screens.PopScreenMsg{})
	app3 := updated.(App)
	if app3.StackLen() != 1 {
		t.Fatalf("stack len after pop = %d, want 1", app3.StackLen())
	}
}

func TestAppPopAtRootQuits(t *testing.T) {
	app := App{stack: []tea.Model{screens.NewDoctorScreen()}}
	_, cmd := app.Update(screens.PopScreenMsg{})
	if cmd == nil {
		t.Fatal("expected a quit command when popping the root screen")
	}
}
