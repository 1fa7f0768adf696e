package replshell

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/relkin/memscan/internal/engine"
	"github.com/relkin/memscan/internal/memio"
)

type fakeMem struct {
	regions []memio.Region
	data    map[uint64][]byte
}

func newFakeMem() *fakeMem {
	return &fakeMem{data: make(map[uint64][]byte)}
}

func (f *fakeMem) Attach(pid int) (memio.Handle, error) {
	if pid == 0 {
		return memio.Handle{}, nil
	}
	return memio.Handle{PID: pid}, nil
}

func (f *fakeMem) Regions(pid int) ([]memio.Region, error) { return f.regions, nil }

func (f *fakeMem) Read(h memio.Handle, addr uint64, length int) ([]byte, error) {
	b, ok := f.data[addr]
	if !ok || len(b) < length {
		return make([]byte, length), nil
	}
	out := make([]byte, length)
	copy(out, b)
	return out, nil
}

func (f *fakeMem) Write(h memio.Handle, addr uint64, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.data[addr] = cp
	return nil
}

func (f *fakeMem) ListProcesses() ([]memio.ProcessInfo, error) {
	return []memio.ProcessInfo{{PID: 42, Name: "target"}}, nil
}

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	mem := newFakeMem()
	mem.data[0x1000] = append([]byte{42, 0, 0, 0}, make([]byte, 0x100-4)...)
	mem.regions = []memio.Region{{Start: 0x1000, Size: 0x100, Writable: true}}

	eng := engine.New(mem, engine.Config{
		Workers:          2,
		BlockSizeBytes:   1 << 20,
		FreezeTickMillis: 20,
		HistoryCap:       10,
	})
	t.Cleanup(eng.Close)

	buf := &bytes.Buffer{}
	return &Shell{eng: eng, out: buf}, buf
}

func waitForComplete(t *testing.T, s *Shell) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.eng.ResultsSnapshot().State.String() == "complete" {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("scan never completed")
}

func TestScanRefineFreezeWriteFlow(t *testing.T) {
	s, buf := newTestShell(t)

	s.dispatch("attach", []string{"1"})
	if !strings.Contains(buf.String(), "attached to pid 1") {
		t.Fatalf("attach output = %q", buf.String())
	}
	buf.Reset()

	s.dispatch("type", []string{"int"})
	s.dispatch("value", []string{"42"})
	s.dispatch("scan", nil)
	waitForComplete(t, s)
	buf.Reset()

	s.dispatch("results", []string{"10"})
	out := buf.String()
	if !strings.Contains(out, "0x1000") {
		t.Fatalf("results output missing hit: %q", out)
	}
	buf.Reset()

	s.dispatch("freeze", []string{"0x1000"})
	if !strings.Contains(buf.String(), "froze 0x1000") {
		t.Fatalf("freeze output = %q", buf.String())
	}
	buf.Reset()

	s.dispatch("write", []string{"0x1000", "99"})
	if !strings.Contains(buf.String(), "wrote 0x1000") {
		t.Fatalf("write output = %q", buf.String())
	}
}

func TestSessionSubcommands(t *testing.T) {
	s, buf := newTestShell(t)

	s.dispatch("session", []string{"new", "scratch"})
	if !strings.Contains(buf.String(), "created session 1") {
		t.Fatalf("session new output = %q", buf.String())
	}
	buf.Reset()

	s.dispatch("session", []string{"list"})
	if !strings.Contains(buf.String(), "scratch") {
		t.Fatalf("session list output = %q", buf.String())
	}
	buf.Reset()

	s.dispatch("session", []string{"switch", "0"})
	if !strings.Contains(buf.String(), "switched to session 0") {
		t.Fatalf("session switch output = %q", buf.String())
	}
}

func TestUnknownCommandReported(t *testing.T) {
	s, buf := newTestShell(t)
	s.dispatch("bogus", nil)
	if !strings.Contains(buf.String(), "unknown command") {
		t.Fatalf("got %q", buf.String())
	}
}
