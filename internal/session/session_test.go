package session

import (
	"sync"
	"testing"
	"time"

	"github.com/relkin/memscan/internal/freeze"
	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/valuetype"
	"github.com/relkin/memscan/internal/workerpool"
)

// fakeMem is a single-region in-process stand-in for memio.MemoryIO.
type fakeMem struct {
	mu    sync.Mutex
	start uint64
	data  []byte
}

func newFakeMem(start uint64, data []byte) *fakeMem {
	return &fakeMem{start: start, data: append([]byte(nil), data...)}
}

func (f *fakeMem) Attach(pid int) (memio.Handle, error) { return memio.Handle{PID: pid}, nil }

func (f *fakeMem) Regions(pid int) ([]memio.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []memio.Region{{Start: f.start, Size: uint64(len(f.data)), Writable: true}}, nil
}

func (f *fakeMem) Read(h memio.Handle, addr uint64, length int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr < f.start || addr+uint64(length) > f.start+uint64(len(f.data)) {
		return nil, &memio.Error{Kind: memio.KindRegionUnavailable, Op: "read"}
	}
	off := addr - f.start
	out := make([]byte, length)
	copy(out, f.data[off:off+uint64(length)])
	return out, nil
}

func (f *fakeMem) Write(h memio.Handle, addr uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr < f.start || addr+uint64(len(data)) > f.start+uint64(len(f.data)) {
		return &memio.Error{Kind: memio.KindWriteFailed, Op: "write"}
	}
	off := addr - f.start
	copy(f.data[off:], data)
	return nil
}

func (f *fakeMem) ListProcesses() ([]memio.ProcessInfo, error) { return nil, nil }

func (f *fakeMem) set(addr uint64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	off := addr - f.start
	copy(f.data[off:], data)
}

func newTestSession(t *testing.T, io memio.MemoryIO) (*Session, *workerpool.Pool, *freeze.Worker) {
	t.Helper()
	pool := workerpool.New(4)
	fw := freeze.New(io, 20*time.Millisecond)
	opts := DefaultOptions()
	s := New("test", io, pool, fw, opts)
	s.SetTarget(1, memio.Handle{PID: 1})
	t.Cleanup(func() {
		fw.Close()
	})
	return s, pool, fw
}

func waitComplete(t *testing.T, s *Session) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.ResultsSnapshot()
		if snap.State == Complete {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("scan did not complete in time")
	return Snapshot{}
}

func TestInitialScanByteFindsHits(t *testing.T) {
	buf := []byte{0x00, 0x42, 0x00, 0x42, 0x00, 0x42, 0xFF}
	io := newFakeMem(0x1000, buf)
	s, pool, _ := newTestSession(t, io)
	defer pool.Close()

	s.SetValueType(valuetype.Byte)
	s.SetQueryText("66") // 0x42
	if err := s.InitialScan(); err != nil {
		t.Fatalf("InitialScan: %v", err)
	}
	snap := waitComplete(t, s)

	want := map[uint64]bool{0x1001: true, 0x1003: true, 0x1005: true}
	if len(snap.Hits) != len(want) {
		t.Fatalf("got %d hits, want %d (%v)", len(snap.Hits), len(want), snap.Hits)
	}
	for _, h := range snap.Hits {
		if !want[h.Addr] {
			t.Errorf("unexpected hit at %#x", h.Addr)
		}
	}
	if snap.ScannedBytes != snap.TotalBytes {
		t.Errorf("ScannedBytes=%d TotalBytes=%d, want equal at Complete", snap.ScannedBytes, snap.TotalBytes)
	}
}

func TestGuessFanOutScenario(t *testing.T) {
	buf := make([]byte, 24)
	f32, _ := valuetype.Encode(valuetype.Float, "3.14")
	f64, _ := valuetype.Encode(valuetype.Double, "3.14")
	copy(buf[4:], f32.Bytes)
	copy(buf[16:], f64.Bytes)

	io := newFakeMem(0, buf)
	s, pool, _ := newTestSession(t, io)
	defer pool.Close()

	s.SetValueType(valuetype.Guess)
	s.SetQueryText("3.14")
	if err := s.InitialScan(); err != nil {
		t.Fatalf("InitialScan: %v", err)
	}
	snap := waitComplete(t, s)

	foundFloat, foundDouble := false, false
	for _, h := range snap.Hits {
		if h.Addr == 4 && h.Type == valuetype.Float {
			foundFloat = true
		}
		if h.Addr == 16 && h.Type == valuetype.Double {
			foundDouble = true
		}
	}
	if !foundFloat {
		t.Error("expected a Float hit at offset 4")
	}
	if !foundDouble {
		t.Error("expected a Double hit at offset 16")
	}
}

func TestRefineNarrowsScenario(t *testing.T) {
	buf := make([]byte, 24)
	f32, _ := valuetype.Encode(valuetype.Float, "3.14")
	f64, _ := valuetype.Encode(valuetype.Double, "3.14")
	copy(buf[4:], f32.Bytes)
	copy(buf[16:], f64.Bytes)

	io := newFakeMem(0, buf)
	s, pool, _ := newTestSession(t, io)
	defer pool.Close()

	s.SetValueType(valuetype.Guess)
	s.SetQueryText("3.14")
	if err := s.InitialScan(); err != nil {
		t.Fatalf("InitialScan: %v", err)
	}
	waitComplete(t, s)

	other32, _ := valuetype.Encode(valuetype.Float, "2.71")
	io.set(4, other32.Bytes)

	if err := s.Refine(); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	snap := s.ResultsSnapshot()
	if len(snap.Hits) != 1 || snap.Hits[0].Addr != 16 || snap.Hits[0].Type != valuetype.Double {
		t.Fatalf("after refine, got %v, want single Double hit at 16", snap.Hits)
	}
}

func TestUnknownComparisonScenario(t *testing.T) {
	run := func(op CompareOp, newVal []byte, wantKept bool) {
		buf := []byte{0x64, 0x00, 0x00, 0x00} // 100
		io := newFakeMem(0x2000, buf)
		s, pool, _ := newTestSession(t, io)
		defer pool.Close()

		s.SetValueType(valuetype.Unknown)
		if err := s.SetUnknownNumericType(valuetype.Int); err != nil {
			t.Fatalf("SetUnknownNumericType: %v", err)
		}
		if err := s.TakeSnapshot(); err != nil {
			t.Fatalf("TakeSnapshot: %v", err)
		}

		io.set(0x2000, newVal)
		if err := s.RefineUnknown(op); err != nil {
			t.Fatalf("RefineUnknown: %v", err)
		}
		snap := s.ResultsSnapshot()
		kept := len(snap.Hits) == 1 && snap.Hits[0].Addr == 0x2000
		if kept != wantKept {
			t.Fatalf("op=%v kept=%v hits=%v, want kept=%v", op, kept, snap.Hits, wantKept)
		}
	}

	increased := []byte{0x69, 0x00, 0x00, 0x00} // 105
	unchanged := []byte{0x64, 0x00, 0x00, 0x00} // 100

	run(Increased, increased, true)
	run(Decreased, increased, false)
	run(Unchanged, increased, false)
	run(Changed, increased, true)
	run(Unchanged, unchanged, true)
	run(Changed, unchanged, false)
}

func TestUndoRestoresPriorCandidateSet(t *testing.T) {
	buf := []byte{0x00, 0x42, 0x00, 0x42, 0x00, 0x42, 0xFF}
	io := newFakeMem(0x1000, buf)
	s, pool, _ := newTestSession(t, io)
	defer pool.Close()

	s.SetValueType(valuetype.Byte)
	s.SetQueryText("66")
	if err := s.InitialScan(); err != nil {
		t.Fatalf("InitialScan: %v", err)
	}
	before := waitComplete(t, s)

	if err := s.Refine(); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	afterRefine := s.ResultsSnapshot()
	if len(afterRefine.Hits) != len(before.Hits) {
		t.Fatalf("refine with unchanged memory should keep all hits: got %d, want %d", len(afterRefine.Hits), len(before.Hits))
	}

	io.set(0x1001, []byte{0x00})
	if err := s.Refine(); err != nil {
		t.Fatalf("second Refine: %v", err)
	}
	narrowed := s.ResultsSnapshot()
	if len(narrowed.Hits) != len(before.Hits)-1 {
		t.Fatalf("expected one fewer hit after narrowing refine, got %d want %d", len(narrowed.Hits), len(before.Hits)-1)
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	restored := s.ResultsSnapshot()
	if len(restored.Hits) != len(before.Hits) {
		t.Fatalf("after undo, got %d hits, want %d", len(restored.Hits), len(before.Hits))
	}
}

func TestClearReleasesFrozenAddresses(t *testing.T) {
	buf := []byte{0x00, 0x42, 0x00, 0x42}
	io := newFakeMem(0x3000, buf)
	s, pool, _ := newTestSession(t, io)
	defer pool.Close()

	s.SetValueType(valuetype.Byte)
	s.SetQueryText("66")
	if err := s.InitialScan(); err != nil {
		t.Fatalf("InitialScan: %v", err)
	}
	snap := waitComplete(t, s)
	if len(snap.Hits) == 0 {
		t.Fatal("expected at least one hit to freeze")
	}

	if err := s.SetFrozen(snap.Hits[0].Addr, true); err != nil {
		t.Fatalf("SetFrozen: %v", err)
	}
	if len(s.frozen) != 1 {
		t.Fatalf("expected 1 frozen address, got %d", len(s.frozen))
	}

	s.Clear()
	if len(s.frozen) != 0 {
		t.Fatalf("expected Clear to release all frozen addresses, got %d", len(s.frozen))
	}
	if s.State() != Idle {
		t.Fatalf("expected Idle after Clear, got %v", s.State())
	}
}
