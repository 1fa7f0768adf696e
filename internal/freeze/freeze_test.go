package freeze

import (
	"sync"
	"testing"
	"time"

	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/valuetype"
)

// fakeIO is an in-memory stand-in for memio.MemoryIO, letting tests
// observe what the freeze worker writes without touching a real process.
type fakeIO struct {
	mu  sync.Mutex
	mem map[uint64][]byte
}

func newFakeIO() *fakeIO {
	return &fakeIO{mem: make(map[uint64][]byte)}
}

func (f *fakeIO) Attach(pid int) (memio.Handle, error) { return memio.Handle{PID: pid}, nil }
func (f *fakeIO) Regions(pid int) ([]memio.Region, error) { return nil, nil }
func (f *fakeIO) Read(h memio.Handle, addr uint64, length int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.mem[addr]
	if !ok {
		return make([]byte, length), nil
	}
	out := make([]byte, length)
	copy(out, b)
	return out, nil
}
func (f *fakeIO) Write(h memio.Handle, addr uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.mem[addr] = cp
	return nil
}
func (f *fakeIO) ListProcesses() ([]memio.ProcessInfo, error) { return nil, nil }

func (f *fakeIO) get(addr uint64) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.mem[addr]...)
}

func (f *fakeIO) set(addr uint64, b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	f.mem[addr] = cp
}

func TestFreezeRewritesWithinOneTick(t *testing.T) {
	io := newFakeIO()
	w := New(io, 20*time.Millisecond)
	defer w.Close()

	w.SetPid(1234)
	pinned := valuetype.TypedValue{Type: valuetype.Int, Bytes: []byte{0xEF, 0xBE, 0xAD, 0xDE}} // 0xDEADBEEF LE
	w.Freeze(0x1000, pinned)

	time.Sleep(60 * time.Millisecond) // first tick installs it
	io.set(0x1000, []byte{0, 0, 0, 0})
	time.Sleep(60 * time.Millisecond) // next tick should restore it

	got := io.get(0x1000)
	for i, b := range pinned.Bytes {
		if got[i] != b {
			t.Fatalf("after rewrite tick, mem = %x, want %x", got, pinned.Bytes)
		}
	}
}

func TestUnfreezeStopsRewriting(t *testing.T) {
	io := newFakeIO()
	w := New(io, 20*time.Millisecond)
	defer w.Close()

	w.SetPid(1234)
	pinned := valuetype.TypedValue{Type: valuetype.Int, Bytes: []byte{1, 2, 3, 4}}
	w.Freeze(0x2000, pinned)
	time.Sleep(60 * time.Millisecond)

	w.Unfreeze(0x2000)
	time.Sleep(10 * time.Millisecond) // let the unfreeze command land before next tick
	io.set(0x2000, []byte{9, 9, 9, 9})
	time.Sleep(60 * time.Millisecond)

	got := io.get(0x2000)
	want := []byte{9, 9, 9, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("address was rewritten after unfreeze: got %x, want %x", got, want)
		}
	}
}

func TestFreezeThenUnfreezeSameAddressNeverLeavesPinnedValue(t *testing.T) {
	io := newFakeIO()
	w := New(io, 15*time.Millisecond)
	defer w.Close()

	w.SetPid(1)
	io.set(0x3000, []byte{0, 0, 0, 0})
	w.Freeze(0x3000, valuetype.TypedValue{Type: valuetype.Int, Bytes: []byte{1, 1, 1, 1}})
	w.Unfreeze(0x3000)

	time.Sleep(80 * time.Millisecond)
	io.set(0x3000, []byte{5, 5, 5, 5})
	time.Sleep(40 * time.Millisecond)

	got := io.get(0x3000)
	want := []byte{5, 5, 5, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pinned value leaked after Freeze+Unfreeze: got %x, want %x", got, want)
		}
	}
}

func TestSetPidZeroClearsAllPinned(t *testing.T) {
	io := newFakeIO()
	w := New(io, 15*time.Millisecond)
	defer w.Close()

	w.SetPid(7)
	w.Freeze(0x4000, valuetype.TypedValue{Type: valuetype.Int, Bytes: []byte{1, 1, 1, 1}})
	time.Sleep(40 * time.Millisecond)

	w.SetPid(0)
	time.Sleep(10 * time.Millisecond)
	io.set(0x4000, []byte{0, 0, 0, 0})
	time.Sleep(40 * time.Millisecond)

	got := io.get(0x4000)
	want := []byte{0, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("detach did not clear pinned values: got %x, want %x", got, want)
		}
	}
}
