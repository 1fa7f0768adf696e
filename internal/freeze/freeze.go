// Package freeze implements the background worker that enforces pinned
// memory values, adapted from the teacher's tick-driven pool workers down
// to a single goroutine with a command channel and a periodic rewrite
// pass — the same "drain commands, then do the periodic work" loop shape
// used throughout the teacher's polling screens, here applied to memory
// instead of VM or process state.
package freeze

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relkin/memscan/internal/logging"
	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/valuetype"
)

// DefaultTick is the enforcement period from spec.md §4.6.
const DefaultTick = 500 * time.Millisecond

type commandKind int

const (
	cmdSetPid commandKind = iota
	cmdFreeze
	cmdUnfreeze
)

type command struct {
	kind  commandKind
	pid   int
	addr  uint64
	value valuetype.TypedValue
}

// Worker owns a map of pinned (address, value) pairs exclusively; the map
// is mutated only inside run(), in response to commands received over
// cmds. No other goroutine ever touches pinned directly.
type Worker struct {
	io   memio.MemoryIO
	tick time.Duration

	cmds chan command
	done chan struct{}

	pid    int
	handle memio.Handle
	pinned map[uint64]valuetype.TypedValue
}

// New starts the worker goroutine immediately. Call Close to stop it.
func New(io memio.MemoryIO, tick time.Duration) *Worker {
	if tick <= 0 {
		tick = DefaultTick
	}
	w := &Worker{
		io:     io,
		tick:   tick,
		cmds:   make(chan command, 256),
		done:   make(chan struct{}),
		pinned: make(map[uint64]valuetype.TypedValue),
	}
	go w.run()
	return w
}

// SetPid changes the enforcement target. pid == 0 clears every pinned
// value, matching the engine's "detach releases all freezes" rule.
func (w *Worker) SetPid(pid int) {
	w.cmds <- command{kind: cmdSetPid, pid: pid}
}

// Freeze inserts or overwrites the pinned value at addr.
func (w *Worker) Freeze(addr uint64, value valuetype.TypedValue) {
	w.cmds <- command{kind: cmdFreeze, addr: addr, value: value}
}

// Unfreeze removes addr from the pinned set. Because cmds is a single
// FIFO channel, a Freeze immediately followed by an Unfreeze for the same
// address is always applied in that order, so no pinned value is ever
// left behind — the ordering guarantee in spec.md §8 holds regardless of
// how the commands interleave with tick boundaries.
func (w *Worker) Unfreeze(addr uint64) {
	w.cmds <- command{kind: cmdUnfreeze, addr: addr}
}

// Close stops the worker. It does not wait for any in-flight tick.
func (w *Worker) Close() {
	close(w.done)
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.drainCommands()
			w.writeAll()
		}
	}
}

// drainCommands applies every command queued since the last tick,
// non-blockingly, per spec.md §4.6.
func (w *Worker) drainCommands() {
	for {
		select {
		case cmd := <-w.cmds:
			w.apply(cmd)
		default:
			return
		}
	}
}

func (w *Worker) apply(cmd command) {
	switch cmd.kind {
	case cmdSetPid:
		w.pid = cmd.pid
		w.handle = memio.Handle{PID: cmd.pid}
		if cmd.pid == 0 {
			w.pinned = make(map[uint64]valuetype.TypedValue)
		}
	case cmdFreeze:
		w.pinned[cmd.addr] = cmd.value
	case cmdUnfreeze:
		delete(w.pinned, cmd.addr)
	}
}

// writeAll is best-effort: a failed write is ignored and retried on the
// next tick, per spec.md §7's WriteFailed policy.
func (w *Worker) writeAll() {
	if w.pid == 0 {
		return
	}
	for addr, tv := range w.pinned {
		if err := w.io.Write(w.handle, addr, tv.Bytes); err != nil {
			logging.Log.WithFields(logrus.Fields{"pid": w.pid, "addr": addr}).WithError(err).Debug("freeze rewrite failed, retrying next tick")
		}
	}
}
