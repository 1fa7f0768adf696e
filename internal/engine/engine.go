// Package engine implements the public API surface the CLI and TUI drive:
// it owns the target PID, the ordered list of search sessions, the shared
// worker pool, the shared freeze worker, and the MemoryIO facade they all
// read and write through (spec.md §3's Engine, §4.7's command surface).
package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relkin/memscan/internal/freeze"
	"github.com/relkin/memscan/internal/logging"
	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/session"
	"github.com/relkin/memscan/internal/valuetype"
	"github.com/relkin/memscan/internal/workerpool"
)

// Engine is created once per process and lives for the whole run; at
// least one session always exists, and the FreezeWorker outlives every
// session.
type Engine struct {
	io     memio.MemoryIO
	pool   *workerpool.Pool
	freeze *freeze.Worker
	opts   session.Options

	pid    int
	handle memio.Handle

	sessions []*session.Session
	active   int
}

// Config bundles the tunables Engine threads through to its WorkerPool,
// FreezeWorker and sessions.
type Config struct {
	Workers          int
	BlockSizeBytes   int64
	FreezeTickMillis int64
	HistoryCap       int
	SkipSystemLibs   bool
	MinRegionBytes   int64
}

// New constructs an Engine with a single initial session named "1".
func New(io memio.MemoryIO, cfg Config) *Engine {
	pool := workerpool.New(cfg.Workers)
	tick := freeze.DefaultTick
	if cfg.FreezeTickMillis > 0 {
		tick = time.Duration(cfg.FreezeTickMillis) * time.Millisecond
	}
	fw := freeze.New(io, tick)

	opts := session.Options{
		BlockSizeBytes:  cfg.BlockSizeBytes,
		HistoryCap:      cfg.HistoryCap,
		SkipSystemLibs:  cfg.SkipSystemLibs,
		MinRegionBytes:  cfg.MinRegionBytes,
		ResultPageLimit: 1000,
	}
	if opts.BlockSizeBytes <= 0 {
		opts.BlockSizeBytes = session.DefaultOptions().BlockSizeBytes
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = session.DefaultOptions().HistoryCap
	}
	if opts.MinRegionBytes <= 0 {
		opts.MinRegionBytes = session.DefaultOptions().MinRegionBytes
	}

	e := &Engine{
		io:     io,
		pool:   pool,
		freeze: fw,
		opts:   opts,
	}
	e.sessions = append(e.sessions, session.New("1", io, pool, fw, opts))
	return e
}

// Close shuts down the shared worker pool and freeze worker. Call once,
// at process exit.
func (e *Engine) Close() {
	e.pool.Close()
	e.freeze.Close()
}

// PID returns the currently attached process id, or 0 if detached.
func (e *Engine) PID() int { return e.pid }

// SetPID updates every session's target and forwards SetPid to the
// FreezeWorker; pid 0 detaches and releases every freeze engine-wide.
func (e *Engine) SetPID(pid int) error {
	handle, err := e.io.Attach(pid)
	if pid != 0 {
		if err != nil {
			logging.Log.WithFields(logrus.Fields{"pid": pid}).WithError(err).Warn("attach failed")
			return fmt.Errorf("engine: attach pid %d: %w", pid, err)
		}
	}
	e.pid = pid
	e.handle = handle
	for _, s := range e.sessions {
		s.SetTarget(pid, handle)
	}
	e.freeze.SetPid(pid)
	if pid == 0 {
		logging.Log.Info("detached")
	} else {
		logging.Log.WithFields(logrus.Fields{"pid": pid}).Info("attached")
	}
	return nil
}

// ListProcesses proxies MemoryIO.ListProcesses for the process-picker UI.
func (e *Engine) ListProcesses() ([]memio.ProcessInfo, error) {
	return e.io.ListProcesses()
}

// NewSession appends and activates a new session targeting the current
// PID.
func (e *Engine) NewSession(name string) int {
	s := session.New(name, e.io, e.pool, e.freeze, e.opts)
	s.SetTarget(e.pid, e.handle)
	e.sessions = append(e.sessions, s)
	idx := len(e.sessions) - 1
	e.active = idx
	return idx
}

// CloseSession closes session i, refusing to close the last remaining
// one. Closing a session before the active one shifts the active index
// down so the same session stays active.
func (e *Engine) CloseSession(i int) error {
	if i < 0 || i >= len(e.sessions) {
		return fmt.Errorf("engine: session index %d out of range", i)
	}
	if len(e.sessions) == 1 {
		return fmt.Errorf("engine: cannot close the last remaining session")
	}
	e.sessions[i].Clear()
	e.sessions = append(e.sessions[:i], e.sessions[i+1:]...)
	if i < e.active {
		e.active--
	} else if e.active >= len(e.sessions) {
		e.active = len(e.sessions) - 1
	}
	return nil
}

// SwitchTo activates session i.
func (e *Engine) SwitchTo(i int) error {
	if i < 0 || i >= len(e.sessions) {
		return fmt.Errorf("engine: session index %d out of range", i)
	}
	e.active = i
	return nil
}

// RenameSession renames session i.
func (e *Engine) RenameSession(i int, name string) error {
	if i < 0 || i >= len(e.sessions) {
		return fmt.Errorf("engine: session index %d out of range", i)
	}
	e.sessions[i].Rename(name)
	return nil
}

// Active returns the currently active session.
func (e *Engine) Active() *session.Session {
	return e.sessions[e.active]
}

// ActiveIndex returns the index of the currently active session.
func (e *Engine) ActiveIndex() int { return e.active }

// Sessions returns every session in engine order, for a session-browser
// UI.
func (e *Engine) Sessions() []*session.Session {
	return append([]*session.Session(nil), e.sessions...)
}

// SetQueryText is a thin convenience forwarder to the active session.
func (e *Engine) SetQueryText(text string) { e.Active().SetQueryText(text) }

// SetValueType is a thin convenience forwarder to the active session.
func (e *Engine) SetValueType(t valuetype.Type) { e.Active().SetValueType(t) }

// InitialScan starts a scan on the active session.
func (e *Engine) InitialScan() error { return e.Active().InitialScan() }

// Refine narrows the active session's candidate set by value equality.
func (e *Engine) Refine() error { return e.Active().Refine() }

// RefineUnknown narrows the active session by snapshot comparison.
func (e *Engine) RefineUnknown(op session.CompareOp) error { return e.Active().RefineUnknown(op) }

// TakeSnapshot captures the active Unknown-type session's baseline.
func (e *Engine) TakeSnapshot() error { return e.Active().TakeSnapshot() }

// ClearActive clears the active session's candidate set.
func (e *Engine) ClearActive() { e.Active().Clear() }

// UndoActive undoes the active session's last refinement.
func (e *Engine) UndoActive() error { return e.Active().Undo() }

// SetFrozen pins or releases an address in the active session.
func (e *Engine) SetFrozen(addr uint64, on bool) error { return e.Active().SetFrozen(addr, on) }

// Overwrite writes a one-shot value to an address in the active session.
func (e *Engine) Overwrite(addr uint64, text string) error { return e.Active().Overwrite(addr, text) }

// ResultsSnapshot returns the active session's progress, count and page
// of hits.
func (e *Engine) ResultsSnapshot() session.Snapshot { return e.Active().ResultsSnapshot() }
