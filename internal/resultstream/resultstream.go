// Package resultstream collects scan hits produced concurrently by
// workerpool jobs into a single ordered-enough result set, tracking a
// running count via an atomic counter so callers (the TUI progress
// screen, the JSON progress reporter) can poll match counts without
// taking a lock on the results themselves.
package resultstream

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/relkin/memscan/internal/scanner"
)

// Stream accumulates batches of hits sent concurrently by scan workers.
// Send is safe for concurrent use; Drain may run while producers are
// still sending and returns only after Close has been called.
type Stream struct {
	batches chan []scanner.Hit
	count   atomic.Int64

	mu      sync.Mutex
	drained []scanner.Hit
	closed  bool
}

// New creates a Stream with the given channel buffer depth — one slot
// per in-flight block job is a reasonable default so Send never blocks
// on a slow consumer.
func New(bufferDepth int) *Stream {
	return &Stream{
		batches: make(chan []scanner.Hit, bufferDepth),
	}
}

// Send enqueues one block's hits and bumps the running count. Called
// from workerpool job closures; never blocks the scan itself against a
// UI redraw because the channel is buffered up front.
func (s *Stream) Send(batch []scanner.Hit) {
	if len(batch) == 0 {
		return
	}
	s.count.Add(int64(len(batch)))
	s.batches <- batch
}

// Count returns the number of hits sent so far, safe to poll
// concurrently with in-flight Sends.
func (s *Stream) Count() int64 {
	return s.count.Load()
}

// Close signals that no further batches will be sent. Must be called
// exactly once, after every producing goroutine has returned.
func (s *Stream) Close() {
	close(s.batches)
}

// Drain blocks until Close has been called and all queued batches have
// been consumed, then returns every hit collected, sorted by address.
// Safe to call only once per Stream.
func (s *Stream) Drain() []scanner.Hit {
	var all []scanner.Hit
	for batch := range s.batches {
		all = append(all, batch...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Addr < all[j].Addr })

	s.mu.Lock()
	s.drained = all
	s.closed = true
	s.mu.Unlock()
	return all
}

// Drained reports whether Drain has completed and returns its result,
// letting a caller re-read the final results without re-draining.
func (s *Stream) Drained() ([]scanner.Hit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drained, s.closed
}
