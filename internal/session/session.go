// Package session implements the candidate-refinement state machine: one
// SearchSession owns a candidate set, its history stack, its frozen
// addresses, and (for Unknown-type sessions) a snapshot used for
// increased/decreased/changed/unchanged comparisons. It drives
// MemoryIO reads through a shared workerpool.Pool and a resultstream.Stream
// for the initial scan, and talks to a shared freeze.Worker to keep
// pinned addresses in sync as the candidate set narrows.
package session

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/relkin/memscan/internal/freeze"
	"github.com/relkin/memscan/internal/logging"
	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/resultstream"
	"github.com/relkin/memscan/internal/scanner"
	"github.com/relkin/memscan/internal/valuetype"
	"github.com/relkin/memscan/internal/workerpool"
)

// State is one node of the refinement state machine in spec.md §4.3.
type State int

const (
	Idle State = iota
	ScanningRegions
	Refining
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ScanningRegions:
		return "scanning"
	case Refining:
		return "refining"
	case Complete:
		return "complete"
	default:
		return "invalid"
	}
}

// CompareOp is an unknown-value refinement operator.
type CompareOp int

const (
	Increased CompareOp = iota
	Decreased
	Changed
	Unchanged
)

// ParseCompareOp maps a CLI/TUI-facing name to a CompareOp.
func ParseCompareOp(s string) (CompareOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "increased", "inc", ">":
		return Increased, nil
	case "decreased", "dec", "<":
		return Decreased, nil
	case "changed", "chg", "!=":
		return Changed, nil
	case "unchanged", "same", "==":
		return Unchanged, nil
	default:
		return 0, fmt.Errorf("unknown comparison operator %q", s)
	}
}

// Options bundles the tunables that would otherwise be read from
// config.Config; passed by value so the session package has no
// dependency on the config package.
type Options struct {
	BlockSizeBytes  int64
	HistoryCap      int
	SkipSystemLibs  bool
	MinRegionBytes  int64
	ResultPageLimit int
}

// DefaultOptions mirrors the defaults spec.md assumes throughout §4.3–§5.
func DefaultOptions() Options {
	return Options{
		BlockSizeBytes:  10 << 20,
		HistoryCap:      20,
		SkipSystemLibs:  true,
		MinRegionBytes:  1 << 20,
		ResultPageLimit: 1000,
	}
}

// snapshotEntry is one byte-addressed reading captured for Unknown-type
// comparison refinement.
type snapshotEntry struct {
	Addr  uint64
	Bytes []byte
}

// Session is one candidate set with its own type, query text, progress,
// history stack, freeze set and (if applicable) unknown-value snapshot.
type Session struct {
	mu sync.Mutex

	description string
	queryText   string
	valueType   valuetype.Type
	unknownType valuetype.Type // numeric width used while valueType == Unknown
	state       State

	results []scanner.Hit
	history [][]scanner.Hit
	frozen  map[uint64]valuetype.TypedValue

	unknownSnapshot []snapshotEntry

	pid    int
	handle memio.Handle

	totalBytes   atomic.Int64
	scannedBytes atomic.Int64
	resultCount  atomic.Int64

	io     memio.MemoryIO
	pool   *workerpool.Pool
	freeze *freeze.Worker
	opts   Options
}

// New creates an Idle session targeting no process (pid 0). Call
// SetTarget once the engine has attached.
func New(description string, io memio.MemoryIO, pool *workerpool.Pool, fw *freeze.Worker, opts Options) *Session {
	return &Session{
		description: description,
		valueType:   valuetype.Int,
		unknownType: valuetype.Int,
		frozen:      make(map[uint64]valuetype.TypedValue),
		io:          io,
		pool:        pool,
		freeze:      fw,
		opts:        opts,
	}
}

// Description returns the session's user-visible name.
func (s *Session) Description() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.description
}

// Rename changes the session's user-visible name.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	s.description = name
	s.mu.Unlock()
}

// SetTarget updates the process this session reads from and writes to.
// Setting pid 0 matches the engine-wide detach and releases this
// session's bookkeeping of frozen addresses (the freeze.Worker's own
// pinned map is cleared once, engine-wide, via freeze.Worker.SetPid).
func (s *Session) SetTarget(pid int, handle memio.Handle) {
	s.mu.Lock()
	s.pid = pid
	s.handle = handle
	if pid == 0 {
		s.frozen = make(map[uint64]valuetype.TypedValue)
	}
	s.mu.Unlock()
}

// State reports the current state-machine node.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetQueryText stores the raw user input used by the next scan or refine.
func (s *Session) SetQueryText(text string) {
	s.mu.Lock()
	s.queryText = text
	s.mu.Unlock()
}

// QueryText returns the raw user input set by SetQueryText.
func (s *Session) QueryText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryText
}

// ValueType returns the type the next scan or refine will search for.
func (s *Session) ValueType() valuetype.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valueType
}

// IsFrozen reports whether addr is currently pinned.
func (s *Session) IsFrozen(addr uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.frozen[addr]
	return ok
}

// SetUnknownNumericType chooses the byte width used while comparing an
// Unknown-type snapshot; spec.md leaves the exact width selection
// mechanism open, so memscan exposes it as an explicit setter
// defaulting to Int.
func (s *Session) SetUnknownNumericType(t valuetype.Type) error {
	if !t.HasFixedLen() {
		return fmt.Errorf("session: unknown-comparison width must be a fixed-width numeric type, got %s", t)
	}
	s.mu.Lock()
	s.unknownType = t
	s.mu.Unlock()
	return nil
}

// SetValueType selects the ValueType for this session, releasing all
// frozen addresses and clearing results per the "*--switch_type-->Idle"
// transition in spec.md §4.3.
func (s *Session) SetValueType(t valuetype.Type) {
	s.clearLocked(func() { s.valueType = t })
}

// Clear releases all results, history and frozen addresses and returns
// the session to Idle, per the explicit "Complete--clear-->Idle"
// transition.
func (s *Session) Clear() {
	s.clearLocked(nil)
}

func (s *Session) clearLocked(mutate func()) {
	s.mu.Lock()
	s.history = nil
	s.results = nil
	s.unknownSnapshot = nil
	s.resultCount.Store(0)
	s.totalBytes.Store(0)
	s.scannedBytes.Store(0)
	s.state = Idle
	frozenAddrs := make([]uint64, 0, len(s.frozen))
	for addr := range s.frozen {
		frozenAddrs = append(frozenAddrs, addr)
	}
	s.frozen = make(map[uint64]valuetype.TypedValue)
	if mutate != nil {
		mutate()
	}
	s.mu.Unlock()

	for _, addr := range frozenAddrs {
		s.freeze.Unfreeze(addr)
	}
}

// pushHistory pushes prior onto the undo stack, dropping the oldest
// entry once the cap is exceeded. Must be called with s.mu held.
func (s *Session) pushHistory(prior []scanner.Hit) {
	limit := s.opts.HistoryCap
	if limit <= 0 {
		limit = 20
	}
	s.history = append(s.history, prior)
	if len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}
}

// GuessCandidates parses queryText simultaneously as Int, Float and
// Double, the Guess-type fan-out from spec.md §4.3. A text that parses
// as none of the three is an error; an Int parse against a decimal
// literal truncates toward zero (spec.md §8 scenario 3: "3.14" yields an
// Int candidate of value 3) since an exact ParseInt would simply fail on
// that literal and Guess mode is defined to try every numeric reading.
func GuessCandidates(queryText string) ([]valuetype.TypedValue, error) {
	var out []valuetype.TypedValue
	if v, ok := guessIntValue(queryText); ok {
		b := make([]byte, 4)
		u := uint32(int32(v))
		b[0] = byte(u)
		b[1] = byte(u >> 8)
		b[2] = byte(u >> 16)
		b[3] = byte(u >> 24)
		out = append(out, valuetype.TypedValue{Type: valuetype.Int, Bytes: b})
	}
	if tv, err := valuetype.Encode(valuetype.Float, queryText); err == nil {
		out = append(out, tv)
	}
	if tv, err := valuetype.Encode(valuetype.Double, queryText); err == nil {
		out = append(out, tv)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("session: %q does not parse as int, float, or double", queryText)
	}
	return out, nil
}

func guessIntValue(text string) (int64, bool) {
	trimmed := strings.TrimSpace(text)
	if v, err := strconv.ParseInt(trimmed, 10, 32); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// buildNeedles resolves the session's value type and query text into the
// set of (type, bytes) pairs the initial scan must search for.
func buildNeedles(t valuetype.Type, queryText string) ([]valuetype.TypedValue, error) {
	if t == valuetype.Guess {
		return GuessCandidates(queryText)
	}
	tv, err := valuetype.Encode(t, queryText)
	if err != nil {
		return nil, fmt.Errorf("session: parse failed: %w", err)
	}
	return []valuetype.TypedValue{tv}, nil
}

type scanBlock struct {
	addr    uint64
	coreLen int
	readLen int
}

// splitBlocks divides one region into at-most-blockSize blocks, each
// extended by overlap bytes so a needle straddling a split boundary is
// never missed. Only the first coreLen bytes of each block's read are
// eligible to report a hit (see scanOneBlock) — the
// remaining overlap bytes exist solely to let a match that starts in the
// core but extends past it be found, without being double-counted by
// the next block.
func splitBlocks(start, size uint64, blockSize int64, overlap int) []scanBlock {
	if size == 0 || blockSize <= 0 {
		return nil
	}
	bs := uint64(blockSize)
	ov := uint64(overlap)
	var blocks []scanBlock
	for off := uint64(0); off < size; off += bs {
		core := bs
		if off+core > size {
			core = size - off
		}
		readLen := core + ov
		if off+readLen > size {
			readLen = size - off
		}
		blocks = append(blocks, scanBlock{
			addr:    start + off,
			coreLen: int(core),
			readLen: int(readLen),
		})
	}
	return blocks
}

func isSystemLibPath(path string) bool {
	if path == "" {
		return false
	}
	lower := strings.ToLower(path)
	for _, marker := range []string{"/usr/lib", "/lib/", "syswow64", "/system32/"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func looksLikeHeapOrStack(path string) bool {
	if path == "" {
		return true // anonymous mappings are typically heap/stack/bss
	}
	lower := strings.ToLower(path)
	return strings.Contains(lower, "[heap]") || strings.Contains(lower, "[stack]")
}

// filterRegions applies the region filter from spec.md §4.3: regions
// without write permission are always skipped (this subsumes the
// "executable-only" case, since an executable-only region is never
// writable) — the uniform rule spec.md's Open Question asks for, rather
// than the source's inconsistent per-platform asymmetry. When
// SkipSystemLibs is set, small non-heap/stack regions and regions under
// a system-library path heuristic are additionally skipped.
func filterRegions(regions []memio.Region, opts Options) []memio.Region {
	var kept []memio.Region
	for _, r := range regions {
		if !r.Writable || r.Size == 0 {
			continue
		}
		if opts.SkipSystemLibs {
			if isSystemLibPath(r.BackingPath) {
				continue
			}
			if r.Size < uint64(opts.MinRegionBytes) && !looksLikeHeapOrStack(r.BackingPath) {
				continue
			}
		}
		kept = append(kept, r)
	}
	return kept
}

var (
	ErrAlreadyScanning = fmt.Errorf("session: a scan is already in progress")
	ErrNotComplete     = fmt.Errorf("session: session is not in a refinable state")
	ErrNoHistory       = fmt.Errorf("session: no history to undo")
	ErrWrongMode       = fmt.Errorf("session: wrong value type for this operation")
)

// RegionEnumerationError wraps a failed MemoryIO.Regions call; per
// spec.md §7 this aborts the scan and leaves the candidate set
// unchanged.
type RegionEnumerationError struct{ Err error }

func (e *RegionEnumerationError) Error() string { return fmt.Sprintf("region enumeration failed: %v", e.Err) }
func (e *RegionEnumerationError) Unwrap() error  { return e.Err }

// InitialScan enumerates regions, splits them into blocks, and submits
// one job per block to the shared worker pool. It returns once the scan
// has been queued, not once it completes — the caller polls ResultsSnapshot()
// for progress, matching spec.md §5's "UI thread never blocks" rule.
func (s *Session) InitialScan() error {
	s.mu.Lock()
	if s.state == ScanningRegions {
		s.mu.Unlock()
		return ErrAlreadyScanning
	}
	if s.valueType == valuetype.Unknown {
		s.mu.Unlock()
		return fmt.Errorf("%w: use TakeSnapshot for Unknown-type sessions", ErrWrongMode)
	}
	vt := s.valueType
	queryText := s.queryText
	pid := s.pid
	handle := s.handle
	s.mu.Unlock()

	needles, err := buildNeedles(vt, queryText)
	if err != nil {
		return err
	}

	regions, err := s.io.Regions(pid)
	if err != nil {
		return &RegionEnumerationError{Err: err}
	}
	kept := filterRegions(regions, s.opts)

	maxNeedleLen := 0
	for _, nd := range needles {
		if len(nd.Bytes) > maxNeedleLen {
			maxNeedleLen = len(nd.Bytes)
		}
	}
	overlap := maxNeedleLen - 1
	if overlap < 0 {
		overlap = 0
	}

	var blocks []scanBlock
	var total int64
	for _, r := range kept {
		for _, b := range splitBlocks(r.Start, r.Size, s.opts.BlockSizeBytes, overlap) {
			blocks = append(blocks, b)
			total += int64(b.coreLen)
		}
	}

	s.mu.Lock()
	s.state = ScanningRegions
	s.totalBytes.Store(total)
	s.scannedBytes.Store(0)
	s.mu.Unlock()

	logging.Log.WithFields(logrus.Fields{
		"session": s.description, "pid": pid, "type": vt, "regions": len(kept), "bytes": total,
	}).Debug("scan started")

	stream := resultstream.New(len(blocks) + 1)
	var wg sync.WaitGroup
	for _, blk := range blocks {
		blk := blk
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			s.scanOneBlock(handle, blk, needles, stream)
		})
	}

	go func() {
		wg.Wait()
		stream.Close()
		hits := stream.Drain()
		s.mu.Lock()
		s.results = hits
		s.resultCount.Store(int64(len(hits)))
		s.state = Complete
		s.mu.Unlock()

		logging.Log.WithFields(logrus.Fields{
			"session": s.description, "hits": len(hits),
		}).Debug("scan complete")
	}()

	return nil
}

// scanOneBlock reads one block and runs every needle's scan over it,
// keeping only hits whose local offset falls within the block's
// non-overlapping core (see splitBlocks). A failed read — including a
// freed or protected region — contributes zero hits, never aborts the
// whole scan, per spec.md §7.
func (s *Session) scanOneBlock(h memio.Handle, blk scanBlock, needles []valuetype.TypedValue, stream *resultstream.Stream) {
	defer s.scannedBytes.Add(int64(blk.coreLen))

	buf, err := s.io.Read(h, blk.addr, blk.readLen)
	if err != nil {
		return
	}

	var batch []scanner.Hit
	for _, nd := range needles {
		for _, hit := range scanner.Scan(buf, nd.Bytes, nd.Type, blk.addr) {
			if int(hit.Addr-blk.addr) < blk.coreLen {
				batch = append(batch, hit)
			}
		}
	}
	stream.Send(batch)
}

// Refine re-reads every hit in the current candidate set at its own
// recorded type's width and keeps only those whose bytes still equal
// the query text parsed under that same type — so a Guess-mode
// candidate set narrows independently per type tag, matching spec.md §8
// scenario 4.
func (s *Session) Refine() error {
	s.mu.Lock()
	if s.state != Complete {
		s.mu.Unlock()
		return ErrNotComplete
	}
	if s.valueType == valuetype.Unknown {
		s.mu.Unlock()
		return fmt.Errorf("%w: use RefineUnknown for Unknown-type sessions", ErrWrongMode)
	}
	queryText := s.queryText
	prior := s.results
	handle := s.handle
	s.state = Refining
	s.mu.Unlock()

	parsed := make(map[valuetype.Type]valuetype.TypedValue)
	var kept []scanner.Hit
	overrides := make(map[uint64]valuetype.TypedValue)
	for _, hit := range prior {
		tv, ok := parsed[hit.Type]
		if !ok {
			var err error
			tv, err = valuetype.Encode(hit.Type, queryText)
			if err != nil {
				parsed[hit.Type] = valuetype.TypedValue{} // remember the failure, skip future lookups
				continue
			}
			parsed[hit.Type] = tv
		}
		if len(tv.Bytes) == 0 {
			continue
		}
		buf, err := s.io.Read(handle, hit.Addr, len(tv.Bytes))
		if err != nil {
			continue
		}
		if bytes.Equal(buf, tv.Bytes) {
			kept = append(kept, hit)
			overrides[hit.Addr] = tv
		}
	}

	s.mu.Lock()
	s.pushHistory(prior)
	s.results = kept
	s.resultCount.Store(int64(len(kept)))
	s.state = Complete
	s.mu.Unlock()

	s.syncFrozen(kept, overrides)
	return nil
}

// TakeSnapshot captures every byte-addressed reading across the kept
// regions at the session's unknown-comparison width, the starting point
// for Unknown-type refinement (spec.md §4.3).
func (s *Session) TakeSnapshot() error {
	s.mu.Lock()
	if s.valueType != valuetype.Unknown {
		s.mu.Unlock()
		return fmt.Errorf("%w: TakeSnapshot requires value type Unknown", ErrWrongMode)
	}
	pid := s.pid
	handle := s.handle
	width := s.unknownType.FixedLen()
	s.mu.Unlock()

	regions, err := s.io.Regions(pid)
	if err != nil {
		return &RegionEnumerationError{Err: err}
	}
	kept := filterRegions(regions, s.opts)

	var snapshot []snapshotEntry
	var total int64
	for _, r := range kept {
		buf, err := s.io.Read(handle, r.Start, int(r.Size))
		if err != nil {
			continue
		}
		for off := 0; off+width <= len(buf); off++ {
			entry := snapshotEntry{Addr: r.Start + uint64(off), Bytes: append([]byte(nil), buf[off:off+width]...)}
			snapshot = append(snapshot, entry)
		}
		total += int64(r.Size)
	}

	s.mu.Lock()
	s.history = nil
	s.unknownSnapshot = snapshot
	s.results = nil
	s.resultCount.Store(0)
	s.totalBytes.Store(total)
	s.scannedBytes.Store(total)
	s.state = Complete
	s.mu.Unlock()
	return nil
}

// RefineUnknown compares the last snapshot against fresh readings under
// op, replacing the snapshot with the new readings so successive
// comparisons chain (spec.md §4.3's "after comparison, replace the
// snapshot with the new readings").
func (s *Session) RefineUnknown(op CompareOp) error {
	s.mu.Lock()
	if s.valueType != valuetype.Unknown || s.state != Complete || s.unknownSnapshot == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no unknown-value snapshot to compare", ErrNotComplete)
	}
	entries := s.unknownSnapshot
	prior := s.results
	numericType := s.unknownType
	width := numericType.FixedLen()
	handle := s.handle
	s.state = Refining
	s.mu.Unlock()

	var newEntries []snapshotEntry
	var kept []scanner.Hit
	overrides := make(map[uint64]valuetype.TypedValue)
	for _, e := range entries {
		newBytes, err := s.io.Read(handle, e.Addr, width)
		if err != nil {
			continue
		}
		oldV, errA := valuetype.AsFloat64(numericType, e.Bytes)
		newV, errB := valuetype.AsFloat64(numericType, newBytes)
		if errA != nil || errB != nil {
			continue
		}
		if satisfies(op, numericType, oldV, newV) {
			kept = append(kept, scanner.Hit{Addr: e.Addr, Type: numericType})
			newEntries = append(newEntries, snapshotEntry{Addr: e.Addr, Bytes: newBytes})
			overrides[e.Addr] = valuetype.TypedValue{Type: numericType, Bytes: newBytes}
		}
	}

	s.mu.Lock()
	s.pushHistory(prior)
	s.unknownSnapshot = newEntries
	s.results = kept
	s.resultCount.Store(int64(len(kept)))
	s.state = Complete
	s.mu.Unlock()

	s.syncFrozen(kept, overrides)
	return nil
}

// satisfies implements the epsilon law of spec.md §4.3/§8: integer types
// use exact equality, Float/Double use valuetype.Epsilon's tolerance
// band with a strict boundary (Changed is "> epsilon", Unchanged is
// "<= epsilon" — the two are exhaustive and non-overlapping).
func satisfies(op CompareOp, t valuetype.Type, oldV, newV float64) bool {
	switch op {
	case Increased:
		return newV > oldV
	case Decreased:
		return newV < oldV
	case Changed:
		if valuetype.IsInteger(t) {
			return newV != oldV
		}
		return math.Abs(newV-oldV) > valuetype.Epsilon(t, oldV)
	case Unchanged:
		if valuetype.IsInteger(t) {
			return newV == oldV
		}
		return math.Abs(newV-oldV) <= valuetype.Epsilon(t, oldV)
	default:
		return false
	}
}

// Undo pops the top of the history stack and installs it as the current
// candidate set.
func (s *Session) Undo() error {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return ErrNoHistory
	}
	top := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.results = top
	s.resultCount.Store(int64(len(top)))
	s.state = Complete
	s.mu.Unlock()

	s.syncFrozen(top, nil)
	return nil
}

// syncFrozen releases any frozen address no longer present in
// newResults (preserving the "every frozen address appears in results"
// invariant) and re-arms the survivors in the freeze worker, optionally
// with a fresh pinned value from overrides.
func (s *Session) syncFrozen(newResults []scanner.Hit, overrides map[uint64]valuetype.TypedValue) {
	present := make(map[uint64]bool, len(newResults))
	for _, h := range newResults {
		present[h.Addr] = true
	}

	s.mu.Lock()
	var toUnfreeze []uint64
	for addr := range s.frozen {
		if !present[addr] {
			toUnfreeze = append(toUnfreeze, addr)
			delete(s.frozen, addr)
			continue
		}
		if overrides != nil {
			if tv, ok := overrides[addr]; ok {
				s.frozen[addr] = tv
			}
		}
	}
	toRearm := make(map[uint64]valuetype.TypedValue, len(s.frozen))
	for addr, tv := range s.frozen {
		toRearm[addr] = tv
	}
	s.mu.Unlock()

	for _, addr := range toUnfreeze {
		s.freeze.Unfreeze(addr)
	}
	for addr, tv := range toRearm {
		s.freeze.Freeze(addr, tv)
	}
}

func (s *Session) hitType(addr uint64) (valuetype.Type, bool) {
	for _, h := range s.results {
		if h.Addr == addr {
			return h.Type, true
		}
	}
	return 0, false
}

// SetFrozen pins or releases addr. Freezing reads addr's current bytes
// (at its recorded hit type's width) and hands that value to the shared
// freeze.Worker; addr must currently be part of the candidate set.
func (s *Session) SetFrozen(addr uint64, on bool) error {
	if !on {
		s.mu.Lock()
		delete(s.frozen, addr)
		s.mu.Unlock()
		s.freeze.Unfreeze(addr)
		return nil
	}

	s.mu.Lock()
	hitType, ok := s.hitType(addr)
	handle := s.handle
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: address %#x is not in the candidate set", addr)
	}
	if !hitType.HasFixedLen() {
		return fmt.Errorf("session: freezing a variable-length %s hit is not supported", hitType)
	}

	buf, err := s.io.Read(handle, addr, hitType.FixedLen())
	if err != nil {
		return err
	}
	tv := valuetype.TypedValue{Type: hitType, Bytes: buf}

	s.mu.Lock()
	s.frozen[addr] = tv
	s.mu.Unlock()
	s.freeze.Freeze(addr, tv)
	return nil
}

// Overwrite writes a one-shot value to addr, parsed under its recorded
// hit type. If addr is currently frozen, the pinned value is updated too
// so the next freeze tick doesn't clobber the overwrite.
func (s *Session) Overwrite(addr uint64, text string) error {
	s.mu.Lock()
	hitType, ok := s.hitType(addr)
	handle := s.handle
	_, frozen := s.frozen[addr]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: address %#x is not in the candidate set", addr)
	}
	if !hitType.HasFixedLen() && hitType != valuetype.String && hitType != valuetype.StringUtf16 {
		return fmt.Errorf("session: address %#x has an unsupported type %s", addr, hitType)
	}

	tv, err := valuetype.Encode(hitType, text)
	if err != nil {
		return err
	}
	if err := s.io.Write(handle, addr, tv.Bytes); err != nil {
		return err
	}
	if frozen {
		s.mu.Lock()
		s.frozen[addr] = tv
		s.mu.Unlock()
		s.freeze.Freeze(addr, tv)
	}
	return nil
}

// Snapshot is the point-in-time read Engine.ResultsSnapshot hands to the
// UI: progress counters, total count, and a capped page of hits.
type Snapshot struct {
	State        State
	ScannedBytes int64
	TotalBytes   int64
	ResultCount  int64
	Hits         []scanner.Hit
}

// ResultsSnapshot returns the session's current progress and a capped,
// address-sorted page of its candidate set (spec.md §5's "display-only
// cap of ~1000 rendered rows").
func (s *Session) ResultsSnapshot() Snapshot {
	s.mu.Lock()
	state := s.state
	results := s.results
	s.mu.Unlock()

	limit := s.opts.ResultPageLimit
	if limit <= 0 {
		limit = 1000
	}
	page := append([]scanner.Hit(nil), results...)
	sort.Slice(page, func(i, j int) bool { return page[i].Addr < page[j].Addr })
	if len(page) > limit {
		page = page[:limit]
	}

	return Snapshot{
		State:        state,
		ScannedBytes: s.scannedBytes.Load(),
		TotalBytes:   s.totalBytes.Load(),
		ResultCount:  s.resultCount.Load(),
		Hits:         page,
	}
}
