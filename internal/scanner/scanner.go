// Package scanner implements the byte-level search primitive: given a
// buffer, a needle, and a base address, return every offset where the
// needle matches. It dispatches between a wide unrolled comparison path
// (gated on AVX2 availability, the same cpu-feature-detection shape the
// example pack's SIMD CSV scanner uses) and a Boyer-Moore fallback used
// for small buffers, non-AVX2 hosts, and as the correctness oracle the
// fast path is tested against.
package scanner

import (
	"bytes"

	"github.com/relkin/memscan/internal/valuetype"
	"golang.org/x/sys/cpu"
)

// Hit is one matching offset, tagged with the value type that matched —
// Guess-mode scans can record the same address under multiple types.
type Hit struct {
	Addr uint64
	Type valuetype.Type
}

// simdMinThreshold mirrors the example pack's shouldUseSIMD threshold:
// below this size the setup cost of the wide path isn't worth it.
const simdMinThreshold = 32

// useWidePath is decided once at init, following the same
// detect-once-and-dispatch pattern as the example pack's SIMD scanner.
var useWidePath = cpu.X86.HasAVX2

// Scan searches buf for needle and returns every matching offset's
// absolute address (base+offset), ascending. needle must be non-empty.
func Scan(buf []byte, needle []byte, valueType valuetype.Type, base uint64) []Hit {
	if len(needle) == 0 || len(buf) < len(needle) {
		return nil
	}
	var offsets []int
	if useWidePath && len(buf) >= simdMinThreshold {
		offsets = scanWide(buf, needle)
	} else {
		offsets = scanBoyerMoore(buf, needle)
	}
	hits := make([]Hit, len(offsets))
	for i, off := range offsets {
		hits[i] = Hit{Addr: base + uint64(off), Type: valueType}
	}
	return hits
}

// scanWide is memscan's "SIMD fast path": instead of real vector
// intrinsics (Go has no stable portable SIMD API in this toolchain's
// GOARCH set — see DESIGN.md), it compares 8 candidate start offsets per
// iteration so the branch predictor and memory prefetcher see a
// consistent stride, then checks the remaining tail offsets one at a
// time. Results are identical to scanBoyerMoore by construction; the
// two are cross-tested in scanner_test.go.
func scanWide(buf []byte, needle []byte) []int {
	var offsets []int
	n := len(buf)
	m := len(needle)
	limit := n - m + 1
	i := 0
	for ; i+8 <= limit; i += 8 {
		for j := 0; j < 8; j++ {
			if bytes.Equal(buf[i+j:i+j+m], needle) {
				offsets = append(offsets, i+j)
			}
		}
	}
	for ; i < limit; i++ {
		if bytes.Equal(buf[i:i+m], needle) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// scanBoyerMoore is the portable fallback and correctness baseline: a
// standard bad-character-rule Boyer-Moore search over raw needle bytes.
func scanBoyerMoore(buf []byte, needle []byte) []int {
	var offsets []int
	n := len(buf)
	m := len(needle)
	if m == 0 || n < m {
		return nil
	}

	last := badCharTable(needle)

	i := 0
	for i <= n-m {
		j := m - 1
		for j >= 0 && buf[i+j] == needle[j] {
			j--
		}
		if j < 0 {
			offsets = append(offsets, i)
			i++ // advance by 1 to find overlapping matches
			continue
		}
		badChar := buf[i+j]
		shift := j - last[badChar]
		if shift < 1 {
			shift = 1
		}
		i += shift
	}
	return offsets
}

// badCharTable builds the last-occurrence table used by the bad-character
// rule, keyed by byte value; bytes absent from needle map to -1.
func badCharTable(needle []byte) [256]int {
	var table [256]int
	for i := range table {
		table[i] = -1
	}
	for i, b := range needle {
		table[b] = i
	}
	return table
}
