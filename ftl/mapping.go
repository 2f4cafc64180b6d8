package ftl

import (
	"github.com/stefanklug/SPIFlash/header"
)

// mapping holds the two tables described in spec.md §3/§4.2: blockMap
// (M, virtual block id -> physical block entry) and headerCache (H,
// physical block id -> the header word last read from that page).
// Both tables are mutually inverse for every live entry: if
// blockMap[v] names physical page p with the live bit set, then
// headerCache[p] names virtual block v with the live bit set.
//
// Entries reuse header.Header for both tables, exactly as the 16-bit
// header word itself is reused as a generic "pointer + live/free flag"
// value, the way segs/segment.go and extents/extent.go share one
// bitmap-backed accessor shape for otherwise unrelated allocation
// tables.
type mapping struct {
	blockMap    []header.Header
	headerCache []header.Header
}

// newMapping allocates tables sized for n physical/virtual blocks, with
// every entry marked erased (free).
func newMapping(n int) *mapping {
	m := &mapping{
		blockMap:    make([]header.Header, n),
		headerCache: make([]header.Header, n),
	}
	for i := range m.blockMap {
		m.blockMap[i] = header.Erased
		m.headerCache[i] = header.Erased
	}
	return m
}

func (m *mapping) size() int { return len(m.blockMap) }

// blockOf returns M[v]: the physical block entry currently mapped to
// virtual block v.
func (m *mapping) blockOf(v uint16) header.Header {
	return m.blockMap[v]
}

// setBlockOf sets M[v].
func (m *mapping) setBlockOf(v uint16, h header.Header) {
	m.blockMap[v] = h
}

// physicalHeader returns H[p]: the header entry cached for physical
// block p.
func (m *mapping) physicalHeader(p uint16) header.Header {
	return m.headerCache[p]
}

// setPhysicalHeader sets H[p].
func (m *mapping) setPhysicalHeader(p uint16, h header.Header) {
	m.headerCache[p] = h
}

// scanFreeFrom looks for the first free (IsFree) physical block at or
// after start, without wrapping. It is used by the hole-filling pass in
// Initialize, which relies on a persistent, non-resetting cursor to stay
// O(N) (see spec.md §9, known source issue #5).
func (m *mapping) scanFreeFrom(start int) (uint16, bool) {
	for p := start; p < len(m.headerCache); p++ {
		if m.headerCache[p].IsFree() {
			return uint16(p), true
		}
	}
	return 0, false
}

// scanFreeWrap looks for the first free physical block strictly after
// from, wrapping around to 0 and scanning up to and including from. It
// is used by Flush's remap step, which rotates the destination block
// forward through the whole pool (spec.md §4.7) to spread wear evenly.
func (m *mapping) scanFreeWrap(from uint16) (uint16, bool) {
	n := len(m.headerCache)
	for i := 1; i <= n; i++ {
		p := (int(from) + i) % n
		if m.headerCache[p].IsFree() {
			return uint16(p), true
		}
	}
	return 0, false
}
