package ftl

import (
	"github.com/stefanklug/SPIFlash/addr"
	"github.com/stefanklug/SPIFlash/header"
)

// active is the single physical-page-sized RAM buffer described in
// spec.md §4.3. Every write lands here first; it is only pushed back
// to the device when a different virtual block needs the buffer, or
// when the caller asks for Flush explicitly. Modeled after
// buffer_pool's single cached page concept, stripped down from a whole
// LRU pool to the one slot this engine needs.
type active struct {
	buf   [addr.PhysicalBlockSize]byte
	dirty bool
}

// newActive returns an active buffer in the erased state, matching a
// freshly power-cycled part that has not yet activated any block.
func newActive() *active {
	a := &active{}
	a.reset()
	return a
}

func (a *active) reset() {
	for i := range a.buf {
		a.buf[i] = 0xff
	}
	a.dirty = false
}

// header returns the header word currently held in the buffer's first
// two bytes.
func (a *active) header() header.Header {
	return header.Decode(a.buf[0:2])
}

// setHeader overwrites the buffer's header bytes in place.
func (a *active) setHeader(h header.Header) {
	b := h.Bytes()
	a.buf[0] = b[0]
	a.buf[1] = b[1]
}

// payload returns the full 4094-byte payload slice, backed by the
// buffer (no copy).
func (a *active) payload() []byte {
	return a.buf[addr.HeaderSize:]
}

// holds reports whether the buffer is currently activated for virtual
// block v, i.e. loaded and not yet superseded by a different block's
// activation.
func (a *active) holds(v uint16) bool {
	return a.header().BlockID() == v
}
