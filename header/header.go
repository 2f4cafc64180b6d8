// Package header encodes the two-byte word that prefixes every physical
// page: which virtual block it belongs to, whether it is the
// authoritative (live) copy, and the all-ones erased sentinel.
package header

// liveBit is bit 15. Set to 1, the page is the authoritative copy of its
// virtual block. A flash write can only clear it (1->0), never set it,
// which is why superseding a page is always a legal single-byte update.
const liveBit = uint16(1 << 15)

// reservedBit is bit 14. It is never cleared; a conforming rewrite may
// repurpose it as a monotonic sequence number for torn-flush recovery,
// but this implementation keeps it fixed at 1 (see DESIGN.md).
const reservedBit = uint16(1 << 14)

// blockIDMask covers bits 0-13, the virtual block id.
const blockIDMask = uint16(0x3fff)

// Erased is the header word of a page that has never been written since
// its last erase.
const Erased = Header(0xffff)

// Header is the 16-bit word stored little-endian at the start of every
// physical page.
type Header uint16

// New builds a header for virtual block id v, with the reserved bit set
// and the live bit as requested.
func New(v uint16, live bool) Header {
	h := Header(v&blockIDMask) | Header(reservedBit)
	if live {
		h |= Header(liveBit)
	}
	return h
}

// BlockID returns the virtual block id encoded in bits 0-13.
func (h Header) BlockID() uint16 {
	return uint16(h) & blockIDMask
}

// IsDeleted reports whether the live bit is clear, i.e. the page has
// been superseded and is awaiting erase.
func (h Header) IsDeleted() bool {
	return uint16(h)&liveBit == 0
}

// Live reports whether this header's live bit is set.
func (h Header) Live() bool {
	return !h.IsDeleted()
}

// IsFree reports whether the page holding this header can be reused: it
// has never been written (Erased) or it has been superseded.
func (h Header) IsFree() bool {
	return h == Erased || h.IsDeleted()
}

// WithLive returns h with the live bit set.
func (h Header) WithLive() Header {
	return h | Header(liveBit)
}

// WithoutLive returns h with the live bit cleared. This is always a
// legal flash write (1->0 only).
func (h Header) WithoutLive() Header {
	return h &^ Header(liveBit)
}

// Bytes returns the little-endian two-byte encoding of h.
func (h Header) Bytes() [2]byte {
	return [2]byte{byte(h), byte(h >> 8)}
}

// Decode parses a little-endian two-byte header word.
func Decode(b []byte) Header {
	return Header(uint16(b[0]) | uint16(b[1])<<8)
}
