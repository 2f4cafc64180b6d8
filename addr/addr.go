// Package addr implements the pure address-arithmetic layer that splits
// virtual and physical byte addresses into (block, offset) pairs and back.
// It is the only place that knows about the two-byte per-page header
// reserved in physical space.
package addr

import "github.com/pkg/errors"

// VirtualBlockSize is the payload size of one virtual block: a physical
// page (PhysicalBlockSize) minus its two-byte header.
const VirtualBlockSize = 4094

// PhysicalBlockSize is the size of one physical flash page.
const PhysicalBlockSize = 4096

// HeaderSize is the number of bytes reserved for the header at the start
// of every physical page.
const HeaderSize = 2

// ErrNotInPayload is returned by SplitPhysical when an address falls
// inside a page's header bytes rather than its payload.
var ErrNotInPayload = errors.New("address is not in the mapped payload area")

// Info is a block index paired with a byte offset into that block.
type Info struct {
	Block  uint16
	Offset uint16
}

// SplitVirtual decomposes a virtual byte address into its block and
// the offset within that block's 4094-byte payload.
func SplitVirtual(address int64) Info {
	block := address / VirtualBlockSize
	return Info{
		Block:  uint16(block),
		Offset: uint16(address - block*VirtualBlockSize),
	}
}

// CombineVirtual is the inverse of SplitVirtual.
func CombineVirtual(i Info) int64 {
	return int64(i.Block)*VirtualBlockSize + int64(i.Offset)
}

// SplitPhysical decomposes a physical byte address into its page and the
// offset within that page's payload (i.e. past the two header bytes).
// It fails with ErrNotInPayload if the address falls inside the header.
func SplitPhysical(address int64) (Info, error) {
	block := address / PhysicalBlockSize
	rem := address - block*PhysicalBlockSize
	if rem < HeaderSize {
		return Info{}, errors.Wrapf(ErrNotInPayload, "address %#x", address)
	}
	return Info{
		Block:  uint16(block),
		Offset: uint16(rem - HeaderSize),
	}, nil
}

// CombinePhysical is the inverse of SplitPhysical: it reintroduces the
// header offset.
func CombinePhysical(i Info) int64 {
	return int64(i.Block)*PhysicalBlockSize + int64(i.Offset) + HeaderSize
}
