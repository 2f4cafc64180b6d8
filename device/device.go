// Package device defines the boundary between the wear-leveling engine
// and the underlying NOR-flash part. The engine treats everything in
// this package as an external collaborator: blocking, synchronous, and
// obeying the hardware's AND-only write semantics (writes may only
// clear bits; only an erase may set them back to 1).
package device

// PageSize is the size in bytes of one erasable physical page.
const PageSize = 4096

// Device is the byte-level contract a flash part (or a stand-in for
// one) must satisfy. All methods are blocking; Busy lets a caller poll
// completion of an asynchronous erase the way real NOR parts require.
type Device interface {
	// Read fills buf from addr. len(buf) bytes are read.
	Read(addr int64, buf []byte) error

	// Write AND-merges buf into storage starting at addr: a bit can
	// only go from 1 to 0. Writing 1 where storage already holds 0
	// leaves it 0.
	Write(addr int64, buf []byte) error

	// ErasePage resets the PageSize bytes at the page containing addr
	// to 0xFF. addr must be page-aligned.
	ErasePage(addr int64) error

	// ChipErase resets every page to 0xFF. It may return before the
	// operation completes; callers must poll Busy.
	ChipErase() error

	// Busy reports whether an erase issued by ErasePage/ChipErase is
	// still in progress.
	Busy() bool
}
