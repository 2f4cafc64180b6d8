package ftl

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/stefanklug/SPIFlash/addr"
)

// Sentinel errors, one per kind in spec.md §7.
var (
	// ErrCorrupt is raised from Initialize when an on-flash header
	// references a block id outside the configured range.
	ErrCorrupt = errors.New("on-flash header references a block id outside the configured range")

	// ErrNoFreeBlocks means the spare-block invariant has been
	// violated: either N was sized without a spare, or the mapping
	// tables have a logic error.
	ErrNoFreeBlocks = errors.New("no free physical block available")

	// ErrAddressOutOfRange means a read/write addressed beyond Size().
	ErrAddressOutOfRange = errors.New("address is beyond the exposed virtual address space")

	// ErrIo classifies any failure reported by the underlying device.
	ErrIo = errors.New("underlying flash device reported a failure")
)

// ErrAddressNotInPayload is returned by PhysicalToVirtual
// when a physical address falls inside a page's header bytes. It is the
// same sentinel addr.SplitPhysical returns, re-exported here since it is
// part of the engine's public contract (spec.md §4.9).
var ErrAddressNotInPayload = addr.ErrNotInPayload

// OpError names the operation that failed and classifies it as one of
// the sentinels above, following buffer_pool.BufferPoolError's
// Op/Err/Unwrap shape.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ftl.ErrIo) (etc.) succeed without walking into
// the wrapped detail, which may come from an arbitrary device error type.
func (e *OpError) Is(target error) bool { return e.Kind == target }

func opErr(op string, kind error) error {
	return &OpError{Op: op, Kind: kind, Err: kind}
}

func wrapIo(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Kind: ErrIo, Err: pkgerrors.Wrap(err, op)}
}

// IsCorrupt reports whether err classifies as ErrCorrupt.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorrupt) }

// IsNoFreeBlocks reports whether err classifies as ErrNoFreeBlocks.
func IsNoFreeBlocks(err error) bool { return errors.Is(err, ErrNoFreeBlocks) }

// IsAddressOutOfRange reports whether err classifies as ErrAddressOutOfRange.
func IsAddressOutOfRange(err error) bool { return errors.Is(err, ErrAddressOutOfRange) }

// IsIo reports whether err classifies as ErrIo.
func IsIo(err error) bool { return errors.Is(err, ErrIo) }

// IsAddressNotInPayload reports whether err classifies as ErrAddressNotInPayload.
func IsAddressNotInPayload(err error) bool { return errors.Is(err, ErrAddressNotInPayload) }
