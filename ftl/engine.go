// Package ftl implements the wear-leveling flash translation layer:
// a flat virtual byte address space backed by a pool of physical NOR
// pages, each one page larger than it needs to be by a single reserved
// header word. It is a direct generalization of buffer_pool.BufferPool's
// page-cache-over-storage shape, with the LRU multi-page cache replaced
// by the single active-block buffer the underlying hardware actually
// needs (spec.md §4.3), and the free list replaced by the header-word
// liveness scan described in spec.md §4.7.
package ftl

import (
	"time"

	"github.com/stefanklug/SPIFlash/addr"
	"github.com/stefanklug/SPIFlash/device"
	"github.com/stefanklug/SPIFlash/header"
	"github.com/stefanklug/SPIFlash/internal/ftllog"
)

// defaultBusyPollInterval is used when the caller has not set one via
// SetBusyPollInterval, matching internal/ftlconf's "1ms" default.
const defaultBusyPollInterval = time.Millisecond

// Engine is the flash translation layer itself. It is not safe for
// concurrent use from multiple goroutines without external
// synchronization, mirroring BufferPool's own single-writer assumption;
// callers that need concurrent access should serialize at a higher
// layer (see DESIGN.md).
type Engine struct {
	dev device.Device
	n   int

	m      *mapping
	active *active

	busyPollInterval time.Duration
}

// NewEngine builds an Engine over dev with blockCount physical pages.
// The engine is not usable until Initialize or Format is called.
func NewEngine(dev device.Device, blockCount int) *Engine {
	return &Engine{
		dev:              dev,
		n:                blockCount,
		m:                newMapping(blockCount),
		active:           newActive(),
		busyPollInterval: defaultBusyPollInterval,
	}
}

// SetBusyPollInterval overrides how often Format polls the device's
// Busy predicate after ChipErase, e.g. from internal/ftlconf's
// DeviceConfig.BusyPollIntervalDuration.
func (e *Engine) SetBusyPollInterval(d time.Duration) {
	e.busyPollInterval = d
}

// Size returns the number of bytes addressable through Read/Write: one
// virtual block's worth of payload is reserved as the engine's
// always-available spare, so N physical pages expose (N-1) virtual
// blocks (spec.md's Open Question on virtual space size, resolved in
// DESIGN.md).
func (e *Engine) Size() int64 {
	return int64(e.n-1) * addr.VirtualBlockSize
}

// Format erases every physical page and rebuilds both mapping tables
// with every virtual block assigned to an erased, not-yet-written page,
// discarding any existing content. It is the Go
// analogue of FlashWearLevelerBase::format: chip-erase, poll Busy
// until the erase completes, then Initialize (spec.md §4.8).
func (e *Engine) Format() error {
	if err := e.dev.ChipErase(); err != nil {
		return wrapIo("format: chip erase", err)
	}
	for e.dev.Busy() {
		time.Sleep(e.busyPollInterval)
	}
	return e.Initialize()
}

// Initialize reads every physical page's header and rebuilds the
// mapping tables from scratch: first recording every live (authoritative)
// header into blockMap, then filling the remaining holes (virtual
// blocks with no live copy, typically because they have never been
// written) with arbitrarily chosen free physical pages. The hole-filling
// pass uses a cursor that persists across virtual ids instead of
// restarting from 0 each time, which is what keeps this pass O(N)
// (see spec.md §9, source issue #5; the original's per-iteration reset
// made it O(N^2)).
func (e *Engine) Initialize() error {
	e.active.reset()
	e.m = newMapping(e.n)

	buf := make([]byte, addr.HeaderSize)
	for p := 0; p < e.n; p++ {
		if err := e.dev.Read(int64(p)*addr.PhysicalBlockSize, buf); err != nil {
			return wrapIo("initialize: read header", err)
		}
		h := header.Decode(buf)
		e.m.setPhysicalHeader(uint16(p), h)

		if h == header.Erased {
			continue
		}
		if int(h.BlockID()) >= e.n {
			return opErr("initialize", ErrCorrupt)
		}
		if h.IsDeleted() {
			ftllog.Debugf("ftl: page %d holds a superseded header for block %d, leaving for hole-filling", p, h.BlockID())
			continue
		}
		// Live: whichever page is encountered last in this ascending
		// physical scan wins if more than one page claims the same
		// virtual block (a torn flush). See DESIGN.md's Open Question
		// decision: this matches the original source's unconditional
		// overwrite rather than stopping at the first match.
		e.m.setBlockOf(h.BlockID(), header.New(uint16(p), true))
	}

	cursor := 0
	for v := 0; v < e.n; v++ {
		if e.m.blockOf(uint16(v)) != header.Erased {
			continue
		}
		p, ok := e.m.scanFreeFrom(cursor)
		if !ok {
			return opErr("initialize", ErrNoFreeBlocks)
		}
		e.m.setBlockOf(uint16(v), header.New(p, false))
		e.m.setPhysicalHeader(p, header.New(uint16(v), false))
		cursor = int(p) + 1
	}
	return nil
}

// FlushNeeded reports whether the active buffer holds writes that have
// not yet been committed to the device.
func (e *Engine) FlushNeeded() bool {
	return e.active.dirty
}

// VirtualToPhysical translates a virtual byte address to the physical
// byte address currently backing it.
func (e *Engine) VirtualToPhysical(vAddr int64) (int64, error) {
	if vAddr < 0 || vAddr >= e.Size() {
		return 0, opErr("virtual_to_physical", ErrAddressOutOfRange)
	}
	info := addr.SplitVirtual(vAddr)
	p := e.m.blockOf(info.Block).BlockID()
	return addr.CombinePhysical(addr.Info{Block: p, Offset: info.Offset}), nil
}

// PhysicalToVirtual translates a physical byte address back to its
// virtual byte address, per the header cache's current understanding
// of which virtual block that page holds.
func (e *Engine) PhysicalToVirtual(pAddr int64) (int64, error) {
	info, err := addr.SplitPhysical(pAddr)
	if err != nil {
		return 0, opErr("physical_to_virtual", ErrAddressNotInPayload)
	}
	if int(info.Block) >= e.n {
		return 0, opErr("physical_to_virtual", ErrAddressOutOfRange)
	}
	v := e.m.physicalHeader(info.Block).BlockID()
	return addr.CombineVirtual(addr.Info{Block: v, Offset: info.Offset}), nil
}

// ReadByte reads a single payload byte at virtual address vAddr.
func (e *Engine) ReadByte(vAddr int64) (byte, error) {
	var b [1]byte
	if err := e.Read(vAddr, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Read fills buf from the virtual address space starting at vAddr,
// transparently crossing virtual block boundaries and resolving each
// segment against either the active buffer or the device (spec.md
// §4.5).
func (e *Engine) Read(vAddr int64, buf []byte) error {
	if vAddr < 0 || vAddr+int64(len(buf)) > e.Size() {
		return opErr("read", ErrAddressOutOfRange)
	}

	start := addr.SplitVirtual(vAddr)
	end := addr.SplitVirtual(vAddr + int64(len(buf)))
	out := buf

	for start.Block != end.Block || start.Offset != end.Offset {
		var n uint16
		if end.Block > start.Block {
			n = addr.VirtualBlockSize - start.Offset
		} else {
			n = end.Offset - start.Offset
		}

		if err := e.readFromVBlock(start, out[:n]); err != nil {
			return err
		}
		out = out[n:]

		if end.Block > start.Block {
			start.Block++
			start.Offset = 0
		} else {
			start.Offset = end.Offset
		}
	}
	return nil
}

func (e *Engine) readFromVBlock(at addr.Info, buf []byte) error {
	if e.active.holds(at.Block) {
		copy(buf, e.active.payload()[at.Offset:])
		return nil
	}
	p := e.m.blockOf(at.Block).BlockID()
	pAddr := addr.CombinePhysical(addr.Info{Block: p, Offset: at.Offset})
	if err := e.dev.Read(pAddr, buf); err != nil {
		return wrapIo("read", err)
	}
	return nil
}

// WriteByte writes a single payload byte at virtual address vAddr.
func (e *Engine) WriteByte(vAddr int64, b byte) error {
	return e.Write(vAddr, []byte{b})
}

// Write copies buf into the virtual address space starting at vAddr,
// transparently crossing virtual block boundaries. Each touched block
// is activated (loaded into the active buffer, flushing whatever it
// previously held) before being overwritten in RAM; callers must call
// Flush to commit (spec.md §4.6). The AND-only constraint is a
// property of the physical device, not of this RAM buffer: the active
// buffer is plain read/write memory, so bytes are assigned here, not
// merged (spec.md §4.6 "copy caller bytes into A[offset+2..]").
func (e *Engine) Write(vAddr int64, buf []byte) error {
	if vAddr < 0 || vAddr+int64(len(buf)) > e.Size() {
		return opErr("write", ErrAddressOutOfRange)
	}

	start := addr.SplitVirtual(vAddr)
	end := addr.SplitVirtual(vAddr + int64(len(buf)))
	in := buf

	for start.Block != end.Block || start.Offset != end.Offset {
		var n uint16
		if end.Block > start.Block {
			n = addr.VirtualBlockSize - start.Offset
		} else {
			n = end.Offset - start.Offset
		}

		if err := e.activate(start.Block); err != nil {
			return err
		}
		copy(e.active.payload()[start.Offset:start.Offset+n], in[:n])
		e.active.dirty = true
		in = in[n:]

		if end.Block > start.Block {
			start.Block++
			start.Offset = 0
		} else {
			start.Offset = end.Offset
		}
	}
	return nil
}

// activate ensures the active buffer holds virtual block v, flushing
// whatever it previously held first if it held anything else.
func (e *Engine) activate(v uint16) error {
	if e.active.holds(v) {
		return nil
	}
	if err := e.Flush(); err != nil {
		return err
	}

	p := e.m.blockOf(v).BlockID()
	buf := make([]byte, addr.PhysicalBlockSize)
	if err := e.dev.Read(int64(p)*addr.PhysicalBlockSize, buf); err != nil {
		return wrapIo("activate", err)
	}
	copy(e.active.buf[:], buf)
	// The buffer now represents v authoritatively regardless of the
	// live bit it was loaded with: an assigned-but-never-written block
	// reads back as erased payload bytes, which is the correct content
	// for a block that has not been written yet.
	e.active.setHeader(header.New(v, true))
	return nil
}

// Flush commits the active buffer to the device if dirty, choosing a
// destination physical page and superseding whatever page previously
// held the block (spec.md §4.7). It is a no-op if nothing is dirty.
func (e *Engine) Flush() error {
	if !e.active.dirty {
		return nil
	}

	v := e.active.header().BlockID()
	cur := e.m.blockOf(v)

	var dest uint16
	if cur.IsFree() {
		// First write ever committed for this block: its assigned
		// page is still erased, reuse it in place.
		dest = cur.BlockID()
	} else {
		next, ok := e.m.scanFreeWrap(cur.BlockID())
		if !ok {
			return opErr("flush", ErrNoFreeBlocks)
		}
		dest = next
	}

	displaced := e.m.physicalHeader(dest).BlockID()

	newHeader := header.New(v, true)
	e.active.setHeader(newHeader)
	if err := e.dev.Write(int64(dest)*addr.PhysicalBlockSize, e.active.buf[:]); err != nil {
		return wrapIo("flush: write new copy", err)
	}

	e.m.setBlockOf(v, header.New(dest, true))
	e.m.setPhysicalHeader(dest, header.New(v, true))

	if dest != cur.BlockID() {
		oldPhysical := cur.BlockID()
		oldAddr := int64(oldPhysical) * addr.PhysicalBlockSize
		// The on-disk header word at oldAddr encodes v (the virtual
		// block, via the H table), not oldPhysical (cur's own
		// BlockID, which is an M-table physical pointer) - only its
		// live bit needs clearing.
		cleared := e.m.physicalHeader(oldPhysical).WithoutLive()
		hb := cleared.Bytes()
		if err := e.dev.Write(oldAddr, hb[:]); err != nil {
			return wrapIo("flush: supersede old copy", err)
		}

		e.m.setPhysicalHeader(oldPhysical, header.New(displaced, false))
		e.m.setBlockOf(displaced, header.New(oldPhysical, false))

		if err := e.dev.ErasePage(oldAddr); err != nil {
			return wrapIo("flush: erase superseded page", err)
		}
		ftllog.Debugf("ftl: block %d moved physical page %d -> %d, displaced assignment for block %d onto page %d", v, oldPhysical, dest, displaced, oldPhysical)
	}

	e.active.dirty = false
	return nil
}
