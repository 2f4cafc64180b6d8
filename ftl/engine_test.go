package ftl

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefanklug/SPIFlash/addr"
	"github.com/stefanklug/SPIFlash/device"
	"github.com/stefanklug/SPIFlash/header"
)

func newFormatted(t *testing.T, blockCount int) (*Engine, *device.Mem) {
	t.Helper()
	dev := device.NewMem(blockCount)
	e := NewEngine(dev, blockCount)
	require.NoError(t, e.Format())
	return e, dev
}

// Scenario 1: a simple write followed by a flush is visible on read.
func TestSimpleWriteRead(t *testing.T) {
	e, _ := newFormatted(t, 4)

	require.NoError(t, e.Write(0, []byte("hello")))
	require.NoError(t, e.Flush())

	buf := make([]byte, 5)
	require.NoError(t, e.Read(0, buf))
	assert.Equal(t, "hello", string(buf))
}

// Scenario 2: a write spanning two virtual blocks lands correctly on
// both sides of the boundary.
func TestCrossBlockWrite(t *testing.T) {
	e, _ := newFormatted(t, 4)

	payload := make([]byte, 10)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	start := int64(addr.VirtualBlockSize - 5)
	require.NoError(t, e.Write(start, payload))
	require.NoError(t, e.Flush())

	out := make([]byte, 10)
	require.NoError(t, e.Read(start, out))
	assert.Equal(t, payload, out)
}

// Scenario 6 / P4: a read issued before any flush still observes the
// write, since Read consults the active buffer first.
func TestReadYourWritesWithoutFlush(t *testing.T) {
	e, _ := newFormatted(t, 4)

	require.NoError(t, e.Write(100, []byte("unflushed")))

	out := make([]byte, len("unflushed"))
	require.NoError(t, e.Read(100, out))
	assert.Equal(t, "unflushed", string(out))
	assert.True(t, e.FlushNeeded())
}

// P5: persistence survives a reinitialize once flushed.
func TestPersistenceAcrossInitialize(t *testing.T) {
	e, _ := newFormatted(t, 4)

	require.NoError(t, e.Write(42, []byte("durable")))
	require.NoError(t, e.Flush())
	require.NoError(t, e.Initialize())

	out := make([]byte, len("durable"))
	require.NoError(t, e.Read(42, out))
	assert.Equal(t, "durable", string(out))
}

// Scenario 4: alternating writes to two different blocks, each
// triggering the other's flush via activation, survive a reinitialize.
func TestAlternatingBlocksSurviveReinitialize(t *testing.T) {
	e, _ := newFormatted(t, 4)

	blockA := int64(0)
	blockB := int64(addr.VirtualBlockSize)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.WriteByte(blockA, byte('A'+i)))
		require.NoError(t, e.WriteByte(blockB, byte('a'+i)))
	}
	require.NoError(t, e.Flush())
	require.NoError(t, e.Initialize())

	gotA, err := e.ReadByte(blockA)
	require.NoError(t, err)
	gotB, err := e.ReadByte(blockB)
	require.NoError(t, err)
	assert.Equal(t, byte('A'+4), gotA)
	assert.Equal(t, byte('a'+4), gotB)
}

// P6: repeatedly overwriting one byte and flushing rotates the
// destination page; no single physical page should be erased
// disproportionately more than the others.
func TestWearRotation(t *testing.T) {
	const blockCount = 4
	const writes = 37

	e, dev := newFormatted(t, blockCount)

	for i := 0; i < writes; i++ {
		require.NoError(t, e.WriteByte(0, byte(i)))
		require.NoError(t, e.Flush())
	}

	got, err := e.ReadByte(0)
	require.NoError(t, err)
	assert.Equal(t, byte(writes-1), got, "repeated overwrite must read back the last value written, not an AND of all of them")

	bound := uint32(math.Ceil(float64(writes)/float64(blockCount-1))) + 1
	for p, count := range dev.EraseCounts() {
		assert.LessOrEqualf(t, count, bound, "page %d erased %d times, want <= %d", p, count, bound)
	}
}

// TestOverwriteResidentBlockIsNotANDed is the P4/scenario-3 case the
// wear-rotation test alone doesn't cover: writing new content into a
// block that is still resident in the active buffer (flushed, but not
// reactivated in between) must replace the bytes, not AND-merge them.
// Copy semantics apply to the RAM buffer; AND-only applies to the
// physical device (spec.md §4.6).
func TestOverwriteResidentBlockIsNotANDed(t *testing.T) {
	e, _ := newFormatted(t, 4)

	require.NoError(t, e.WriteByte(0, 0x0f))
	require.NoError(t, e.Flush())
	require.NoError(t, e.WriteByte(0, 0xf0))
	require.NoError(t, e.Flush())

	got, err := e.ReadByte(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0xf0), got)
}

// Scenario 5: a corrupted header (block id out of range) is reported
// as ErrCorrupt during Initialize.
func TestInitializeRejectsCorruptHeader(t *testing.T) {
	e, dev := newFormatted(t, 4)

	bad := header.New(9, true) // blockID 9 >= blockCount(4)
	hb := bad.Bytes()
	require.NoError(t, dev.Write(0, hb[:]))

	err := e.Initialize()
	require.Error(t, err)
	assert.True(t, IsCorrupt(err))
}

// P7: virtual_to_physical/physical_to_virtual round-trip for every
// in-range virtual address.
func TestAddressRoundTrip(t *testing.T) {
	e, _ := newFormatted(t, 4)
	require.NoError(t, e.Write(0, []byte("x")))
	require.NoError(t, e.Flush())

	for _, a := range []int64{0, addr.VirtualBlockSize - 1, addr.VirtualBlockSize, e.Size() - 1} {
		p, err := e.VirtualToPhysical(a)
		require.NoError(t, err)
		v, err := e.PhysicalToVirtual(p)
		require.NoError(t, err)
		assert.Equal(t, a, v)
	}
}

func TestReadWriteRejectOutOfRangeAddresses(t *testing.T) {
	e, _ := newFormatted(t, 4)

	err := e.Read(e.Size(), make([]byte, 1))
	require.Error(t, err)
	assert.True(t, IsAddressOutOfRange(err))

	err = e.Write(-1, make([]byte, 1))
	require.Error(t, err)
	assert.True(t, IsAddressOutOfRange(err))
}

func TestPhysicalToVirtualRejectsHeaderBytes(t *testing.T) {
	e, _ := newFormatted(t, 4)

	_, err := e.PhysicalToVirtual(0)
	require.Error(t, err)
	assert.True(t, IsAddressNotInPayload(err))
}

// P3: after formatting, at least one physical page is free (the spare
// slot at the top of the virtual space never gets written directly).
func TestFormatLeavesASpareBlock(t *testing.T) {
	e, _ := newFormatted(t, 4)

	free := 0
	for p := 0; p < e.m.size(); p++ {
		if e.m.physicalHeader(uint16(p)).IsFree() {
			free++
		}
	}
	assert.GreaterOrEqual(t, free, 1)
}

func TestFlushIsNoOpWhenClean(t *testing.T) {
	e, dev := newFormatted(t, 4)
	before := dev.EraseCounts()

	require.NoError(t, e.Flush())

	assert.Equal(t, before, dev.EraseCounts())
	assert.False(t, e.FlushNeeded())
}

// busyMem wraps device.Mem to stay Busy for a fixed number of polls
// after ChipErase, the way a real NOR part's erase completes
// asynchronously (spec.md §6/§4.8).
type busyMem struct {
	*device.Mem
	remaining int
}

func (b *busyMem) ChipErase() error {
	if err := b.Mem.ChipErase(); err != nil {
		return err
	}
	b.remaining = 3
	return nil
}

func (b *busyMem) Busy() bool {
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	return true
}

// Format must poll Busy until the device reports the chip erase has
// completed before running Initialize (spec.md §4.8).
func TestFormatPollsBusyAfterChipErase(t *testing.T) {
	dev := &busyMem{Mem: device.NewMem(4)}
	e := NewEngine(dev, 4)
	e.SetBusyPollInterval(time.Millisecond)

	require.NoError(t, e.Format())
	assert.Equal(t, 0, dev.remaining)
}
