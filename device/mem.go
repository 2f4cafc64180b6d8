package device

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/stefanklug/SPIFlash/internal/ftllog"
)

// Mem is an in-RAM Device, adapted from the original DummyFlash test
// adapter: it enforces the AND-only write rule and counts erases per
// page so wear rotation (spec P6) can be asserted directly in tests.
type Mem struct {
	mu         sync.Mutex
	data       []byte
	blockCount int
	eraseCount []uint32
}

var _ Device = (*Mem)(nil)

// NewMem allocates an in-RAM device of blockCount pages, all erased
// (0xFF) initially.
func NewMem(blockCount int) *Mem {
	m := &Mem{
		data:       make([]byte, blockCount*PageSize),
		blockCount: blockCount,
		eraseCount: make([]uint32, blockCount),
	}
	for i := range m.data {
		m.data[i] = 0xff
	}
	return m
}

func (m *Mem) checkBounds(addr int64, n int) error {
	if addr < 0 || addr+int64(n) > int64(len(m.data)) {
		return errors.Errorf("address range [%d, %d) out of device bounds [0, %d)", addr, addr+int64(n), len(m.data))
	}
	return nil
}

// Read implements Device.
func (m *Mem) Read(addr int64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkBounds(addr, len(buf)); err != nil {
		return err
	}
	copy(buf, m.data[addr:addr+int64(len(buf))])
	return nil
}

// Write implements Device, enforcing new = old & byt per byte: only
// 1->0 transitions are legal on real NOR flash.
func (m *Mem) Write(addr int64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkBounds(addr, len(buf)); err != nil {
		return err
	}
	for i, b := range buf {
		m.data[addr+int64(i)] &= b
	}
	return nil
}

// ErasePage implements Device. addr must be page-aligned.
func (m *Mem) ErasePage(addr int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr%PageSize != 0 {
		return errors.Errorf("erase address %#x is not page-aligned", addr)
	}
	block := addr / PageSize
	if block < 0 || int(block) >= m.blockCount {
		return errors.Errorf("erase address %#x out of device bounds", addr)
	}
	start := block * PageSize
	for i := start; i < start+PageSize; i++ {
		m.data[i] = 0xff
	}
	m.eraseCount[block]++
	ftllog.Debugf("device/mem: erased page %d (count now %d)", block, m.eraseCount[block])
	return nil
}

// ChipErase implements Device: it erases every page and completes
// synchronously, matching DummyFlash::chipErase.
func (m *Mem) ChipErase() error {
	for i := 0; i < m.blockCount; i++ {
		if err := m.ErasePage(int64(i) * PageSize); err != nil {
			return err
		}
	}
	return nil
}

// Busy always reports false: Mem completes every operation
// synchronously within the call that issued it.
func (m *Mem) Busy() bool {
	return false
}

// EraseCounts returns a copy of the per-page erase counters, the Go
// equivalent of DummyFlash::printWearLevel's eraseCounter array.
func (m *Mem) EraseCounts() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, len(m.eraseCount))
	copy(out, m.eraseCount)
	return out
}
