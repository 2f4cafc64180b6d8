package device

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// File is a file-backed Device, adapted from
// server/innodb/storage/store/blocks.BlockFile: it lazily opens the
// backing file, serializes access with a mutex, and uses ReadAt/WriteAt.
// Unlike BlockFile (which hands raw bytes to the OS), File enforces the
// AND-only write rule a real NOR part has, since the backing file has
// no hardware bit-clearing semantics of its own.
type File struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	blockCount int
}

var _ Device = (*File)(nil)

// NewFile creates a File device backed by path, sized to blockCount
// pages. The file is created and extended to the right size with 0xFF
// bytes (matching an erased chip) on first Open.
func NewFile(path string, blockCount int) *File {
	return &File{path: path, blockCount: blockCount}
}

// Open opens (creating if needed) the backing file and erases it to
// the configured size if it was just created or is undersized.
func (f *File) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openLocked()
}

func (f *File) openLocked() error {
	if f.file != nil {
		return nil
	}

	fh, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrapf(err, "open backing file %s", f.path)
	}
	f.file = fh

	wantSize := int64(f.blockCount) * PageSize
	stat, err := fh.Stat()
	if err != nil {
		return errors.Wrap(err, "stat backing file")
	}
	if stat.Size() < wantSize {
		if err := f.fillLocked(stat.Size(), wantSize); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) fillLocked(from, to int64) error {
	fill := make([]byte, PageSize)
	for i := range fill {
		fill[i] = 0xff
	}
	for off := from; off < to; off += PageSize {
		n := to - off
		if n > PageSize {
			n = PageSize
		}
		if _, err := f.file.WriteAt(fill[:n], off); err != nil {
			return errors.Wrap(err, "extend backing file")
		}
	}
	return nil
}

// Close closes the backing file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Read implements Device.
func (f *File) Read(addr int64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openLocked(); err != nil {
		return err
	}
	_, err := f.file.ReadAt(buf, addr)
	return errors.Wrap(err, "read backing file")
}

// Write implements Device by reading the current bytes, AND-merging
// them with buf, and writing the result back.
func (f *File) Write(addr int64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openLocked(); err != nil {
		return err
	}

	cur := make([]byte, len(buf))
	if _, err := f.file.ReadAt(cur, addr); err != nil {
		return errors.Wrap(err, "read-modify-write backing file")
	}
	for i, b := range buf {
		cur[i] &= b
	}
	if _, err := f.file.WriteAt(cur, addr); err != nil {
		return errors.Wrap(err, "write backing file")
	}
	return nil
}

// ErasePage implements Device.
func (f *File) ErasePage(addr int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openLocked(); err != nil {
		return err
	}
	if addr%PageSize != 0 {
		return errors.Errorf("erase address %#x is not page-aligned", addr)
	}

	fill := make([]byte, PageSize)
	for i := range fill {
		fill[i] = 0xff
	}
	if _, err := f.file.WriteAt(fill, addr); err != nil {
		return errors.Wrap(err, "erase backing file page")
	}
	return nil
}

// ChipErase implements Device.
func (f *File) ChipErase() error {
	for i := 0; i < f.blockCount; i++ {
		if err := f.ErasePage(int64(i) * PageSize); err != nil {
			return err
		}
	}
	return nil
}

// Busy always reports false: File completes every operation
// synchronously.
func (f *File) Busy() bool {
	return false
}

// Sync flushes the backing file to disk.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	return errors.Wrap(f.file.Sync(), "sync backing file")
}
