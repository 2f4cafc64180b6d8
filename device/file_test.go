package device

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T, blockCount int) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flash.img")
	f := NewFile(path, blockCount)
	require.NoError(t, f.Open())
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFileInitializesErased(t *testing.T) {
	f := newTestFile(t, 2)
	buf := make([]byte, PageSize)
	require.NoError(t, f.Read(0, buf))
	for _, b := range buf {
		assert.Equal(t, byte(0xff), b)
	}
}

func TestFileWriteAndSemantics(t *testing.T) {
	f := newTestFile(t, 1)
	require.NoError(t, f.Write(0, []byte{0b1111_0000}))
	require.NoError(t, f.Write(0, []byte{0b1111_1111}))

	buf := make([]byte, 1)
	require.NoError(t, f.Read(0, buf))
	assert.Equal(t, byte(0b1111_0000), buf[0])
}

func TestFileErasePageResets(t *testing.T) {
	f := newTestFile(t, 1)
	require.NoError(t, f.Write(0, []byte{0x00}))
	require.NoError(t, f.ErasePage(0))

	buf := make([]byte, 1)
	require.NoError(t, f.Read(0, buf))
	assert.Equal(t, byte(0xff), buf[0])
}

func TestFileErasePageRequiresAlignment(t *testing.T) {
	f := newTestFile(t, 2)
	assert.Error(t, f.ErasePage(1))
}

func TestFileReopenPreservesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")
	f1 := NewFile(path, 2)
	require.NoError(t, f1.Open())
	require.NoError(t, f1.Write(PageSize+2, []byte("hi")))
	require.NoError(t, f1.Sync())
	require.NoError(t, f1.Close())

	f2 := NewFile(path, 2)
	require.NoError(t, f2.Open())
	buf := make([]byte, 2)
	require.NoError(t, f2.Read(PageSize+2, buf))
	assert.Equal(t, "hi", string(buf))
}
