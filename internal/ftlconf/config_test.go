package ftlconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIni(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ftl.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewCfgDefaults(t *testing.T) {
	cfg := NewCfg()
	assert.Equal(t, 16, cfg.Device.BlockCount)
	assert.Equal(t, "1ms", cfg.Device.BusyPollInterval)
}

func TestLoadParsesDeviceSection(t *testing.T) {
	path := writeIni(t, "[device]\nblock_count = 32\nbacking_file = /tmp/flash.img\nbusy_poll_interval = 5ms\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Device.BlockCount)
	assert.Equal(t, "/tmp/flash.img", cfg.Device.BackingFile)
	assert.Equal(t, 5*time.Millisecond, cfg.Device.BusyPollIntervalDuration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestLoadDefaultsWhenSectionAbsent(t *testing.T) {
	path := writeIni(t, "[other]\nfoo = bar\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Device.BlockCount)
}
