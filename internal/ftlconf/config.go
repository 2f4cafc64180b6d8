// Package ftlconf loads the wear-leveler's runtime configuration from an
// ini file, adapted from the teacher's server/conf.Cfg.
package ftlconf

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// DeviceConfig describes the backing flash device, the "[device]"
// section of the ini file.
type DeviceConfig struct {
	// BlockCount is N, the number of 4096-byte physical pages. Must
	// match the flash geometry.
	BlockCount int `default:"16" yaml:"block_count" json:"block_count"`

	// BackingFile is the path to the file-backed device image used by
	// device.File. Empty means the caller supplies its own device.
	BackingFile string `default:"" yaml:"backing_file" json:"backing_file"`

	// BusyPollInterval is how often Busy() is polled after ChipErase.
	BusyPollInterval         string `default:"1ms" yaml:"busy_poll_interval" json:"busy_poll_interval"`
	BusyPollIntervalDuration time.Duration
}

// Cfg is the parsed configuration.
type Cfg struct {
	Raw    *ini.File
	Device DeviceConfig
}

// NewCfg returns a Cfg seeded with defaults, matching the teacher's
// conf.NewCfg pattern of seeding fields before Load overrides them.
func NewCfg() *Cfg {
	return &Cfg{
		Raw: ini.Empty(),
		Device: DeviceConfig{
			BlockCount:               16,
			BusyPollInterval:         "1ms",
			BusyPollIntervalDuration: time.Millisecond,
		},
	}
}

// Load reads the ini file at path and parses the "[device]" section.
func Load(path string) (*Cfg, error) {
	cfg := NewCfg()

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	cfg.Raw = iniFile

	if err := cfg.parseDeviceSection(cfg.Raw.Section("device")); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Cfg) parseDeviceSection(section *ini.Section) error {
	if key, err := section.GetKey("block_count"); err == nil {
		n, err := key.Int()
		if err != nil {
			return errors.Wrap(err, "parse device.block_count")
		}
		cfg.Device.BlockCount = n
	}

	if key, err := section.GetKey("backing_file"); err == nil {
		cfg.Device.BackingFile = key.String()
	}

	if key, err := section.GetKey("busy_poll_interval"); err == nil {
		cfg.Device.BusyPollInterval = key.String()
	}

	d, err := time.ParseDuration(cfg.Device.BusyPollInterval)
	if err != nil {
		return errors.Wrapf(err, "parse device.busy_poll_interval %q", cfg.Device.BusyPollInterval)
	}
	cfg.Device.BusyPollIntervalDuration = d

	return nil
}
