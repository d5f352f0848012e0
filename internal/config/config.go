// Package config loads the demo harness configuration. The core agent
// takes its configuration programmatically; this file format only exists
// so the demo executable can be pointed at a transport and a policy
// without recompiling.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DemoConfig declares one demo agent instance and its transport.
type DemoConfig struct {
	Name        string        `toml:"name"`
	Listen      string        `toml:"listen"`
	Serial      SerialConfig  `toml:"serial"`
	HTTP        string        `toml:"http"`
	SoftwareID  string        `toml:"software_id"`
	MaxBitrate  uint32        `toml:"max_bitrate"`
	BufferSize  int           `toml:"buffer_size"`
	PointerSize int           `toml:"pointer_size"`
	Forbidden   []RangeConfig `toml:"forbidden_ranges"`
	Readonly    []RangeConfig `toml:"readonly_ranges"`
}

// SerialConfig selects a serial transport instead of UDP when Device is
// set.
type SerialConfig struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

// RangeConfig is one inclusive address interval.
type RangeConfig struct {
	Start uint64 `toml:"start"`
	End   uint64 `toml:"end"`
}

// LoadDemoConfig reads and validates a demo configuration file.
func LoadDemoConfig(path string) (DemoConfig, error) {
	var cfg DemoConfig
	if err := loadToml(path, &cfg); err != nil {
		return DemoConfig{}, err
	}
	cfg = applyDefaults(cfg)
	if err := ValidateDemoConfig(cfg); err != nil {
		return DemoConfig{}, err
	}
	return cfg, nil
}

// Default returns the configuration the demo runs with when no file is
// given.
func Default() DemoConfig {
	return applyDefaults(DemoConfig{})
}

func applyDefaults(cfg DemoConfig) DemoConfig {
	if cfg.Name == "" {
		cfg.Name = "firmtap-demo"
	}
	if cfg.Listen == "" && cfg.Serial.Device == "" {
		cfg.Listen = ":8765"
	}
	if cfg.Serial.Device != "" && cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 256
	}
	if cfg.PointerSize == 0 {
		cfg.PointerSize = 8
	}
	return cfg
}

// ValidateDemoConfig rejects configurations the agent would refuse or the
// bridge cannot serve.
func ValidateDemoConfig(cfg DemoConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("demo config missing name")
	}
	if cfg.Listen == "" && cfg.Serial.Device == "" {
		return fmt.Errorf("demo config needs a listen address or a serial device")
	}
	if cfg.Listen != "" && cfg.Serial.Device != "" {
		return fmt.Errorf("demo config declares both udp and serial transports")
	}
	if cfg.BufferSize < 32 || cfg.BufferSize > 65535 {
		return fmt.Errorf("buffer_size %d out of range 32..65535", cfg.BufferSize)
	}
	switch cfg.PointerSize {
	case 2, 4, 8:
	default:
		return fmt.Errorf("pointer_size %d must be 2, 4 or 8", cfg.PointerSize)
	}
	if len(cfg.SoftwareID) > 16 {
		return fmt.Errorf("software_id longer than 16 bytes")
	}
	for i, r := range append(append([]RangeConfig(nil), cfg.Forbidden...), cfg.Readonly...) {
		if r.End < r.Start {
			return fmt.Errorf("range[%d] end %#x before start %#x", i, r.End, r.Start)
		}
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
