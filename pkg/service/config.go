package service

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fpga-tools/regaccess-go/pkg/access"
	"github.com/fpga-tools/regaccess-go/pkg/log"
)

// Transport kinds accepted in configuration.
const (
	TransportLoopback = "loopback"
	TransportXDMA     = "xdma"
)

// TransportConfig selects and parameterizes the hardware transport.
type TransportConfig struct {
	// Kind is the transport implementation, "loopback" or "xdma".
	// Empty means loopback.
	Kind string `yaml:"kind"`

	// DeviceIndex selects the XDMA character device (/dev/xdmaN_user).
	DeviceIndex int `yaml:"device_index"`

	// WindowSize is the mapped BAR window in bytes, XDMA only.
	// Zero means the transport default.
	WindowSize uint64 `yaml:"window_size"`
}

// Config is the service configuration, loadable from YAML.
type Config struct {
	// MapFile is the register map document (.xml or .json). Required.
	MapFile string `yaml:"map_file"`

	// PolicyFile is an optional policy overwrite document.
	PolicyFile string `yaml:"policy_file"`

	// DefaultPolicy applies to registers without a policy of their own.
	// Empty means "static".
	DefaultPolicy string `yaml:"default_policy"`

	// PollRateMS is the default poll interval for polled registers, in
	// milliseconds. Zero means one second.
	PollRateMS int `yaml:"poll_rate"`

	// ReadOnOpen refreshes every readable register right after the
	// transport opens, so caches are warm before the first query.
	ReadOnOpen bool `yaml:"read_on_open"`

	// Transport selects the hardware transport.
	Transport TransportConfig `yaml:"transport"`

	// LogFile receives the binary access event log. Empty disables it.
	LogFile string `yaml:"log_file"`

	// Logger receives debug output. Optional.
	Logger *slog.Logger `yaml:"-"`

	// EventLogger receives access events in addition to LogFile.
	// Optional.
	EventLogger log.Logger `yaml:"-"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors a later Start would
// only surface obscurely.
func (c *Config) Validate() error {
	if c.MapFile == "" {
		return fmt.Errorf("map_file is required")
	}
	if c.DefaultPolicy != "" {
		if _, err := access.ParsePolicy(c.DefaultPolicy); err != nil {
			return fmt.Errorf("default_policy: %w", err)
		}
	}
	if c.PollRateMS < 0 {
		return fmt.Errorf("poll_rate must not be negative")
	}
	switch c.Transport.Kind {
	case "", TransportLoopback, TransportXDMA:
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
	if c.Transport.DeviceIndex < 0 {
		return fmt.Errorf("transport device_index must not be negative")
	}
	return nil
}
