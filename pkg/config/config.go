package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	// ErrNoInterface indicates a configuration without a network
	// interface name.
	ErrNoInterface = errors.New("no interface configured")

	// ErrBadFilter indicates a filter entry that is neither an ID filter
	// nor a mask filter.
	ErrBadFilter = errors.New("invalid filter entry")
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Filter describes one receive filter to install at startup.
type Filter struct {
	// ID is the identifier to monitor.
	ID uint32 `yaml:"id"`

	// Mask selects the payload bits whose changes trigger notifications.
	// Empty means notify on every reception regardless of payload.
	Mask []byte `yaml:"mask,omitempty"`

	// FD selects the FD message layout for this filter.
	FD bool `yaml:"fd,omitempty"`

	// Timeout, when non-zero, additionally reports the frame going
	// absent for this long.
	Timeout Duration `yaml:"timeout,omitempty"`
}

// Log configures event capture and console output.
type Log struct {
	// Level is the console log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// CaptureFile, when set, appends every protocol event to this file
	// in CBOR for later analysis.
	CaptureFile string `yaml:"capture_file,omitempty"`
}

// Config holds the host configuration.
type Config struct {
	// Interface is the network interface to bind, e.g. "can0" or "vcan0".
	Interface string `yaml:"interface"`

	// FD enables the FD message layout by default for interactive
	// commands that do not specify one.
	FD bool `yaml:"fd,omitempty"`

	// QueueCapacity bounds the pending operation queue.
	QueueCapacity int `yaml:"queue_capacity,omitempty"`

	// IdleSleep is how long the poll loop pauses when nothing is
	// pending. Zero falls back to the loop's default.
	IdleSleep Duration `yaml:"idle_sleep,omitempty"`

	// Filters are installed in order at startup.
	Filters []Filter `yaml:"filters,omitempty"`

	// Log configures logging and capture.
	Log Log `yaml:"log,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Interface:     "can0",
		QueueCapacity: 64,
		Log:           Log{Level: "info"},
	}
}

// Load reads a YAML configuration file, layered over Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return ErrNoInterface
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = Default().QueueCapacity
	}

	for i, f := range c.Filters {
		limit := 8
		if f.FD {
			limit = 64
		}
		if len(f.Mask) > limit {
			return fmt.Errorf("%w: filter %d mask is %d bytes, limit %d",
				ErrBadFilter, i, len(f.Mask), limit)
		}
	}
	return nil
}
