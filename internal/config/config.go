// Package config handles configuration loading, validation, and management for axisconstrain.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"axisconstrain/internal/constrain"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Constrain configures the axis constrain processor.
	Constrain ConstrainConfig `toml:"constrain" json:"constrain" yaml:"constrain"`

	// Device selects the physical pointing device to read.
	Device DeviceConfig `toml:"device" json:"device" yaml:"device"`

	// Output configures the virtual pointer that receives filtered events.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// History configures the lock history database.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`
}

// ConstrainConfig holds the processor settings.
type ConstrainConfig struct {
	// Threshold is the cumulative displacement an axis needs to become dominant.
	Threshold int `toml:"threshold" json:"threshold" yaml:"threshold"`

	// Sticky keeps the first dominant axis until the device goes idle.
	Sticky bool `toml:"sticky" json:"sticky" yaml:"sticky"`

	// ReleaseAfterMs is the idle time in milliseconds that unlocks a sticky axis.
	ReleaseAfterMs int `toml:"release_after_ms" json:"release_after_ms" yaml:"release_after_ms"`

	// TrackRemainders records suppressed motion per axis for diagnostics.
	TrackRemainders bool `toml:"track_remainders" json:"track_remainders" yaml:"track_remainders"`
}

// DeviceConfig selects the input device.
type DeviceConfig struct {
	// Path is an explicit evdev node, e.g. /dev/input/event5.
	// When empty the first pointer matching NameMatch is used.
	Path string `toml:"path" json:"path" yaml:"path"`

	// NameMatch is a case-insensitive substring of the device name.
	NameMatch string `toml:"name_match" json:"name_match" yaml:"name_match"`

	// Grab takes exclusive access so unfiltered events do not leak to other readers.
	Grab bool `toml:"grab" json:"grab" yaml:"grab"`
}

// OutputConfig configures the uinput virtual pointer.
type OutputConfig struct {
	// Enabled creates the virtual device. Disable for dry runs.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Name is the device name advertised to the system.
	Name string `toml:"name" json:"name" yaml:"name"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where logs go: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	// Enabled serves metrics over HTTP.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ListenAddr is the address for the metrics endpoint.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// HistoryConfig configures the SQLite lock history.
type HistoryConfig struct {
	// Enabled records sessions, lock periods, and reloads.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Constrain: ConstrainConfig{
			Threshold:      5,
			Sticky:         true,
			ReleaseAfterMs: 300,
		},
		Device: DeviceConfig{
			NameMatch: "trackball",
			Grab:      true,
		},
		Output: OutputConfig{
			Enabled: true,
			Name:    "axisconstrain virtual pointer",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "axisconstraind.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9477",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(PlatformLogDir(), "history.db"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if path := FindConfigFile(); path != "" {
		return path
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads the configuration at path, applying environment overrides and
// validating the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	return NewLoader(path).Load()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ProcessorConfig converts the constrain section into processor settings.
func (c *ConstrainConfig) ProcessorConfig() constrain.Config {
	return constrain.Config{
		Threshold:       int32(c.Threshold),
		Sticky:          c.Sticky,
		ReleaseAfter:    time.Duration(c.ReleaseAfterMs) * time.Millisecond,
		TrackRemainders: c.TrackRemainders,
	}
}

// ReleaseAfter returns the release timeout as a duration.
func (c *ConstrainConfig) ReleaseAfter() time.Duration {
	return time.Duration(c.ReleaseAfterMs) * time.Millisecond
}

// ApplyEnvOverrides applies AXISCONSTRAIN_* environment variables on top of
// the loaded values.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidationErrors

	envInt := func(name, field string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s: not an integer: %q", name, v)})
			return
		}
		*dst = n
	}
	envBool := func(name, field string, dst *bool) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("%s: not a boolean: %q", name, v)})
			return
		}
		*dst = b
	}

	// Constrain overrides
	envInt("AXISCONSTRAIN_THRESHOLD", "constrain.threshold", &c.Constrain.Threshold)
	envBool("AXISCONSTRAIN_STICKY", "constrain.sticky", &c.Constrain.Sticky)
	envInt("AXISCONSTRAIN_RELEASE_AFTER_MS", "constrain.release_after_ms", &c.Constrain.ReleaseAfterMs)

	// Device overrides
	if v := os.Getenv("AXISCONSTRAIN_DEVICE"); v != "" {
		c.Device.Path = v
	}
	envBool("AXISCONSTRAIN_GRAB", "device.grab", &c.Device.Grab)

	// Logging overrides
	if v := os.Getenv("AXISCONSTRAIN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AXISCONSTRAIN_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Metrics overrides
	if v := os.Getenv("AXISCONSTRAIN_METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.ListenAddr = v
	}

	// History overrides
	envBool("AXISCONSTRAIN_HISTORY", "history.enabled", &c.History.Enabled)
	if v := os.Getenv("AXISCONSTRAIN_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
