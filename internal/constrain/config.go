package constrain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every configuration error returned from New.
var ErrInvalidConfig = errors.New("invalid axis constrain configuration")

// ConfigError describes a single invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("constrain: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Config is the immutable per-instance configuration.
type Config struct {
	// Threshold is the cumulative absolute displacement an axis needs before
	// it can be declared dominant.
	Threshold int32

	// Sticky latches the first dominant axis until ReleaseAfter of inactivity.
	Sticky bool

	// ReleaseAfter is the idle period that unlocks a sticky axis.
	// Required when Sticky is set, ignored otherwise.
	ReleaseAfter time.Duration

	// TrackRemainders keeps a running sum of suppressed motion per axis.
	TrackRemainders bool
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.Threshold <= 0 {
		return &ConfigError{Field: "threshold", Reason: fmt.Sprintf("must be positive, got %d", c.Threshold)}
	}
	if c.Threshold > MaxAccum {
		return &ConfigError{Field: "threshold", Reason: fmt.Sprintf("exceeds accumulator range %d", MaxAccum)}
	}
	if c.Sticky && c.ReleaseAfter <= 0 {
		return &ConfigError{Field: "release_after", Reason: "must be positive when sticky is enabled"}
	}
	return nil
}
