package config

import (
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"axisconstrain/internal/constrain"
)

// maxReleaseAfterMs is the largest release delay a time.Duration can hold.
const maxReleaseAfterMs = math.MaxInt64 / int64(time.Millisecond)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error refers to field.
func (e ValidationErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateConstrain(&c.Constrain)...)
	errs = append(errs, validateDevice(&c.Device)...)
	errs = append(errs, validateOutput(&c.Output)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateHistory(&c.History)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateConstrain(c *ConstrainConfig) ValidationErrors {
	var errs ValidationErrors

	if c.Threshold <= 0 {
		errs = append(errs, ValidationError{
			Field:   "constrain.threshold",
			Message: "threshold must be positive",
		})
	}
	if c.Threshold > int(constrain.MaxAccum) {
		errs = append(errs, ValidationError{
			Field:   "constrain.threshold",
			Message: "threshold exceeds the accumulator range",
		})
	}

	if c.Sticky && c.ReleaseAfterMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "constrain.release_after_ms",
			Message: "release_after_ms must be positive when sticky is enabled",
		})
	}
	if c.ReleaseAfterMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "constrain.release_after_ms",
			Message: "release_after_ms cannot be negative",
		})
	}
	if int64(c.ReleaseAfterMs) > maxReleaseAfterMs {
		errs = append(errs, ValidationError{
			Field:   "constrain.release_after_ms",
			Message: "release_after_ms is too large",
		})
	}

	return errs
}

func validateDevice(d *DeviceConfig) ValidationErrors {
	var errs ValidationErrors

	if d.Path == "" && d.NameMatch == "" {
		errs = append(errs, ValidationError{
			Field:   "device.path",
			Message: "either path or name_match is required",
		})
	}

	return errs
}

func validateOutput(o *OutputConfig) ValidationErrors {
	var errs ValidationErrors

	// uinput truncates names at 80 bytes including the terminator.
	if o.Enabled && (o.Name == "" || len(o.Name) > 79) {
		errs = append(errs, ValidationError{
			Field:   "output.name",
			Message: "name must be between 1 and 79 bytes",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if !m.Enabled {
		return errs
	}
	if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen_addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.ListenAddr, err),
		})
	}

	return errs
}

func validateHistory(h *HistoryConfig) ValidationErrors {
	var errs ValidationErrors

	if h.Enabled && h.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "history.path",
			Message: "path is required when history is enabled",
		})
	}

	return errs
}
