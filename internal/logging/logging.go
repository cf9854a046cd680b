// Package logging provides structured logging with slog for axisconstrain.
//
// Loggers write text or JSON records to stderr, stdout, a size-rotated file,
// or both a terminal stream and a file. Every record carries the component
// that produced it.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"axisconstrain/internal/config"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	// FormatText outputs human-readable key=value logs.
	FormatText Format = iota
	// FormatJSON outputs one JSON object per record.
	FormatJSON
)

// Config holds the logging configuration.
type Config struct {
	Level  Level
	Format Format

	// Output is one of "stdout", "stderr", "file", or "both".
	// "both" writes to stderr and the file.
	Output string

	// FilePath is the log file used when Output includes a file.
	FilePath string

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int64

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// MaxAgeDays removes rotated files older than this. Zero keeps them.
	MaxAgeDays int

	AddSource bool
	Component string

	// Writer overrides Output when set. Used by tests and the demo.
	Writer io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return FromSettings(config.DefaultConfig().Logging)
}

// FromSettings converts the logging section of the file configuration.
// Unknown levels and formats fall back to info and text; the config package
// rejects them before they get here.
func FromSettings(s config.LoggingConfig) *Config {
	level, _ := ParseLevel(s.Level)
	format, _ := ParseFormat(s.Format)
	return &Config{
		Level:      level,
		Format:     format,
		Output:     s.Output,
		FilePath:   s.FilePath,
		MaxSizeMB:  int64(s.MaxSizeMB),
		MaxBackups: s.MaxBackups,
		MaxAgeDays: s.MaxAgeDays,
		Component:  "axisconstrain",
	}
}

// Logger wraps slog.Logger with the resources backing it.
type Logger struct {
	*slog.Logger
	config  *Config
	level   *slog.LevelVar
	rotator *FileRotator
	mu      sync.Mutex
}

// New creates a new Logger with the given configuration.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{
		config: cfg,
		level:  new(slog.LevelVar),
	}
	l.level.Set(cfg.Level)

	w, err := l.writer()
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:     l.level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("component", cfg.Component),
		})
	}

	l.Logger = slog.New(handler)
	return l, nil
}

func (l *Logger) writer() (io.Writer, error) {
	if l.config.Writer != nil {
		return l.config.Writer, nil
	}

	switch strings.ToLower(l.config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file", "both":
		rotator, err := NewFileRotator(l.config)
		if err != nil {
			return nil, err
		}
		l.rotator = rotator
		if strings.EqualFold(l.config.Output, "both") {
			return io.MultiWriter(os.Stderr, rotator), nil
		}
		return rotator, nil
	default:
		return os.Stderr, nil
	}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Default returns the process-wide logger. Until SetDefault is called it
// writes text records at info level to stderr.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger, _ = New(&Config{Level: LevelInfo, Output: "stderr", Component: "axisconstrain"})
	}
	return defaultLogger
}

// SetDefault replaces the process-wide logger and installs it as the slog
// default.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	slog.SetDefault(l.Logger)
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
		config: &Config{},
		level:  new(slog.LevelVar),
	}
}

// WithComponent returns a logger tagged with a different component name.
// The child shares the parent's level and output.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(slog.String("component", name)),
		config:  l.config,
		level:   l.level,
		rotator: l.rotator,
	}
}

// SetLevel changes the minimum level at runtime for this logger and all
// loggers derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Sync flushes the log file, if any.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		return l.rotator.Sync()
	}
	return nil
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

// LevelString returns the string representation of a log level.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
