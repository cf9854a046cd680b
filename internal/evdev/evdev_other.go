//go:build !linux

package evdev

import (
	"context"

	"axisconstrain/internal/constrain"
)

// Reader is unavailable off Linux.
type Reader struct{}

// Open always fails with ErrNotSupported.
func Open(path string, grab bool) (*Reader, error) {
	return nil, ErrNotSupported
}

// Path returns "".
func (r *Reader) Path() string { return "" }

// ReadEvent always fails with ErrNotSupported.
func (r *Reader) ReadEvent(ctx context.Context) (constrain.Event, error) {
	return constrain.Event{}, ErrNotSupported
}

// Close is a no-op.
func (r *Reader) Close() error { return nil }

// Writer is unavailable off Linux.
type Writer struct{}

// CreateVirtualPointer always fails with ErrNotSupported.
func CreateVirtualPointer(name string) (*Writer, error) {
	return nil, ErrNotSupported
}

// Name returns "".
func (w *Writer) Name() string { return "" }

// WriteEvent always fails with ErrNotSupported.
func (w *Writer) WriteEvent(ev constrain.Event) error {
	return ErrNotSupported
}

// Close is a no-op.
func (w *Writer) Close() error { return nil }
