// Package evdev reads pointer events from Linux input devices and writes
// them to a uinput virtual pointer.
//
// The kernel's struct input_event is 24 bytes on 64-bit targets: a timeval
// (two 64-bit words) followed by type, code, and value. Decoding and
// encoding are portable; device access is Linux only and other platforms
// get ErrNotSupported.
package evdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"axisconstrain/internal/constrain"
)

// EventSize is the size of one input_event record on 64-bit kernels.
const EventSize = 24

// Button codes exposed by the virtual pointer.
const (
	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112
	BtnSide   = 0x113
	BtnExtra  = 0x114
)

var (
	// ErrNotSupported is returned on platforms without evdev and uinput.
	ErrNotSupported = errors.New("evdev: not supported on this platform")

	// ErrNoDevice is returned when no input device matches the selection.
	ErrNoDevice = errors.New("evdev: no matching pointer device")

	// ErrShortEvent is returned when fewer than EventSize bytes are decoded.
	ErrShortEvent = errors.New("evdev: short input_event")
)

// DecodeEvent decodes one input_event record.
func DecodeEvent(b []byte) (constrain.Event, error) {
	if len(b) < EventSize {
		return constrain.Event{}, fmt.Errorf("%w: %d bytes", ErrShortEvent, len(b))
	}
	sec := int64(binary.NativeEndian.Uint64(b[0:8]))
	usec := int64(binary.NativeEndian.Uint64(b[8:16]))
	return constrain.Event{
		Time:  time.Unix(sec, usec*int64(time.Microsecond)),
		Type:  binary.NativeEndian.Uint16(b[16:18]),
		Code:  binary.NativeEndian.Uint16(b[18:20]),
		Value: int32(binary.NativeEndian.Uint32(b[20:24])),
	}, nil
}

// AppendEvent appends the input_event encoding of ev to b. A zero Time is
// written as zero, which uinput replaces with the current time.
func AppendEvent(b []byte, ev constrain.Event) []byte {
	var sec, usec int64
	if !ev.Time.IsZero() {
		sec = ev.Time.Unix()
		usec = int64(ev.Time.Nanosecond()) / int64(time.Microsecond)
	}
	b = binary.NativeEndian.AppendUint64(b, uint64(sec))
	b = binary.NativeEndian.AppendUint64(b, uint64(usec))
	b = binary.NativeEndian.AppendUint16(b, ev.Type)
	b = binary.NativeEndian.AppendUint16(b, ev.Code)
	b = binary.NativeEndian.AppendUint32(b, uint32(ev.Value))
	return b
}

// EncodeEvent returns the input_event encoding of ev.
func EncodeEvent(ev constrain.Event) []byte {
	return AppendEvent(make([]byte, 0, EventSize), ev)
}

// decodeBatch appends every complete record in b to dst and returns the
// number of bytes consumed.
func decodeBatch(dst []constrain.Event, b []byte) ([]constrain.Event, int) {
	n := 0
	for len(b)-n >= EventSize {
		ev, _ := DecodeEvent(b[n : n+EventSize])
		dst = append(dst, ev)
		n += EventSize
	}
	return dst, n
}
