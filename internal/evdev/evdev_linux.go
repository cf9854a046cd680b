//go:build linux

package evdev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"axisconstrain/internal/constrain"
)

// ioctl request encoding (Linux _IOC macro).
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir, typ, nr, size uint32) uint {
	return uint(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

var (
	// EVIOCGRAB = _IOW('E', 0x90, int)
	eviocGrab = ioc(iocWrite, 'E', 0x90, 4)

	// uinput requests from linux/uinput.h.
	uiDevCreate  = ioc(iocNone, 'U', 1, 0)
	uiDevDestroy = ioc(iocNone, 'U', 2, 0)
	uiSetEvBit   = ioc(iocWrite, 'U', 100, 4)
	uiSetKeyBit  = ioc(iocWrite, 'U', 101, 4)
	uiSetRelBit  = ioc(iocWrite, 'U', 102, 4)
)

const (
	uinputPath        = "/dev/uinput"
	uinputMaxNameSize = 80
	absCount          = 64
	busVirtual        = 0x06
	readBatch         = 64
)

// Reader reads events from an evdev node.
type Reader struct {
	path    string
	f       *os.File
	grabbed bool

	mu      sync.Mutex
	buf     []byte
	pending []constrain.Event
}

// Open opens the evdev node at path. With grab set the device is taken
// exclusively so only this process sees its events.
func Open(path string, grab bool) (*Reader, error) {
	// O_NONBLOCK puts the fd in the runtime poller so reads honour deadlines.
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := &Reader{
		path: path,
		f:    f,
		buf:  make([]byte, EventSize*readBatch),
	}
	if grab {
		if err := control(f, func(fd int) error { return unix.IoctlSetInt(fd, eviocGrab, 1) }); err != nil {
			f.Close()
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
		r.grabbed = true
	}
	return r, nil
}

// control runs fn with the raw descriptor without switching f to blocking
// mode the way File.Fd does.
func control(f *os.File, fn func(fd int) error) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) { opErr = fn(int(fd)) }); err != nil {
		return err
	}
	return opErr
}

// Path returns the device node path.
func (r *Reader) Path() string {
	return r.path
}

// ReadEvent returns the next event, blocking until one is available or ctx
// is done.
func (r *Reader) ReadEvent(ctx context.Context) (constrain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return constrain.Event{}, err
		}

		stop := context.AfterFunc(ctx, func() {
			r.f.SetReadDeadline(time.Now())
		})
		n, err := r.f.Read(r.buf)
		stop()

		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil {
				r.f.SetReadDeadline(time.Time{})
				return constrain.Event{}, ctx.Err()
			}
			return constrain.Event{}, fmt.Errorf("read %s: %w", r.path, err)
		}
		// evdev only returns whole records.
		r.pending, _ = decodeBatch(r.pending[:0], r.buf[:n])
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}

// Close releases the grab and closes the device. Closing unblocks a pending
// ReadEvent.
func (r *Reader) Close() error {
	if r.grabbed {
		control(r.f, func(fd int) error { return unix.IoctlSetInt(fd, eviocGrab, 0) })
		r.grabbed = false
	}
	return r.f.Close()
}

// inputID mirrors struct input_id.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev mirrors the legacy struct uinput_user_dev.
type uinputUserDev struct {
	Name       [uinputMaxNameSize]byte
	ID         inputID
	EffectsMax uint32
	Absmax     [absCount]int32
	Absmin     [absCount]int32
	Absfuzz    [absCount]int32
	Absflat    [absCount]int32
}

// Writer emits events through a uinput virtual pointer.
type Writer struct {
	name string
	f    *os.File
	mu   sync.Mutex
	buf  []byte
}

// CreateVirtualPointer registers a uinput device advertising relative X/Y,
// both wheels, and the five standard mouse buttons.
func CreateVirtualPointer(name string) (*Writer, error) {
	if len(name) == 0 || len(name) >= uinputMaxNameSize {
		return nil, fmt.Errorf("virtual pointer name must be 1..%d bytes", uinputMaxNameSize-1)
	}

	f, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uinputPath, err)
	}

	setup := func(fd int) error {
		for _, ev := range []uint16{constrain.EvSyn, constrain.EvKey, constrain.EvRel} {
			if err := unix.IoctlSetInt(fd, uiSetEvBit, int(ev)); err != nil {
				return fmt.Errorf("UI_SET_EVBIT %d: %w", ev, err)
			}
		}
		for _, rel := range []uint16{constrain.RelX, constrain.RelY, constrain.RelHWheel, constrain.RelWheel} {
			if err := unix.IoctlSetInt(fd, uiSetRelBit, int(rel)); err != nil {
				return fmt.Errorf("UI_SET_RELBIT %d: %w", rel, err)
			}
		}
		for _, btn := range []int{BtnLeft, BtnRight, BtnMiddle, BtnSide, BtnExtra} {
			if err := unix.IoctlSetInt(fd, uiSetKeyBit, btn); err != nil {
				return fmt.Errorf("UI_SET_KEYBIT %d: %w", btn, err)
			}
		}
		return nil
	}
	if err := control(f, setup); err != nil {
		f.Close()
		return nil, err
	}

	var dev uinputUserDev
	copy(dev.Name[:], name)
	dev.ID = inputID{Bustype: busVirtual, Vendor: 0x1, Product: 0x1, Version: 1}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&dev)), unsafe.Sizeof(dev))
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return nil, fmt.Errorf("write uinput_user_dev: %w", err)
	}

	if err := control(f, func(fd int) error { return unix.IoctlSetInt(fd, uiDevCreate, 0) }); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	return &Writer{name: name, f: f, buf: make([]byte, 0, EventSize)}, nil
}

// Name returns the device name the writer registered.
func (w *Writer) Name() string {
	return w.name
}

// WriteEvent writes one event to the virtual pointer.
func (w *Writer) WriteEvent(ev constrain.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = AppendEvent(w.buf[:0], ev)
	if _, err := w.f.Write(w.buf); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (w *Writer) Close() error {
	control(w.f, func(fd int) error { return unix.IoctlSetInt(fd, uiDevDestroy, 0) })
	return w.f.Close()
}
