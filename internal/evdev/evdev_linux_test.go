//go:build linux

package evdev

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"axisconstrain/internal/constrain"
)

func TestIoctlNumbers(t *testing.T) {
	tests := []struct {
		name string
		got  uint
		want uint
	}{
		{"EVIOCGRAB", eviocGrab, 0x40044590},
		{"UI_DEV_CREATE", uiDevCreate, 0x5501},
		{"UI_DEV_DESTROY", uiDevDestroy, 0x5502},
		{"UI_SET_EVBIT", uiSetEvBit, 0x40045564},
		{"UI_SET_KEYBIT", uiSetKeyBit, 0x40045565},
		{"UI_SET_RELBIT", uiSetRelBit, 0x40045566},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %#x, want %#x", tt.name, tt.got, tt.want)
		}
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "event99"), false); err == nil {
		t.Error("expected error opening missing device")
	}
}

func TestCreateVirtualPointerRejectsLongName(t *testing.T) {
	if _, err := CreateVirtualPointer(string(make([]byte, uinputMaxNameSize))); err == nil {
		t.Error("expected error for over-long device name")
	}
}

// A FIFO stands in for an evdev node: it is pollable and delivers the same
// byte stream.
func openFIFO(t *testing.T) (*Reader, *os.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event0")
	if err := unix.Mkfifo(path, 0o600); err != nil {
		t.Fatalf("Mkfifo failed: %v", err)
	}

	r, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open FIFO for writing: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return r, w
}

func TestReaderReadEvent(t *testing.T) {
	r, w := openFIFO(t)

	var b []byte
	b = AppendEvent(b, constrain.Motion(constrain.AxisX, 4))
	b = AppendEvent(b, constrain.Event{Type: constrain.EvSyn, Code: constrain.SynReport})
	if _, err := w.Write(b); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, err := r.ReadEvent(ctx)
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if ev.Code != constrain.RelX || ev.Value != 4 {
		t.Errorf("expected REL_X 4, got code %d value %d", ev.Code, ev.Value)
	}

	ev, err = r.ReadEvent(ctx)
	if err != nil {
		t.Fatalf("second ReadEvent failed: %v", err)
	}
	if ev.Type != constrain.EvSyn {
		t.Errorf("expected EV_SYN, got type %d", ev.Type)
	}
}

func TestReaderReadEventCancel(t *testing.T) {
	r, _ := openFIFO(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := r.ReadEvent(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
