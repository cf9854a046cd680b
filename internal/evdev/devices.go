package evdev

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"axisconstrain/internal/constrain"
)

// procDevices lists the kernel's input devices.
var procDevices = "/proc/bus/input/devices"

// Device describes one entry of /proc/bus/input/devices.
type Device struct {
	Name     string
	Phys     string
	Handlers []string
	// Rel is the low word of the REL capability bitmap.
	Rel uint64
}

// Path returns the /dev/input/eventN node for the device, or "" if it has
// no event handler.
func (d Device) Path() string {
	for _, h := range d.Handlers {
		if strings.HasPrefix(h, "event") {
			return filepath.Join("/dev/input", h)
		}
	}
	return ""
}

// HasRel reports whether the device advertises relative axis code.
func (d Device) HasRel(code uint16) bool {
	return code < 64 && d.Rel&(1<<code) != 0
}

// IsPointer reports whether the device emits both REL_X and REL_Y.
func (d Device) IsPointer() bool {
	return d.HasRel(constrain.RelX) && d.HasRel(constrain.RelY)
}

// ParseDevices parses the /proc/bus/input/devices format. Blocks are
// separated by blank lines.
func ParseDevices(r io.Reader) ([]Device, error) {
	var (
		devices []Device
		cur     Device
		started bool
	)
	flush := func() {
		if started {
			devices = append(devices, cur)
		}
		cur = Device{}
		started = false
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		if len(line) < 3 || line[1] != ':' {
			continue
		}
		started = true
		body := strings.TrimSpace(line[2:])

		switch line[0] {
		case 'N':
			cur.Name = strings.Trim(strings.TrimPrefix(body, "Name="), `"`)
		case 'P':
			cur.Phys = strings.TrimPrefix(body, "Phys=")
		case 'H':
			cur.Handlers = strings.Fields(strings.TrimPrefix(body, "Handlers="))
		case 'B':
			if !strings.HasPrefix(body, "REL=") {
				continue
			}
			words := strings.Fields(strings.TrimPrefix(body, "REL="))
			if len(words) == 0 {
				continue
			}
			// Most significant word first.
			v, err := strconv.ParseUint(words[len(words)-1], 16, 64)
			if err != nil {
				return nil, fmt.Errorf("parse REL bitmap %q: %w", body, err)
			}
			cur.Rel = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read device list: %w", err)
	}
	flush()
	return devices, nil
}

// FindPointers returns the relative pointer devices known to the kernel.
func FindPointers() ([]Device, error) {
	f, err := os.Open(procDevices)
	if err != nil {
		return nil, fmt.Errorf("open device list: %w", err)
	}
	defer f.Close()

	all, err := ParseDevices(f)
	if err != nil {
		return nil, err
	}

	var pointers []Device
	for _, d := range all {
		if d.IsPointer() && d.Path() != "" {
			pointers = append(pointers, d)
		}
	}
	return pointers, nil
}

// Select picks the device to open. An explicit path wins; otherwise the
// first pointer whose name contains nameMatch (case-insensitive) is used.
// Devices named skipName are ignored so the daemon never reads its own
// virtual pointer.
func Select(devices []Device, path, nameMatch, skipName string) (string, error) {
	if path != "" {
		return path, nil
	}
	needle := strings.ToLower(nameMatch)
	for _, d := range devices {
		if skipName != "" && d.Name == skipName {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d.Path(), nil
		}
	}
	return "", fmt.Errorf("%w: name contains %q", ErrNoDevice, nameMatch)
}
