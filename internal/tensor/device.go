package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceType identifies a class of compute device.
type DeviceType int

// Supported device types.
const (
	CPU DeviceType = iota
	CUDA
)

// String returns the lowercase device type name used in device strings.
func (t DeviceType) String() string {
	switch t {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	default:
		return "unknown"
	}
}

// IsAccelerator reports whether the device type is not the host.
func (t DeviceType) IsAccelerator() bool {
	return t != CPU
}

// Device identifies where tensor data lives: a device type and an ordinal.
// The zero value is the host CPU.
type Device struct {
	Type  DeviceType
	Index int
}

// HostDevice is the host processor.
var HostDevice = Device{Type: CPU}

// String returns the canonical device string ("cpu", "cuda:0").
func (d Device) String() string {
	if d.Type == CPU {
		return "cpu"
	}
	return d.Type.String() + ":" + strconv.Itoa(d.Index)
}

// ParseDevice resolves a device string.
//
// Accepted forms are "cpu", "cuda" and "cuda:N". Matching is case-insensitive
// and ignores surrounding whitespace. "cuda" means "cuda:0".
func ParseDevice(s string) (Device, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	typ, index, hasIndex := strings.Cut(name, ":")

	var d Device
	switch typ {
	case "cpu":
		d.Type = CPU
	case "cuda":
		d.Type = CUDA
	default:
		return Device{}, fmt.Errorf("%w: %q (expected cpu, cuda or cuda:N)", ErrUnknownDevice, s)
	}

	if !hasIndex {
		return d, nil
	}
	n, err := strconv.Atoi(index)
	if err != nil || n < 0 {
		return Device{}, fmt.Errorf("%w: invalid device index in %q", ErrUnknownDevice, s)
	}
	if d.Type == CPU && n != 0 {
		return Device{}, fmt.Errorf("%w: cpu has a single device, got %q", ErrUnknownDevice, s)
	}
	d.Index = n
	return d, nil
}

// MustParseDevice is like ParseDevice but panics on error.
func MustParseDevice(s string) Device {
	d, err := ParseDevice(s)
	if err != nil {
		panic(err)
	}
	return d
}
