// Package backend resolves device names to compute backends.
package backend

import (
	"errors"
	"fmt"

	"github.com/born-ml/probe/internal/backend/cpu"
	"github.com/born-ml/probe/internal/tensor"
)

// ErrUnavailable reports a device that is known but cannot be used by this
// build or on this machine.
var ErrUnavailable = errors.New("backend not available")

const (
	CPU  = "cpu"
	CUDA = "cuda"
)

// Open returns a backend for dev.
func Open(dev tensor.Device) (tensor.Backend, error) {
	switch dev.Type {
	case tensor.CPU:
		if dev.Index != 0 {
			return nil, fmt.Errorf("%w: %s", tensor.ErrUnknownDevice, dev)
		}
		return cpu.New(), nil
	case tensor.CUDA:
		return openCUDA(dev)
	default:
		return nil, fmt.Errorf("%w: %s", tensor.ErrUnknownDevice, dev)
	}
}

// Resolve parses name and opens the matching backend.
func Resolve(name string) (tensor.Backend, error) {
	dev, err := tensor.ParseDevice(name)
	if err != nil {
		return nil, err
	}
	return Open(dev)
}

// Available reports whether Open would succeed for dev.
func Available(dev tensor.Device) bool {
	switch dev.Type {
	case tensor.CPU:
		return dev.Index == 0
	case tensor.CUDA:
		return cudaAvailable(dev.Index)
	default:
		return false
	}
}

// Names lists the backends compiled into this binary.
func Names() []string {
	names := []string{CPU}
	if hasCUDA {
		names = append(names, CUDA)
	}
	return names
}
