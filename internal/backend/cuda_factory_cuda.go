//go:build cuda

package backend

import (
	"fmt"

	"github.com/born-ml/probe/internal/backend/cuda"
	"github.com/born-ml/probe/internal/backend/cuda/native"
	"github.com/born-ml/probe/internal/tensor"
)

const hasCUDA = true

func openCUDA(dev tensor.Device) (tensor.Backend, error) {
	if !cudaAvailable(dev.Index) {
		return nil, fmt.Errorf("%w: %s not detected", ErrUnavailable, dev)
	}
	b, err := cuda.New(dev.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return b, nil
}

func cudaAvailable(index int) bool {
	count, err := native.Devices()
	return err == nil && index >= 0 && index < count
}
