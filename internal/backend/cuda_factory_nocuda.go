//go:build !cuda

package backend

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

const hasCUDA = false

func openCUDA(dev tensor.Device) (tensor.Backend, error) {
	return nil, fmt.Errorf("%w: %s is not available in this build (rebuild with -tags cuda)", ErrUnavailable, dev)
}

func cudaAvailable(int) bool {
	return false
}
