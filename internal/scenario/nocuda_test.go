//go:build !cuda

package scenario_test

import (
	"context"
	"testing"

	"github.com/born-ml/probe/internal/backend"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOnDevice_CUDAUnavailable(t *testing.T) {
	_, err := runner().AddOnDevice(context.Background(), "cuda:0")
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestClassify_CUDAFallsBackToHost(t *testing.T) {
	r := classifyRunner(t, fixtures(t, true))

	res, err := r.Classify(context.Background(), "cuda")
	require.NoError(t, err)
	assert.Equal(t, tensor.HostDevice, res.Device)
	assert.Equal(t, tensor.HostDevice, res.Batch.Device())
	assert.Equal(t, tensor.Shape{1, 3}, res.Logits.Shape())
}
