//go:build cuda

package cuda_test

import (
	"testing"

	"github.com/born-ml/probe/internal/backend/cuda"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_AddMatMul(t *testing.T) {
	if !cuda.Available() {
		t.Skip("no cuda device")
	}
	b, err := cuda.New(0)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, b)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float32{5, 6, 7, 8}, tensor.Shape{2, 2}, b)
	require.NoError(t, err)

	assert.Equal(t, []float32{6, 8, 10, 12}, x.Add(y).Data())
	assert.Equal(t, []float32{19, 22, 43, 50}, x.MatMul(y).Data())
	assert.Equal(t, tensor.Device{Type: tensor.CUDA}, x.Add(y).Device())
}
