// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/probe/autodiff"
	"github.com/born-ml/probe/backend/cpu"
	"github.com/born-ml/probe/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.Backend)(nil)
	var _ tensor.GradBackend = (*autodiff.Backend[*cpu.Backend])(nil)
}

func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.HostDevice)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{2, 3}, raw.Shape())
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Equal(t, tensor.HostDevice, raw.Device())
	assert.Equal(t, 6, raw.NumElements())
	assert.Equal(t, 24, raw.ByteSize())
}

func TestPublicAPI(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	y := x.Add(tensor.Ones[float32](tensor.Shape{1, 3}, backend))
	assert.Equal(t, []float32{2, 3, 4, 5, 6, 7}, y.Data())

	dev, err := tensor.ParseDevice("CUDA")
	require.NoError(t, err)
	assert.Equal(t, tensor.Device{Type: tensor.CUDA}, dev)

	_, err = tensor.ParseDevice("metal")
	assert.ErrorIs(t, err, tensor.ErrUnknownDevice)

	out, broadcast, err := tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{3, 4})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4}, out)
	assert.True(t, broadcast)
}

func TestPublicGradients(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Full[float32](tensor.Shape{1}, 3, backend).RequireGrad()

	require.NoError(t, x.Mul(x).Backward(nil))
	assert.Equal(t, []float32{6}, x.Grad().Data())

	plain := tensor.Zeros[float32](tensor.Shape{1}, cpu.New())
	assert.ErrorIs(t, plain.Backward(nil), tensor.ErrNoGrad)
}
