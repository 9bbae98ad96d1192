// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/probe/internal/tensor"
)

// DType is a constraint for tensor element types: float32 and float64.
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// Device identifies where tensor data lives.
type Device = tensor.Device

// DeviceType is a class of device.
type DeviceType = tensor.DeviceType

// Device type constants.
const (
	CPU  = tensor.CPU
	CUDA = tensor.CUDA
)

// HostDevice is the host processor.
var HostDevice = tensor.HostDevice

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is reference-counted tensor storage. Most users should use
// Tensor[T, B] instead.
type RawTensor = tensor.RawTensor

// Backend is the interface every compute backend implements.
type Backend = tensor.Backend

// GradBackend is a Backend that can backpropagate.
type GradBackend = tensor.GradBackend

// Tensor is a generic type-safe tensor.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// MemoryEvent describes one allocation or release of tensor storage.
type MemoryEvent = tensor.MemoryEvent

// MemoryReporter receives storage events.
type MemoryReporter = tensor.MemoryReporter

// Errors.
var (
	ErrUnknownDevice     = tensor.ErrUnknownDevice
	ErrShapeMismatch     = tensor.ErrShapeMismatch
	ErrNoGrad            = tensor.ErrNoGrad
	ErrNotDifferentiable = tensor.ErrNotDifferentiable
)

// ParseDevice resolves "cpu", "cuda" or "cuda:N" (case-insensitive).
//
// Example:
//
//	dev, err := tensor.ParseDevice("cuda:1")
func ParseDevice(s string) (Device, error) {
	return tensor.ParseDevice(s)
}

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Full[float32](tensor.Shape{2, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// FromSlice creates a tensor from a Go slice. The data is copied.
//
// Example:
//
//	backend := cpu.New()
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// New wraps a raw tensor. This is a low-level function; most users should use
// Zeros, Ones or FromSlice instead.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw allocates raw storage with the given shape, dtype and device.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// To copies t onto the device of dst. The result is a new leaf.
func To[T DType, B, D Backend](t *Tensor[T, B], dst D) *Tensor[T, D] {
	return tensor.To(t, dst)
}

// BroadcastShapes computes the broadcast shape for two shapes following NumPy
// broadcasting rules.
//
// Example:
//
//	out, broadcast, err := tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{3, 4})
//	// out = [3, 4], broadcast = true
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// SetMemoryReporter installs r as the process-wide storage observer and
// returns a function restoring the previous one.
func SetMemoryReporter(r MemoryReporter) (restore func()) {
	return tensor.SetMemoryReporter(r)
}
