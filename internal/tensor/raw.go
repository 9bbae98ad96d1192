package tensor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

var nextBufferID atomic.Uint64

// tensorBuffer is a reference-counted buffer shared between a tensor and its views.
type tensorBuffer struct {
	id       uint64
	data     []byte
	device   Device
	refCount atomic.Int32
	freed    *atomic.Bool // shared with the GC cleanup so a buffer is reported free once
	mu       sync.Mutex
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int, device Device) *tensorBuffer {
	buf := &tensorBuffer{
		id:     nextBufferID.Add(1),
		data:   make([]byte, size),
		device: device,
		freed:  new(atomic.Bool),
	}
	buf.refCount.Store(1)

	reportAlloc(buf.id, int64(size), device)
	id, freed := buf.id, buf.freed
	runtime.AddCleanup(buf, func(n int64) {
		if freed.CompareAndSwap(false, true) {
			reportFree(id, n, device, true)
		}
	}, int64(size))

	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release decrements the reference count and deallocates if it reaches 0.
func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) != 0 {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.freed.CompareAndSwap(false, true) {
		reportFree(tb.id, int64(len(tb.data)), tb.device, false)
	}
	tb.data = nil
}

func (tb *tensorBuffer) isUnique() bool {
	return tb.refCount.Load() == 1
}

// RawTensor is the low-level tensor representation.
// It uses reference-counted shared buffers so reshapes can be views.
type RawTensor struct {
	buffer *tensorBuffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	byteSize := shape.NumElements() * dtype.Size()

	return &RawTensor{
		buffer: newTensorBuffer(byteSize, device),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// MustNewRaw is like NewRaw but panics on error. Used by backend kernels.
func MustNewRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// ID returns the identifier of the underlying buffer.
// Views of the same data share an ID.
func (r *RawTensor) ID() uint64 {
	return r.buffer.id
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory.
func (r *RawTensor) Data() []byte {
	return r.buffer.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	data := r.buffer.data
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// Clone creates a shallow copy that shares the buffer.
func (r *RawTensor) Clone() *RawTensor {
	return r.View(r.shape)
}

// View returns a tensor sharing this tensor's buffer under a new shape.
// Panics if the element count differs.
func (r *RawTensor) View(shape Shape) *RawTensor {
	if shape.NumElements() != r.NumElements() {
		panic(fmt.Sprintf("view: cannot view %v as %v", r.shape, shape))
	}
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
		device: r.device,
	}
}

// Copy returns a deep copy of the tensor placed on device.
func (r *RawTensor) Copy(device Device) *RawTensor {
	out := MustNewRaw(r.shape, r.dtype, device)
	copy(out.buffer.data, r.buffer.data)
	return out
}

// Release decrements the reference count and frees the buffer when it reaches 0.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// IsUnique returns true if this tensor is the only reference to the buffer.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.isUnique()
}

// Float64s returns the tensor contents converted to float64.
func (r *RawTensor) Float64s() []float64 {
	switch r.dtype {
	case Float32:
		src := r.AsFloat32()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case Float64:
		return append([]float64(nil), r.AsFloat64()...)
	default:
		panic("unsupported dtype")
	}
}
