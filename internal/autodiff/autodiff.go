// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records differentiable
// operations on a GradientTape. Leaves register themselves through TrackLeaf;
// Backward walks the tape in reverse and hands every leaf its gradient.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//
//	x := tensor.Full[float32](tensor.Shape{1}, 2, backend).RequireGrad()
//	y := x.Mul(x) // y = x²
//
//	_ = y.Backward(nil)
//	fmt.Println(x.Grad()) // dy/dx = 2x = 4.0
package autodiff

import (
	"fmt"
	"weak"

	"github.com/born-ml/probe/internal/autodiff/ops"
	"github.com/born-ml/probe/internal/tensor"
)

// Hook observes backward functions as the tape executes them.
type Hook interface {
	BackwardEnter(name string, seq int64)
	BackwardExit(name string, seq int64)
}

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements tensor.GradBackend.
//
// AutodiffBackend is not safe for concurrent use.
type AutodiffBackend[B tensor.Backend] struct {
	inner  B
	tape   *GradientTape
	leaves map[weak.Pointer[tensor.RawTensor]]func(*tensor.RawTensor)
	hook   Hook
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner:  backend,
		tape:   NewGradientTape(),
		leaves: make(map[weak.Pointer[tensor.RawTensor]]func(*tensor.RawTensor)),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// SetHook installs h; nil removes the current hook.
func (b *AutodiffBackend[B]) SetHook(h Hook) {
	b.hook = h
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// TrackLeaf registers leaf so that Backward delivers its gradient to accumulate.
//
// The registration does not keep leaf alive: once the garbage collector
// reclaims it, the entry is dropped on the next TrackLeaf or Backward.
func (b *AutodiffBackend[B]) TrackLeaf(leaf *tensor.RawTensor, accumulate func(grad *tensor.RawTensor)) {
	b.prune()
	b.leaves[weak.Make(leaf)] = accumulate
}

// UntrackLeaf removes leaf's registration. Later backward passes no longer
// deliver its gradient.
func (b *AutodiffBackend[B]) UntrackLeaf(leaf *tensor.RawTensor) {
	delete(b.leaves, weak.Make(leaf))
}

// NumLeaves returns the number of registered leaves, collected ones included
// until they are pruned.
func (b *AutodiffBackend[B]) NumLeaves() int {
	return len(b.leaves)
}

func (b *AutodiffBackend[B]) prune() {
	for wp := range b.leaves {
		if wp.Value() == nil {
			delete(b.leaves, wp)
		}
	}
}

// Backward propagates seed from output to every tracked leaf, then clears the tape.
func (b *AutodiffBackend[B]) Backward(output, seed *tensor.RawTensor) error {
	defer b.tape.Clear()

	if !b.needsGrad(output) {
		return tensor.ErrNoGrad
	}
	if !seed.Shape().Equal(output.Shape()) {
		return fmt.Errorf("%w: seed %v for output %v", tensor.ErrShapeMismatch, seed.Shape(), output.Shape())
	}

	grads := b.tape.Backward(output, seed, b.inner, b.hook)
	for wp, accumulate := range b.leaves {
		leaf := wp.Value()
		if leaf == nil {
			delete(b.leaves, wp)
			continue
		}
		if g, ok := grads[leaf]; ok {
			accumulate(g)
		}
	}
	return nil
}

func (b *AutodiffBackend[B]) needsGrad(raws ...*tensor.RawTensor) bool {
	for _, r := range raws {
		if _, ok := b.leaves[weak.Make(r)]; ok {
			return true
		}
		if b.tape.Tracks(r) {
			return true
		}
	}
	return false
}

// record adds op to the tape when recording and any input requires grad.
func (b *AutodiffBackend[B]) record(op ops.Operation) {
	if b.tape.IsRecording() && b.needsGrad(op.Inputs()...) {
		b.tape.Record(op)
	}
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.record(ops.NewAddOp(a, c, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.record(ops.NewSubOp(a, c, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.record(ops.NewMulOp(a, c, result))
	return result
}

// AddScalar adds s to every element and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.AddScalar(x, s)
	b.record(ops.NewAddScalarOp(x, result))
	return result
}

// MulScalar multiplies every element by s and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	result := b.inner.MulScalar(x, s)
	b.record(ops.NewMulScalarOp(x, result, s))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.record(ops.NewMatMulOp(a, c, result))
	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.record(ops.NewReLUOp(x, result))
	return result
}

// Reshape reshapes x and records the operation.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, newShape)
	b.record(ops.NewReshapeOp(x, result))
	return result
}

// Unsqueeze inserts a unit dimension and records the operation.
func (b *AutodiffBackend[B]) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Unsqueeze(x, dim)
	b.record(ops.NewUnsqueezeOp(x, result))
	return result
}

// Transpose transposes a 2-D tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(x)
	b.record(ops.NewTransposeOp(x, result))
	return result
}

// Conv2D is forwarded without recording. It panics if an input requires grad
// while the tape is recording.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	b.forwardOnly("conv2d", input, kernel)
	return b.inner.Conv2D(input, kernel, stride, padding)
}

// MaxPool2D is forwarded without recording.
func (b *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	b.forwardOnly("maxpool2d", input)
	return b.inner.MaxPool2D(input, kernelSize, stride, padding)
}

// GlobalAvgPool2D is forwarded without recording.
func (b *AutodiffBackend[B]) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	b.forwardOnly("avgpool2d", input)
	return b.inner.GlobalAvgPool2D(input)
}

func (b *AutodiffBackend[B]) forwardOnly(name string, inputs ...*tensor.RawTensor) {
	if b.tape.IsRecording() && b.needsGrad(inputs...) {
		panic(fmt.Sprintf("autodiff: %s has no backward function", name))
	}
}
