package tensor

import (
	"fmt"
	"weak"
)

// RequireGrad marks t as a leaf whose gradient is accumulated by Backward.
// It returns t for chaining:
//
//	left := tensor.Zeros[float32](Shape{100}, backend).RequireGrad()
func (t *Tensor[T, B]) RequireGrad() *Tensor[T, B] {
	t.requiresGrad = true
	if gb, ok := any(t.backend).(GradBackend); ok && !t.tracked {
		// The backend holds t weakly so that dropping t releases the leaf.
		wt := weak.Make(t)
		gb.TrackLeaf(t.raw, func(g *RawTensor) {
			if t := wt.Value(); t != nil {
				t.accumulateGrad(g)
			}
		})
		t.tracked = true
	}
	return t
}

// RequiresGrad reports whether operations on t are tracked for differentiation.
func (t *Tensor[T, B]) RequiresGrad() bool {
	return t.requiresGrad
}

// Grad returns the accumulated gradient, or nil before the first backward
// pass that reached t.
func (t *Tensor[T, B]) Grad() *Tensor[T, B] {
	return t.grad
}

// ZeroGrad drops the accumulated gradient.
func (t *Tensor[T, B]) ZeroGrad() {
	t.grad = nil
}

// Backward propagates seed, the gradient of t, back to every leaf that
// contributed to t. Leaf gradients accumulate across calls.
//
// seed may be nil only when t holds a single element; it then defaults to 1.
// The recorded graph is released afterwards.
func (t *Tensor[T, B]) Backward(seed *Tensor[T, B]) error {
	if !t.requiresGrad {
		return ErrNoGrad
	}
	gb, ok := any(t.backend).(GradBackend)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotDifferentiable, t.backend.Name())
	}

	if seed == nil {
		if t.NumElements() != 1 {
			return fmt.Errorf("%w: seed can be omitted only for single-element outputs, got %v",
				ErrShapeMismatch, t.Shape())
		}
		seed = Ones[T, B](t.Shape(), t.backend)
	}
	if !seed.Shape().Equal(t.Shape()) {
		return fmt.Errorf("%w: seed %v for output %v", ErrShapeMismatch, seed.Shape(), t.Shape())
	}

	return gb.Backward(t.raw, seed.raw)
}

// accumulateGrad adds g into t.grad, allocating it on first use.
func (t *Tensor[T, B]) accumulateGrad(g *RawTensor) {
	if !g.Shape().Equal(t.Shape()) {
		panic(fmt.Sprintf("grad: gradient shape %v does not match tensor %v", g.Shape(), t.Shape()))
	}
	if t.grad == nil {
		t.grad = New[T, B](g.Copy(t.Device()), t.backend)
		return
	}
	AccumulateInto(t.grad.raw, g)
}

// AccumulateInto performs dst += src on host-visible data.
// Shapes must have the same number of elements and dtypes must match.
func AccumulateInto(dst, src *RawTensor) {
	if dst.NumElements() != src.NumElements() || dst.DType() != src.DType() {
		panic(fmt.Sprintf("accumulate: incompatible %v/%s and %v/%s",
			dst.Shape(), dst.DType(), src.Shape(), src.DType()))
	}
	switch dst.DType() {
	case Float32:
		addInto(dst.AsFloat32(), src.AsFloat32())
	case Float64:
		addInto(dst.AsFloat64(), src.AsFloat64())
	default:
		panic("accumulate: unsupported dtype")
	}
}

func addInto[T DType](dst, src []T) {
	for i := range dst {
		dst[i] += src[i]
	}
}
