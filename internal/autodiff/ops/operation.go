// Package ops defines the differentiable operations recorded by the autodiff tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and computes input gradients from the output gradient:
//   - AddOp, SubOp: gradient flows through (negated for the subtrahend)
//   - MulOp: d(a*b)/da = b, d(a*b)/db = a
//   - AddScalarOp, MulScalarOp: identity and scaling
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - ReshapeOp, UnsqueezeOp: gradient reshaped back to the input shape
//   - TransposeOp: gradient transposed back
//   - ReLUOp: gradient masked where the input was not positive
//
// Broadcast inputs receive gradients summed back to their own shape.
package ops

import "github.com/born-ml/probe/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Name identifies the backward function, e.g. "AddBackward".
	Name() string

	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is aligned with Inputs.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// base carries the bookkeeping shared by every operation.
type base struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func (b base) Inputs() []*tensor.RawTensor { return b.inputs }

func (b base) Output() *tensor.RawTensor { return b.output }
