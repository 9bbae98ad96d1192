package ops

import "github.com/born-ml/probe/internal/tensor"

// MulOp represents element-wise output = a * b.
//
// Backward pass:
//   - grad_a = outputGrad * b
//   - grad_b = outputGrad * a
type MulOp struct{ base }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Name returns "MulBackward".
func (op *MulOp) Name() string { return "MulBackward" }

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape()),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape()),
	}
}

// MulScalarOp represents output = x * s.
type MulScalarOp struct {
	base
	scalar float64
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, s float64) *MulScalarOp {
	return &MulScalarOp{base: base{inputs: []*tensor.RawTensor{x}, output: output}, scalar: s}
}

// Name returns "MulScalarBackward".
func (op *MulScalarOp) Name() string { return "MulScalarBackward" }

// Backward scales the gradient by the same scalar.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}
