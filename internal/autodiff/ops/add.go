package ops

import "github.com/born-ml/probe/internal/tensor"

// AddOp represents output = a + b.
type AddOp struct{ base }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Name returns "AddBackward".
func (op *AddOp) Name() string { return "AddBackward" }

// Backward passes the gradient through to both inputs.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape()),
		reduceBroadcast(outputGrad, op.inputs[1].Shape()),
	}
}

// SubOp represents output = a - b.
type SubOp struct{ base }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{base{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Name returns "SubBackward".
func (op *SubOp) Name() string { return "SubBackward" }

// Backward computes grad_a = grad, grad_b = -grad.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape()),
		reduceBroadcast(backend.MulScalar(outputGrad, -1), op.inputs[1].Shape()),
	}
}

// AddScalarOp represents output = x + s.
type AddScalarOp struct{ base }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{base{inputs: []*tensor.RawTensor{x}, output: output}}
}

// Name returns "AddScalarBackward".
func (op *AddScalarOp) Name() string { return "AddScalarBackward" }

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}
