package ops

import "github.com/born-ml/probe/internal/tensor"

// ReshapeOp represents a reshape (or unsqueeze) of x. The gradient is reshaped
// back to the input shape.
type ReshapeOp struct {
	base
	name string
}

// NewReshapeOp creates a ReshapeOp reported as "ViewBackward".
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{base: base{inputs: []*tensor.RawTensor{x}, output: output}, name: "ViewBackward"}
}

// NewUnsqueezeOp creates a ReshapeOp reported as "UnsqueezeBackward".
func NewUnsqueezeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{base: base{inputs: []*tensor.RawTensor{x}, output: output}, name: "UnsqueezeBackward"}
}

// Name returns the backward function name.
func (op *ReshapeOp) Name() string { return op.name }

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inputs[0].Shape())}
}
