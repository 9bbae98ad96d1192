package ops

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

// ReLUOp represents output = max(0, x).
//
// Backward: grad_x = outputGrad where x > 0, else 0.
type ReLUOp struct{ base }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{base{inputs: []*tensor.RawTensor{x}, output: output}}
}

// Name returns "ReluBackward".
func (op *ReLUOp) Name() string { return "ReluBackward" }

// Backward masks the gradient with the sign of the input.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	grad := tensor.MustNewRaw(x.Shape(), x.DType(), outputGrad.Device())
	switch x.DType() {
	case tensor.Float32:
		mask(grad.AsFloat32(), outputGrad.AsFloat32(), x.AsFloat32())
	case tensor.Float64:
		mask(grad.AsFloat64(), outputGrad.AsFloat64(), x.AsFloat64())
	default:
		panic(fmt.Sprintf("relu backward: unsupported dtype %s", x.DType()))
	}
	return []*tensor.RawTensor{grad}
}

func mask[T tensor.DType](dst, grad, x []T) {
	for i, v := range x {
		if v > 0 {
			dst[i] = grad[i]
		}
	}
}
