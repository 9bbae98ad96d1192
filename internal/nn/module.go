// Package nn provides inference building blocks for networks whose weights
// come from a checkpoint: Conv2D, Linear, pooling, ReLU and Sequential.
//
// Layers are constructed from already loaded parameters; there is no random
// initialization and no training state.
package nn

import (
	"github.com/born-ml/probe/internal/tensor"
)

// Module is a network component mapping one float32 tensor to another.
//
// Modules compose:
//
//	net := nn.NewSequential[B](
//	    conv,
//	    nn.NewReLU[B](),
//	    nn.NewMaxPool2D[B](3, 2, 1),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the module output for input.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the module's parameters, nested modules included.
	// Modules without parameters return nil.
	Parameters() []*Parameter[B]
}

// NumParams sums the element counts of params.
func NumParams[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}
