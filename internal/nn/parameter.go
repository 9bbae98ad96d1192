package nn

import (
	"github.com/born-ml/probe/internal/tensor"
)

// Parameter is a named network weight.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter wraps t under name (e.g. "layer1.0.conv1.weight").
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// ParameterTo copies p onto dst under the same name. A nil p stays nil.
func ParameterTo[B, D tensor.Backend](p *Parameter[B], dst D) *Parameter[D] {
	if p == nil {
		return nil
	}
	return NewParameter(p.name, tensor.To(p.tensor, dst))
}
