package nn

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

// Linear is a fully connected layer: y = x @ W^T + b.
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features] or nil
}

// NewLinear builds a layer from a [out, in] weight and an optional [out]
// bias. Panics on malformed shapes.
func NewLinear[B tensor.Backend](weight, bias *Parameter[B]) *Linear[B] {
	ws := weight.Tensor().Shape()
	if len(ws) != 2 {
		panic(fmt.Sprintf("linear: %s must be 2-D, got %v", weight.Name(), ws))
	}
	if bias != nil {
		if bs := bias.Tensor().Shape(); len(bs) != 1 || bs[0] != ws[0] {
			panic(fmt.Sprintf("linear: %s is %v, want [%d]", bias.Name(), bs, ws[0]))
		}
	}
	return &Linear[B]{inFeatures: ws[1], outFeatures: ws[0], weight: weight, bias: bias}
}

// Forward maps [batch, in_features] to [batch, out_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[1]))
	}

	out := input.MatMul(l.weight.Tensor().T())
	if l.bias != nil {
		out = out.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}
	return out
}

// Parameters returns the weight and, when present, the bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

func (l *Linear[B]) Weight() *Parameter[B] { return l.weight }
func (l *Linear[B]) Bias() *Parameter[B]   { return l.bias }
func (l *Linear[B]) InFeatures() int       { return l.inFeatures }
func (l *Linear[B]) OutFeatures() int      { return l.outFeatures }

// LinearTo copies l onto dst.
func LinearTo[B, D tensor.Backend](l *Linear[B], dst D) *Linear[D] {
	return NewLinear(ParameterTo(l.weight, dst), ParameterTo(l.bias, dst))
}
