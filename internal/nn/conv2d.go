package nn

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

// Conv2D is a 2-D convolution with square stride and padding.
//
// Input [N, C_in, H, W], weight [C_out, C_in, K_h, K_w], optional bias
// [C_out] broadcast over the spatial dimensions.
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int

	weight *Parameter[B]
	bias   *Parameter[B] // nil without bias
}

// NewConv2D builds a convolution from loaded parameters. bias may be nil.
// Panics on malformed shapes or a non-positive stride.
func NewConv2D[B tensor.Backend](weight, bias *Parameter[B], stride, padding int) *Conv2D[B] {
	ws := weight.Tensor().Shape()
	if len(ws) != 4 {
		panic(fmt.Sprintf("conv2d: %s must be 4-D, got %v", weight.Name(), ws))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}
	if bias != nil {
		if bs := bias.Tensor().Shape(); len(bs) != 1 || bs[0] != ws[0] {
			panic(fmt.Sprintf("conv2d: %s is %v, want [%d]", bias.Name(), bs, ws[0]))
		}
	}
	return &Conv2D[B]{
		inChannels:  ws[1],
		outChannels: ws[0],
		kernelSize:  [2]int{ws[2], ws[3]},
		stride:      stride,
		padding:     padding,
		weight:      weight,
		bias:        bias,
	}
}

// Forward convolves input and adds the bias.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	out := input.Conv2D(c.weight.Tensor(), c.stride, c.padding)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// Parameters returns the weight and, when present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] { return c.weight }

// Bias returns the bias parameter or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] { return c.bias }

func (c *Conv2D[B]) InChannels() int    { return c.inChannels }
func (c *Conv2D[B]) OutChannels() int   { return c.outChannels }
func (c *Conv2D[B]) KernelSize() [2]int { return c.kernelSize }
func (c *Conv2D[B]) Stride() int        { return c.stride }
func (c *Conv2D[B]) Padding() int       { return c.padding }

// OutputSize returns the spatial size produced for an inputH x inputW input.
func (c *Conv2D[B]) OutputSize(inputH, inputW int) [2]int {
	return [2]int{
		(inputH+2*c.padding-c.kernelSize[0])/c.stride + 1,
		(inputW+2*c.padding-c.kernelSize[1])/c.stride + 1,
	}
}

func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize[0], c.kernelSize[1], c.stride, c.padding, c.bias != nil)
}

// Conv2DTo copies c onto dst.
func Conv2DTo[B, D tensor.Backend](c *Conv2D[B], dst D) *Conv2D[D] {
	if c == nil {
		return nil
	}
	return NewConv2D(ParameterTo(c.weight, dst), ParameterTo(c.bias, dst), c.stride, c.padding)
}
