package nn

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

// MaxPool2D takes the maximum over kernelSize x kernelSize windows.
// Padded positions never win.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
}

// NewMaxPool2D panics on a non-positive kernel or stride, or a padding
// larger than half the kernel.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int) *MaxPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if padding < 0 || 2*padding > kernelSize {
		panic(fmt.Sprintf("maxpool2d: invalid padding %d for kernel %d", padding, kernelSize))
	}
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, padding: padding}
}

func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.MaxPool2D(m.kernelSize, m.stride, m.padding)
}

func (m *MaxPool2D[B]) Parameters() []*Parameter[B] { return nil }

// GlobalAvgPool2D averages each channel: [N, C, H, W] -> [N, C].
type GlobalAvgPool2D[B tensor.Backend] struct{}

func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{}
}

func (g *GlobalAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.GlobalAvgPool2D()
}

func (g *GlobalAvgPool2D[B]) Parameters() []*Parameter[B] { return nil }

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }
