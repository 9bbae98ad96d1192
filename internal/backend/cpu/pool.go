package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/probe/internal/parallel"
	"github.com/born-ml/probe/internal/tensor"
)

// MaxPool2D performs 2D max pooling with implicit -inf padding.
//
// Input shape:  [N, C, H, W]
// Output shape: [N, C, H_out, W_out]
//
//	H_out = (H + 2*padding - kernelSize) / stride + 1
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d or stride %d", kernelSize, stride))
	}
	if padding < 0 || 2*padding > kernelSize {
		panic(fmt.Sprintf("maxpool2d: padding %d must be in [0, kernel/2]", padding))
	}

	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	hOut := (h+2*padding-kernelSize)/stride + 1
	wOut := (w+2*padding-kernelSize)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid output dimensions %dx%d (kernel=%d, stride=%d, input=%dx%d)",
			hOut, wOut, kernelSize, stride, h, w))
	}

	output := tensor.MustNewRaw(tensor.Shape{n, c, hOut, wOut}, input.DType(), cpu.device)
	g := poolGeometry{h: h, w: w, hOut: hOut, wOut: wOut, k: kernelSize, stride: stride, padding: padding}

	switch input.DType() {
	case tensor.Float32:
		maxPool(output.AsFloat32(), input.AsFloat32(), n*c, g, cpu.par)
	case tensor.Float64:
		maxPool(output.AsFloat64(), input.AsFloat64(), n*c, g, cpu.par)
	default:
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %s", input.DType()))
	}
	return output
}

type poolGeometry struct {
	h, w, hOut, wOut   int
	k, stride, padding int
}

func maxPool[T tensor.DType](out, in []T, planes int, g poolGeometry, cfg parallel.Config) {
	parallel.For(planes, func(pl int) {
		src := in[pl*g.h*g.w : (pl+1)*g.h*g.w]
		dst := out[pl*g.hOut*g.wOut : (pl+1)*g.hOut*g.wOut]
		for oy := 0; oy < g.hOut; oy++ {
			for ox := 0; ox < g.wOut; ox++ {
				best := T(math.Inf(-1))
				for ky := 0; ky < g.k; ky++ {
					y := oy*g.stride - g.padding + ky
					if y < 0 || y >= g.h {
						continue
					}
					for kx := 0; kx < g.k; kx++ {
						x := ox*g.stride - g.padding + kx
						if x < 0 || x >= g.w {
							continue
						}
						if v := src[y*g.w+x]; v > best {
							best = v
						}
					}
				}
				dst[oy*g.wOut+ox] = best
			}
		}
	}, cfg)
}

// GlobalAvgPool2D averages each [H, W] plane: [N, C, H, W] -> [N, C].
func (cpu *CPUBackend) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("avgpool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	n, c, hw := shape[0], shape[1], shape[2]*shape[3]
	output := tensor.MustNewRaw(tensor.Shape{n, c}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		meanPlanes(output.AsFloat32(), input.AsFloat32(), hw)
	case tensor.Float64:
		meanPlanes(output.AsFloat64(), input.AsFloat64(), hw)
	default:
		panic(fmt.Sprintf("avgpool2d: unsupported dtype %s", input.DType()))
	}
	return output
}

func meanPlanes[T tensor.DType](out, in []T, hw int) {
	for i := range out {
		var sum float64
		for _, v := range in[i*hw : (i+1)*hw] {
			sum += float64(v)
		}
		out[i] = T(sum / float64(hw))
	}
}
