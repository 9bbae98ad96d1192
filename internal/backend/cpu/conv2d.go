package cpu

import (
	"fmt"

	"github.com/born-ml/probe/internal/parallel"
	"github.com/born-ml/probe/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
//	H_out = (H + 2*padding - K_h) / stride + 1
//	W_out = (W + 2*padding - K_w) / stride + 1
//
// Each image is unfolded into a [C_in*K_h*K_w, H_out*W_out] column matrix and
// multiplied by the kernel viewed as [C_out, C_in*K_h*K_w]. Output channels
// are split across workers.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d or padding %d", stride, padding))
	}

	g := convGeometry{
		n: inputShape[0], cIn: inputShape[1], h: inputShape[2], w: inputShape[3],
		cOut: kernelShape[0], kh: kernelShape[2], kw: kernelShape[3],
		stride: stride, padding: padding,
	}
	if g.cIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", g.cIn, kernelShape[1]))
	}
	g.hOut = (g.h+2*padding-g.kh)/stride + 1
	g.wOut = (g.w+2*padding-g.kw)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.hOut, g.wOut))
	}

	output := tensor.MustNewRaw(tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		conv2d(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.par)
	case tensor.Float64:
		conv2d(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), g, cpu.par)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}
	return output
}

type convGeometry struct {
	n, cIn, h, w    int
	cOut, kh, kw    int
	hOut, wOut      int
	stride, padding int
}

func conv2d[T tensor.DType](out, in, kernel []T, g convGeometry, cfg parallel.Config) {
	k := g.cIn * g.kh * g.kw
	p := g.hOut * g.wOut
	col := make([]T, k*p)

	for n := 0; n < g.n; n++ {
		img := in[n*g.cIn*g.h*g.w : (n+1)*g.cIn*g.h*g.w]
		im2col(col, img, g)

		dst := out[n*g.cOut*p : (n+1)*g.cOut*p]
		parallel.ForRange(g.cOut, func(start, end int) {
			for c := start; c < end; c++ {
				row := dst[c*p : (c+1)*p]
				weights := kernel[c*k : (c+1)*k]
				for kk, wv := range weights {
					if wv == 0 {
						continue
					}
					src := col[kk*p : (kk+1)*p]
					for j := range row {
						row[j] += wv * src[j]
					}
				}
			}
		}, cfg)
	}
}

// im2col unfolds one [C, H, W] image into col laid out as [C*K_h*K_w, H_out*W_out].
// Out-of-bounds (padding) positions are zero.
func im2col[T tensor.DType](col, img []T, g convGeometry) {
	p := g.hOut * g.wOut
	row := 0
	for c := 0; c < g.cIn; c++ {
		plane := img[c*g.h*g.w : (c+1)*g.h*g.w]
		for ky := 0; ky < g.kh; ky++ {
			for kx := 0; kx < g.kw; kx++ {
				dst := col[row*p : (row+1)*p]
				idx := 0
				for oy := 0; oy < g.hOut; oy++ {
					y := oy*g.stride - g.padding + ky
					for ox := 0; ox < g.wOut; ox++ {
						x := ox*g.stride - g.padding + kx
						if y >= 0 && y < g.h && x >= 0 && x < g.w {
							dst[idx] = plane[y*g.w+x]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}
