package cpu

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
)

func apply[T tensor.DType](op binaryOp, x, y T) T {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	default:
		return x * y
	}
}

// binaryKernel computes out = x op y. The same-shape path is a flat loop;
// broadcasting walks the output with an odometer over per-operand strides.
func binaryKernel[T tensor.DType](out, x, y []T, xs, ys, outShape tensor.Shape, broadcast bool, op binaryOp) {
	if !broadcast {
		switch op {
		case opAdd:
			for i := range out {
				out[i] = x[i] + y[i]
			}
		case opSub:
			for i := range out {
				out[i] = x[i] - y[i]
			}
		default:
			for i := range out {
				out[i] = x[i] * y[i]
			}
		}
		return
	}

	xStride := tensor.BroadcastStrides(xs, outShape)
	yStride := tensor.BroadcastStrides(ys, outShape)
	idx := make([]int, len(outShape))
	xi, yi := 0, 0
	for i := range out {
		out[i] = apply(op, x[xi], y[yi])
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			xi += xStride[d]
			yi += yStride[d]
			if idx[d] < outShape[d] {
				break
			}
			xi -= xStride[d] * outShape[d]
			yi -= yStride[d] * outShape[d]
			idx[d] = 0
		}
	}
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.unary("add_scalar", x, func(v float64) float64 { return v + s })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x, func(v float64) float64 { return v * s })
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		relu(result.AsFloat32(), x.AsFloat32())
	case tensor.Float64:
		relu(result.AsFloat64(), x.AsFloat64())
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}
	return result
}

func relu[T tensor.DType](out, in []T) {
	for i, v := range in {
		if v > 0 {
			out[i] = v
		}
	}
}

func (cpu *CPUBackend) unary(name string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		out, in := result.AsFloat32(), x.AsFloat32()
		for i, v := range in {
			out[i] = float32(f(float64(v)))
		}
	case tensor.Float64:
		out, in := result.AsFloat64(), x.AsFloat64()
		for i, v := range in {
			out[i] = f(v)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}
	return result
}
