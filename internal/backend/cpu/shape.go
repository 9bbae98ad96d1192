package cpu

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

// Reshape returns a view of x with a new shape. One dimension may be -1 and
// is inferred from the element count.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape := newShape.Clone()
	infer := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d <= 0:
			panic(fmt.Sprintf("reshape: invalid dimension %d in %v", d, newShape))
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || x.NumElements()%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension of %v for %v", newShape, x.Shape()))
		}
		shape[infer] = x.NumElements() / known
	}
	if shape.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v into %v", x.Shape(), newShape))
	}
	return x.View(shape)
}

// Unsqueeze inserts a dimension of size 1 at dim. Negative dims count from the end
// of the output shape.
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return x.View(UnsqueezeShape(x.Shape(), dim))
}

// UnsqueezeShape returns shape with a 1 inserted at dim.
func UnsqueezeShape(shape tensor.Shape, dim int) tensor.Shape {
	rank := len(shape) + 1
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("unsqueeze: dim %d out of range for rank %d", dim, len(shape)))
	}
	out := make(tensor.Shape, 0, rank)
	out = append(out, shape[:dim]...)
	out = append(out, 1)
	return append(out, shape[dim:]...)
}

// Transpose swaps the two dimensions of a 2-D tensor.
func (cpu *CPUBackend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D tensor, got %dD", len(shape)))
	}
	rows, cols := shape[0], shape[1]
	result := tensor.MustNewRaw(tensor.Shape{cols, rows}, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		transpose(result.AsFloat32(), x.AsFloat32(), rows, cols)
	case tensor.Float64:
		transpose(result.AsFloat64(), x.AsFloat64(), rows, cols)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", x.DType()))
	}
	return result
}

func transpose[T tensor.DType](out, in []T, rows, cols int) {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = in[i*cols+j]
		}
	}
}
