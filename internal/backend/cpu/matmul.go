package cpu

import (
	"fmt"

	"github.com/born-ml/probe/internal/parallel"
	"github.com/born-ml/probe/internal/tensor"
)

// MatMul performs 2-D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %dD and %dD", len(as), len(bs)))
	}
	if as[1] != bs[0] {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", as, bs))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	m, k, n := as[0], as[1], bs[1]
	result := tensor.MustNewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)

	switch a.DType() {
	case tensor.Float32:
		matmul(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, cpu.par)
	case tensor.Float64:
		matmul(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n, cpu.par)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}
	return result
}

// matmul uses the i-k-j loop order so the innermost loop walks rows of b and c.
// Rows of c are independent and split across workers.
func matmul[T tensor.DType](c, a, b []T, m, k, n int, cfg parallel.Config) {
	parallel.ForRange(m, func(start, end int) {
		for i := start; i < end; i++ {
			row := c[i*n : (i+1)*n]
			for p := 0; p < k; p++ {
				av := a[i*k+p]
				if av == 0 {
					continue
				}
				brow := b[p*n : (p+1)*n]
				for j := range row {
					row[j] += av * brow[j]
				}
			}
		}
	}, cfg)
}
