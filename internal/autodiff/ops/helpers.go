package ops

import (
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

// reduceBroadcast sums grad down to target, undoing a broadcast from the
// forward pass.
//
// Example:
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (summed along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad
	}

	result := tensor.MustNewRaw(target.Clone(), grad.DType(), grad.Device())
	gradShape := grad.Shape()
	switch grad.DType() {
	case tensor.Float32:
		sumInto(result.AsFloat32(), grad.AsFloat32(), gradShape, target)
	case tensor.Float64:
		sumInto(result.AsFloat64(), grad.AsFloat64(), gradShape, target)
	default:
		panic(fmt.Sprintf("reduceBroadcast: unsupported dtype %s", grad.DType()))
	}
	return result
}

func sumInto[T tensor.DType](dst, src []T, srcShape, dstShape tensor.Shape) {
	for i, v := range src {
		dst[tensor.BroadcastIndex(i, srcShape, dstShape)] += v
	}
}
