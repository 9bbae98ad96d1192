package monitor

import "github.com/born-ml/probe/internal/tensor"

// Backend decorates a tensor.Backend and reports every operator in the
// Function domain.
type Backend struct {
	inner tensor.Backend
	m     *Monitor
}

// Wrap returns inner decorated with operator reporting.
func (m *Monitor) Wrap(inner tensor.Backend) *Backend {
	return &Backend{inner: inner, m: m}
}

// Inner returns the wrapped backend.
func (b *Backend) Inner() tensor.Backend { return b.inner }

func (b *Backend) Name() string { return b.inner.Name() }

func (b *Backend) Device() tensor.Device { return b.inner.Device() }

func (b *Backend) trace(name string, f func() *tensor.RawTensor) *tensor.RawTensor {
	b.m.enter(Function, name, -1)
	defer b.m.exit(Function, name, -1)
	return f()
}

func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.trace("add", func() *tensor.RawTensor { return b.inner.Add(x, y) })
}

func (b *Backend) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.trace("sub", func() *tensor.RawTensor { return b.inner.Sub(x, y) })
}

func (b *Backend) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.trace("mul", func() *tensor.RawTensor { return b.inner.Mul(x, y) })
}

func (b *Backend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return b.trace("add_scalar", func() *tensor.RawTensor { return b.inner.AddScalar(x, s) })
}

func (b *Backend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	return b.trace("mul_scalar", func() *tensor.RawTensor { return b.inner.MulScalar(x, s) })
}

func (b *Backend) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.trace("mm", func() *tensor.RawTensor { return b.inner.MatMul(x, y) })
}

func (b *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.trace("conv2d", func() *tensor.RawTensor { return b.inner.Conv2D(input, kernel, stride, padding) })
}

func (b *Backend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return b.trace("max_pool2d", func() *tensor.RawTensor {
		return b.inner.MaxPool2D(input, kernelSize, stride, padding)
	})
}

func (b *Backend) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	return b.trace("adaptive_avg_pool2d", func() *tensor.RawTensor { return b.inner.GlobalAvgPool2D(input) })
}

func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return b.trace("relu", func() *tensor.RawTensor { return b.inner.ReLU(x) })
}

func (b *Backend) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return b.trace("view", func() *tensor.RawTensor { return b.inner.Reshape(x, newShape) })
}

func (b *Backend) Transpose(x *tensor.RawTensor) *tensor.RawTensor {
	return b.trace("t", func() *tensor.RawTensor { return b.inner.Transpose(x) })
}

func (b *Backend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.trace("unsqueeze", func() *tensor.RawTensor { return b.inner.Unsqueeze(x, dim) })
}
