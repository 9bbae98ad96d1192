package tensor

// wrap builds the result of an op. The result requires grad when any input
// does and the backend can backpropagate.
func (t *Tensor[T, B]) wrap(raw *RawTensor, inputs ...*Tensor[T, B]) *Tensor[T, B] {
	out := New[T, B](raw, t.backend)
	if _, ok := any(t.backend).(GradBackend); !ok {
		return out
	}
	for _, in := range inputs {
		if in.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	return out
}

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{3, 1}, backend)
//	b := tensor.Ones[float32](Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5]
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Add(t.raw, other.raw), t, other)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Sub(t.raw, other.raw), t, other)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.Mul(t.raw, other.raw), t, other)
}

// AddScalar adds s to every element.
func (t *Tensor[T, B]) AddScalar(s T) *Tensor[T, B] {
	return t.wrap(t.backend.AddScalar(t.raw, float64(s)), t)
}

// MulScalar multiplies every element by s.
func (t *Tensor[T, B]) MulScalar(s T) *Tensor[T, B] {
	return t.wrap(t.backend.MulScalar(t.raw, float64(s)), t)
}

// MatMul performs 2-D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.wrap(t.backend.MatMul(t.raw, other.raw), t, other)
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return t.wrap(t.backend.ReLU(t.raw), t)
}

// Reshape returns a tensor with the same data but different shape.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	return t.wrap(t.backend.Reshape(t.raw, Shape(newShape)), t)
}

// Unsqueeze inserts a dimension of size 1 at dim (negative dims count from the end).
//
//	x := tensor.Zeros[float32](Shape{3, 224, 224}, backend)
//	batch := x.Unsqueeze(0) // Shape: [1, 3, 224, 224]
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	return t.wrap(t.backend.Unsqueeze(t.raw, dim), t)
}

// T transposes a 2-D tensor.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	return t.wrap(t.backend.Transpose(t.raw), t)
}

// Conv2D convolves a [N, C_in, H, W] input with a [C_out, C_in, K_h, K_w] kernel.
func (t *Tensor[T, B]) Conv2D(kernel *Tensor[T, B], stride, padding int) *Tensor[T, B] {
	return t.wrap(t.backend.Conv2D(t.raw, kernel.raw, stride, padding), t, kernel)
}

// MaxPool2D applies max pooling over the spatial dimensions of a [N, C, H, W] input.
func (t *Tensor[T, B]) MaxPool2D(kernelSize, stride, padding int) *Tensor[T, B] {
	return t.wrap(t.backend.MaxPool2D(t.raw, kernelSize, stride, padding), t)
}

// GlobalAvgPool2D averages each channel plane: [N, C, H, W] -> [N, C].
func (t *Tensor[T, B]) GlobalAvgPool2D() *Tensor[T, B] {
	return t.wrap(t.backend.GlobalAvgPool2D(t.raw), t)
}

// ArgMax returns the flat index of the largest element.
func (t *Tensor[T, B]) ArgMax() int {
	data := t.Data()
	best := 0
	for i, v := range data {
		if v > data[best] {
			best = i
		}
	}
	return best
}
