package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations and panic on
// programming errors such as incompatible shapes.
//
// Implementations:
//   - cpu: pure Go kernels
//   - cuda: cuBLAS-backed kernels (build tag cuda)
//
// Decorators:
//   - autodiff: records operations for backpropagation
//   - monitor: reports operator enter/exit events
type Backend interface {
	// Element-wise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Scalar operations.
	AddScalar(x *RawTensor, s float64) *RawTensor
	MulScalar(x *RawTensor, s float64) *RawTensor

	// MatMul multiplies 2-D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Convolution and pooling over [N, C, H, W] inputs.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor
	GlobalAvgPool2D(input *RawTensor) *RawTensor // [N, C, H, W] -> [N, C]

	ReLU(x *RawTensor) *RawTensor

	// Shape operations.
	Reshape(x *RawTensor, newShape Shape) *RawTensor
	Transpose(x *RawTensor) *RawTensor // 2-D only
	Unsqueeze(x *RawTensor, dim int) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}

// GradBackend is implemented by backends that can backpropagate.
type GradBackend interface {
	Backend

	// TrackLeaf registers a leaf tensor; accumulate is called with the
	// leaf's gradient after every backward pass that reaches it.
	TrackLeaf(leaf *RawTensor, accumulate func(grad *RawTensor))

	// Backward propagates seed (the gradient of output) through the recorded
	// operations and releases the recorded graph.
	Backward(output, seed *RawTensor) error
}
