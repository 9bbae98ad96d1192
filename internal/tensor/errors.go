package tensor

import "errors"

var (
	// ErrUnknownDevice is returned when a device string cannot be resolved.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrShapeMismatch is returned when two shapes are incompatible.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrNoGrad is returned by Backward when the tensor does not require grad.
	ErrNoGrad = errors.New("tensor does not require grad and has no grad_fn")

	// ErrNotDifferentiable is returned by Backward when the backend cannot backpropagate.
	ErrNotDifferentiable = errors.New("backend does not support backward")
)
