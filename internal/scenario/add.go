package scenario

import (
	"context"
	"fmt"

	"github.com/born-ml/probe/internal/tensor"
)

// Sizes of AddFixed and AddChained.
const (
	FixedLength     = 100
	FixedIterations = 10
)

// AddResult is the state left behind by an addition procedure. Its tensors
// stay usable until Close.
type AddResult struct {
	Device      tensor.Device
	Left, Right *Vector
	Out         *Vector // last left + right
	Doubled     *Vector // last (left + right) + (left + right); chained only
	Iterations  int

	backend tensor.Backend
}

// Close releases the device resources behind the result's tensors. It is
// safe to call more than once.
func (res *AddResult) Close() error {
	b := res.backend
	res.backend = nil
	return release(b)
}

// AddFixed adds two zero vectors of FixedLength on the host and
// backpropagates a zero seed through the sum, FixedIterations times.
func (r *Runner) AddFixed(ctx context.Context) (*AddResult, error) {
	return r.add(ctx, tensor.HostDevice, FixedLength, FixedIterations, false)
}

// AddChained is AddFixed with a second addition of the sum to itself, so
// every backward pass runs through two addition nodes.
func (r *Runner) AddChained(ctx context.Context) (*AddResult, error) {
	return r.add(ctx, tensor.HostDevice, FixedLength, FixedIterations, true)
}

// AddOnDevice runs the AddFixed loop on the device named by device, with the
// Runner's Length and Iterations. Unknown or unavailable devices fail before
// any buffer is allocated.
func (r *Runner) AddOnDevice(ctx context.Context, device string) (*AddResult, error) {
	dev, err := tensor.ParseDevice(device)
	if err != nil {
		return nil, err
	}
	return r.add(ctx, dev, r.Length, r.Iterations, false)
}

func (r *Runner) add(ctx context.Context, dev tensor.Device, length, iterations int, chained bool) (_ *AddResult, err error) {
	if length <= 0 || iterations <= 0 {
		return nil, fmt.Errorf("scenario: length %d and iterations %d must be positive", length, iterations)
	}
	inner, err := r.open(dev)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = release(inner)
		}
	}()
	b := r.grad(inner)

	log := r.Log.With("device", dev.String(), "backend", b.Name(), "chained", chained)
	log.Debug("allocating buffers", "length", length)

	shape := tensor.Shape{length}
	res := &AddResult{
		Device:  dev,
		Left:    tensor.Zeros[float32](shape, b).RequireGrad(),
		Right:   tensor.Zeros[float32](shape, b).RequireGrad(),
		backend: inner,
	}
	seed := tensor.Zeros[float32](shape, b)

	for i := range iterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Out = res.Left.Add(res.Right)
		target := res.Out
		if chained {
			res.Doubled = res.Out.Add(res.Out)
			target = res.Doubled
		}
		if err := target.Backward(seed); err != nil {
			return nil, fmt.Errorf("iteration %d: backward: %w", i, err)
		}
		res.Iterations++
	}

	log.Info("addition complete", "iterations", res.Iterations, "tape_ops", b.Tape().NumOps())
	return res, nil
}
