package scenario_test

import (
	"context"
	"testing"

	"github.com/born-ml/probe/internal/backend/cpu"
	"github.com/born-ml/probe/internal/config"
	"github.com/born-ml/probe/internal/logger"
	"github.com/born-ml/probe/internal/monitor"
	"github.com/born-ml/probe/internal/scenario"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runner() *scenario.Runner {
	return scenario.New(config.Config{}, logger.Nop())
}

func assertZeroGrads(t *testing.T, res *scenario.AddResult) {
	t.Helper()
	for _, leaf := range []*scenario.Vector{res.Left, res.Right} {
		g := leaf.Grad()
		require.NotNil(t, g)
		assert.Equal(t, tensor.Shape{100}, g.Shape())
		assert.Equal(t, make([]float32, 100), g.Data())
	}
}

func TestNew_Defaults(t *testing.T) {
	r := runner()
	assert.Equal(t, 100, r.Length)
	assert.Equal(t, 10, r.Iterations)
	assert.Equal(t, "dog.jpg", r.ImageFile)
	assert.Equal(t, config.DefaultImageURL, r.ImageURL)
	assert.Equal(t, "resnet50", r.Arch)

	n := 3
	r = scenario.New(config.Config{Iterations: &n, Arch: "resnet18"}, nil)
	assert.Equal(t, 3, r.Iterations)
	assert.Equal(t, "resnet18", r.Arch)
}

func TestAddFixed(t *testing.T) {
	res, err := runner().AddFixed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tensor.HostDevice, res.Device)
	assert.Equal(t, 10, res.Iterations)
	assert.Equal(t, make([]float32, 100), res.Out.Data())
	assert.Nil(t, res.Doubled)
	assertZeroGrads(t, res)
}

func TestAddChained(t *testing.T) {
	res, err := runner().AddChained(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Doubled)
	sum := res.Out.Data()
	for i, v := range res.Doubled.Data() {
		assert.Equal(t, 2*sum[i], v)
	}
	assert.Equal(t, make([]float32, 100), res.Doubled.Data())
	assertZeroGrads(t, res)
}

func TestAddOnDevice(t *testing.T) {
	res, err := runner().AddOnDevice(context.Background(), "cpu")
	require.NoError(t, err)
	assertZeroGrads(t, res)

	_, err = runner().AddOnDevice(context.Background(), "tpu")
	assert.ErrorIs(t, err, tensor.ErrUnknownDevice)

	_, err = runner().AddOnDevice(context.Background(), "cpu:1")
	assert.ErrorIs(t, err, tensor.ErrUnknownDevice)
}

func TestAdd_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner().AddFixed(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdd_InvalidSizes(t *testing.T) {
	r := runner()
	r.Length = 0
	_, err := r.AddOnDevice(context.Background(), "cpu")
	assert.Error(t, err)
}

func TestAdd_FixedSizesIgnoreRunner(t *testing.T) {
	r := runner()
	r.Length, r.Iterations = 4, 3

	res, err := r.AddFixed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scenario.FixedIterations, res.Iterations)
	assert.Equal(t, tensor.Shape{scenario.FixedLength}, res.Out.Shape())

	res, err = r.AddChained(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scenario.FixedIterations, res.Iterations)

	res, err = r.AddOnDevice(context.Background(), "cpu")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, tensor.Shape{4}, res.Out.Shape())
}

// allocCounter counts allocation events reported by the tensor package.
type allocCounter struct{ n int }

func (c *allocCounter) ReportMemory(ev tensor.MemoryEvent) {
	if ev.Size > 0 {
		c.n++
	}
}

func countAllocs(t *testing.T, f func()) int {
	t.Helper()
	c := &allocCounter{}
	restore := tensor.SetMemoryReporter(c)
	defer restore()
	f()
	return c.n
}

func TestAddOnDevice_UnknownDeviceAllocatesNothing(t *testing.T) {
	r := runner()
	before := tensor.AllocatedBytes()
	n := countAllocs(t, func() {
		_, err := r.AddOnDevice(context.Background(), "bogus-device")
		assert.ErrorIs(t, err, tensor.ErrUnknownDevice)
	})
	assert.Zero(t, n)
	assert.LessOrEqual(t, tensor.AllocatedBytes(), before)

	n = countAllocs(t, func() {
		_, err := r.AddOnDevice(context.Background(), "cpu")
		require.NoError(t, err)
	})
	assert.Positive(t, n, "the counter sees a successful run")
}

// closingCPU is a host backend that records Close calls.
type closingCPU struct {
	*cpu.CPUBackend
	closes int
}

func (b *closingCPU) Close() error {
	b.closes++
	return nil
}

func TestAddResult_OwnsBackend(t *testing.T) {
	fake := &closingCPU{CPUBackend: cpu.New()}
	r := runner()
	r.Open = func(tensor.Device) (tensor.Backend, error) { return fake, nil }

	res, err := r.AddOnDevice(context.Background(), "cpu")
	require.NoError(t, err)
	assert.Zero(t, fake.closes, "the result still holds the backend")
	assert.Equal(t, make([]float32, 100), res.Left.Add(res.Right).Data())

	require.NoError(t, res.Close())
	require.NoError(t, res.Close())
	assert.Equal(t, 1, fake.closes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.AddFixed(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, fake.closes, "failed runs release the backend")
}

func TestAddChained_Monitored(t *testing.T) {
	m := monitor.New()
	require.NoError(t, m.EnableDomain(monitor.Function))
	require.NoError(t, m.EnableDomain(monitor.BackwardFunction))
	counts := map[string]int{}
	require.NoError(t, m.Subscribe(func(ev monitor.Event) {
		if ev.Site == monitor.Enter {
			counts[ev.Domain.String()+"/"+ev.Name]++
		}
	}))
	require.NoError(t, m.Start())
	defer func() { _ = m.Stop() }()

	r := runner()
	r.Iterations = 3
	r.Monitor = m
	_, err := r.AddChained(context.Background())
	require.NoError(t, err)

	fn := monitor.Function.String()
	bw := monitor.BackwardFunction.String()
	assert.Equal(t, 2*scenario.FixedIterations, counts[bw+"/AddBackward"], "two addition nodes per iteration")
	assert.GreaterOrEqual(t, counts[fn+"/add"], 2*scenario.FixedIterations)
}
