package tensor_test

import (
	"sync"
	"testing"

	"github.com/born-ml/probe/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	events []tensor.MemoryEvent
}

func (s *memorySink) ReportMemory(ev tensor.MemoryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// forBuffer returns the events for one buffer, ignoring GC cleanups of
// unrelated tensors.
func (s *memorySink) forBuffer(id uint64) []tensor.MemoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tensor.MemoryEvent
	for _, ev := range s.events {
		if ev.BufferID == id {
			out = append(out, ev)
		}
	}
	return out
}

func TestRawTensor_ViewSharesBuffer(t *testing.T) {
	r, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.HostDevice)
	require.NoError(t, err)
	assert.Equal(t, 24, r.ByteSize())
	assert.True(t, r.IsUnique())

	v := r.View(tensor.Shape{6})
	assert.Equal(t, r.ID(), v.ID())
	assert.False(t, r.IsUnique())

	v.AsFloat32()[4] = 7
	assert.Equal(t, float32(7), r.AsFloat32()[4])

	assert.Panics(t, func() { r.View(tensor.Shape{5}) })
}

func TestRawTensor_CopyIsDeep(t *testing.T) {
	r, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float64, tensor.HostDevice)
	require.NoError(t, err)
	copy(r.AsFloat64(), []float64{1, 2, 3})

	cuda := tensor.Device{Type: tensor.CUDA}
	c := r.Copy(cuda)
	assert.NotEqual(t, r.ID(), c.ID())
	assert.Equal(t, cuda, c.Device())
	assert.Equal(t, []float64{1, 2, 3}, c.Float64s())

	c.AsFloat64()[0] = 9
	assert.Equal(t, 1.0, r.AsFloat64()[0])
}

func TestMemoryReporter(t *testing.T) {
	sink := &memorySink{}
	restore := tensor.SetMemoryReporter(sink)
	defer restore()

	r, err := tensor.NewRaw(tensor.Shape{4}, tensor.Float32, tensor.HostDevice)
	require.NoError(t, err)
	v := r.View(tensor.Shape{2, 2})

	r.Release()
	require.Len(t, sink.forBuffer(r.ID()), 1, "still referenced by the view")
	v.Release()

	events := sink.forBuffer(r.ID())
	require.Len(t, events, 2)
	assert.Equal(t, int64(16), events[0].Size)
	assert.Equal(t, int64(-16), events[1].Size)
	assert.Equal(t, tensor.HostDevice, events[0].Device)
	assert.Equal(t, events[0].TotalAllocated, events[0].TotalReserved)
	assert.Equal(t, events[0].TotalAllocated-16, events[1].TotalAllocated)
}

func TestSetMemoryReporter_Restore(t *testing.T) {
	first := &memorySink{}
	restoreFirst := tensor.SetMemoryReporter(first)
	second := &memorySink{}
	restoreSecond := tensor.SetMemoryReporter(second)

	r := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.HostDevice)
	assert.Len(t, second.forBuffer(r.ID()), 1)
	assert.Empty(t, first.forBuffer(r.ID()))

	restoreSecond()
	r.Release()
	assert.Len(t, first.forBuffer(r.ID()), 1)
	restoreFirst()
}
