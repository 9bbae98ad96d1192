package tensor_test

import (
	"testing"

	"github.com/born-ml/probe/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(tensor.Shape{2, 3}))
	assert.NoError(t, s.Validate())
	assert.Error(t, tensor.Shape{2, -1}.Validate())
	assert.Equal(t, 1, tensor.Shape{}.NumElements())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      tensor.Shape
		want      tensor.Shape
		broadcast bool
	}{
		{"same", tensor.Shape{3, 5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false},
		{"column", tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, true},
		{"rank", tensor.Shape{5}, tensor.Shape{2, 3, 5}, tensor.Shape{2, 3, 5}, true},
		{"outer", tensor.Shape{3, 1}, tensor.Shape{1, 4}, tensor.Shape{3, 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := tensor.BroadcastShapes(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}

	_, _, err := tensor.BroadcastShapes(tensor.Shape{3, 4}, tensor.Shape{3, 5})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestBroadcastIndex(t *testing.T) {
	out := tensor.Shape{2, 3}
	// Column operand [2, 1]: index follows the row.
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1}, indices(out, tensor.Shape{2, 1}))
	// Row operand [3]: index follows the column.
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, indices(out, tensor.Shape{3}))
}

func indices(out, in tensor.Shape) []int {
	res := make([]int, out.NumElements())
	for i := range res {
		res[i] = tensor.BroadcastIndex(i, out, in)
	}
	return res
}

func TestBroadcastStrides(t *testing.T) {
	out := tensor.Shape{2, 3, 4}
	assert.Equal(t, []int{0, 1, 0}, tensor.BroadcastStrides(tensor.Shape{3, 1}, out))
	assert.Equal(t, []int{12, 4, 1}, tensor.BroadcastStrides(out, out))
	assert.Equal(t, []int{0, 0, 1}, tensor.BroadcastStrides(tensor.Shape{4}, out))
}
