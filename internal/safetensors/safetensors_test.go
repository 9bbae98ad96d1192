package safetensors_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/probe/internal/safetensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, tensors map[string]safetensors.Tensor, meta map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, safetensors.Write(&buf, tensors, meta))
	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestOpen_RoundTrip(t *testing.T) {
	path := writeFile(t, map[string]safetensors.Tensor{
		"fc.weight": {Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
		"fc.bias":   {Shape: []int{2}, Data: []float32{-1, 1}},
	}, map[string]string{"format": "pt"})

	f, err := safetensors.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	assert.Equal(t, []string{"fc.bias", "fc.weight"}, f.Names())
	assert.Equal(t, "pt", f.Metadata()["format"])

	info, err := f.Info("fc.weight")
	require.NoError(t, err)
	assert.Equal(t, safetensors.F32, info.DType)
	assert.Equal(t, 6, info.NumElements())

	data, shape, err := f.Float32("fc.weight")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, shape)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, data)

	_, _, err = f.Float32("missing")
	assert.ErrorIs(t, err, safetensors.ErrNotFound)
}

// build assembles a file by hand so other dtypes can be exercised.
func build(t *testing.T, header string, body []byte) []byte {
	t.Helper()
	out := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	out = append(out, header...)
	return append(out, body...)
}

func TestParse_ConvertsDTypes(t *testing.T) {
	var body []byte
	body = binary.LittleEndian.AppendUint64(body, math.Float64bits(2.5))
	body = binary.LittleEndian.AppendUint16(body, 0x3c00) // 1.0 in F16
	body = binary.LittleEndian.AppendUint16(body, 0xc000) // -2.0 in F16
	body = binary.LittleEndian.AppendUint16(body, 0x3f80) // 1.0 in BF16

	header := `{"d":{"dtype":"F64","shape":[1],"data_offsets":[0,8]},` +
		`"h":{"dtype":"F16","shape":[2],"data_offsets":[8,12]},` +
		`"b":{"dtype":"BF16","shape":[1],"data_offsets":[12,14]}}`
	f, err := safetensors.Parse(build(t, header, body))
	require.NoError(t, err)

	d, _, err := f.Float32("d")
	require.NoError(t, err)
	assert.Equal(t, []float32{2.5}, d)

	h, _, err := f.Float32("h")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -2}, h)

	b, _, err := f.Float32("b")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, b)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"short":       {1, 2, 3},
		"header size": binary.LittleEndian.AppendUint64(nil, 1<<40),
		"bad json":    build(t, `{nope`, nil),
		"offsets":     build(t, `{"x":{"dtype":"F32","shape":[2],"data_offsets":[0,8]}}`, make([]byte, 4)),
		"size":        build(t, `{"x":{"dtype":"F32","shape":[3],"data_offsets":[0,8]}}`, make([]byte, 8)),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := safetensors.Parse(data)
			assert.ErrorIs(t, err, safetensors.ErrInvalidHeader)
		})
	}
}

func TestParse_UnsupportedDType(t *testing.T) {
	f, err := safetensors.Parse(build(t, `{"i":{"dtype":"I64","shape":[1],"data_offsets":[0,8]}}`, make([]byte, 8)))
	require.NoError(t, err)
	_, _, err = f.Float32("i")
	assert.ErrorIs(t, err, safetensors.ErrUnsupportedDType)
}

func TestOpen_Errors(t *testing.T) {
	_, err := safetensors.Open(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)

	tiny := filepath.Join(t.TempDir(), "tiny")
	require.NoError(t, os.WriteFile(tiny, []byte{1}, 0o600))
	_, err = safetensors.Open(tiny)
	assert.ErrorIs(t, err, safetensors.ErrInvalidHeader)
}

func TestWrite_ShapeMismatch(t *testing.T) {
	err := safetensors.Write(&bytes.Buffer{}, map[string]safetensors.Tensor{
		"x": {Shape: []int{3}, Data: []float32{1}},
	}, nil)
	assert.Error(t, err)
}
