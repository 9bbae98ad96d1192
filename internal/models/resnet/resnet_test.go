package resnet_test

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/probe/internal/backend/cpu"
	"github.com/born-ml/probe/internal/models/resnet"
	"github.com/born-ml/probe/internal/safetensors"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tiny = resnet.Config{Name: "tiny", Layers: [4]int{1, 1, 1, 1}, Width: 2}

const tinyClasses = 3

// weights builds a parameter set for cfg. Conv and fc weights come from
// value, batch norms get gamma=1, beta=beta, mean=0, var=1 and fc.bias is
// [0.5, -1, 2].
func weights(cfg resnet.Config, beta float32, value func() float32) map[string]safetensors.Tensor {
	out := make(map[string]safetensors.Tensor)
	for name, shape := range resnet.ParamShapes(cfg, tinyClasses) {
		n := 1
		for _, d := range shape {
			n *= d
		}
		data := make([]float32, n)
		var fill func() float32
		switch {
		case strings.HasSuffix(name, ".running_var"):
			fill = func() float32 { return 1 }
		case strings.HasSuffix(name, ".running_mean"):
			fill = func() float32 { return 0 }
		case strings.HasSuffix(name, ".bias"):
			fill = func() float32 { return beta }
		case len(shape) == 1:
			fill = func() float32 { return 1 }
		default:
			fill = value
		}
		for i := range data {
			data[i] = fill()
		}
		out[name] = safetensors.Tensor{Shape: shape, Data: data}
	}
	out["fc.bias"] = safetensors.Tensor{Shape: []int{tinyClasses}, Data: []float32{0.5, -1, 2}}
	return out
}

func save(t *testing.T, tensors map[string]safetensors.Tensor) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, safetensors.Write(&buf, tensors, map[string]string{"format": "pt"}))
	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func input(t *testing.T, b *cpu.CPUBackend, value func() float32) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	data := make([]float32, 3*32*32)
	for i := range data {
		data[i] = value()
	}
	x, err := tensor.FromSlice(data, tensor.Shape{1, 3, 32, 32}, b)
	require.NoError(t, err)
	return x
}

func TestConfigFor(t *testing.T) {
	cfg, err := resnet.ConfigFor(" ResNet50 ")
	require.NoError(t, err)
	assert.True(t, cfg.Bottleneck)
	assert.Equal(t, [4]int{3, 4, 6, 3}, cfg.Layers)
	assert.Equal(t, 2048, cfg.Features())

	cfg, err = resnet.ConfigFor("resnet18")
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Features())

	_, err = resnet.ConfigFor("vgg16")
	assert.ErrorIs(t, err, resnet.ErrUnknownArch)
	assert.Equal(t, []string{"resnet101", "resnet152", "resnet18", "resnet34", "resnet50"}, resnet.Archs())
}

func TestHubURL(t *testing.T) {
	url, err := resnet.HubURL(resnet.DefaultArch)
	require.NoError(t, err)
	assert.Equal(t, "https://huggingface.co/timm/resnet50.tv_in1k/resolve/main/model.safetensors", url)

	_, err = resnet.HubURL("nope")
	assert.ErrorIs(t, err, resnet.ErrUnknownArch)
}

func TestParamShapes(t *testing.T) {
	r50, _ := resnet.ConfigFor("resnet50")
	shapes := resnet.ParamShapes(r50, 1000)
	assert.Len(t, shapes, 267)
	assert.Equal(t, []int{64, 3, 7, 7}, shapes["conv1.weight"])
	assert.Equal(t, []int{64, 64, 1, 1}, shapes["layer1.0.conv1.weight"])
	assert.Equal(t, []int{256, 64, 1, 1}, shapes["layer1.0.downsample.0.weight"])
	assert.Equal(t, []int{128, 128, 3, 3}, shapes["layer2.0.conv2.weight"])
	assert.Equal(t, []int{512, 256, 1, 1}, shapes["layer2.0.downsample.0.weight"])
	assert.Equal(t, []int{2048, 512, 1, 1}, shapes["layer4.2.conv3.weight"])
	assert.Equal(t, []int{1000, 2048}, shapes["fc.weight"])
	assert.NotContains(t, shapes, "layer1.1.downsample.0.weight")

	r18, _ := resnet.ConfigFor("resnet18")
	shapes = resnet.ParamShapes(r18, 1000)
	assert.Len(t, shapes, 102)
	assert.NotContains(t, shapes, "layer1.0.downsample.0.weight")
	assert.Equal(t, []int{128, 64, 1, 1}, shapes["layer2.0.downsample.0.weight"])
	assert.Equal(t, []int{128}, shapes["layer2.0.downsample.1.running_var"])
}

func TestLoad_ZeroWeightsYieldBias(t *testing.T) {
	b := cpu.New()
	tensors := weights(tiny, 0, func() float32 { return 0 })
	tensors["bn1.num_batches_tracked"] = safetensors.Tensor{Shape: []int{1}, Data: []float32{100}}
	path := save(t, tensors)

	m, err := resnet.LoadConfig(tiny, path, b)
	require.NoError(t, err)
	assert.Equal(t, tinyClasses, m.NumClasses())
	assert.Equal(t, "tiny", m.Config().Name)

	params := m.Parameters()
	require.Len(t, params, 26, "12 folded convs with bias plus fc")
	assert.Equal(t, "conv1.weight", params[0].Name())
	assert.Equal(t, "bn1.bias", params[1].Name())
	assert.Equal(t, "fc.bias", params[len(params)-1].Name())

	logits := m.Forward(input(t, b, func() float32 { return 1 }))
	assert.Equal(t, tensor.Shape{1, tinyClasses}, logits.Shape())
	assert.Equal(t, []float32{0.5, -1, 2}, logits.Data())
}

func TestLoad_FoldedBiasFlowsThroughBlocks(t *testing.T) {
	b := cpu.New()
	tensors := weights(tiny, 1, func() float32 { return 0 })
	tensors["fc.weight"] = safetensors.Tensor{Shape: []int{tinyClasses, 16}, Data: ones(tinyClasses * 16)}
	tensors["fc.bias"] = safetensors.Tensor{Shape: []int{tinyClasses}, Data: []float32{0, 1, 2}}

	m, err := resnet.LoadConfig(tiny, save(t, tensors), b)
	require.NoError(t, err)

	// Every block ends with relu(1 + 1) = 2, so each pooled feature is 2.
	logits := m.Forward(input(t, b, func() float32 { return 0.5 }))
	assert.InDeltaSlice(t, []float32{32, 33, 34}, logits.Data(), 1e-5)
	assert.Equal(t, 2, logits.ArgMax())
}

func TestModel_To(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	value := func() float32 { return rng.Float32() - 0.5 }

	src := cpu.New()
	m, err := resnet.LoadConfig(tiny, save(t, weights(tiny, 0.1, value)), src)
	require.NoError(t, err)

	dst := cpu.New(cpu.WithDevice(tensor.MustParseDevice("cuda:0")))
	moved := resnet.To(m, dst)
	assert.Equal(t, dst, moved.Backend())

	x := input(t, src, value)
	want := m.Forward(x)
	got := moved.Forward(tensor.To(x, dst))
	assert.Equal(t, tensor.MustParseDevice("cuda:0"), got.Device())
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-6)
}

func TestLoad_Errors(t *testing.T) {
	b := cpu.New()

	_, err := resnet.Load("vgg16", "unused", b)
	require.ErrorIs(t, err, resnet.ErrUnknownArch)

	_, err = resnet.LoadConfig(tiny, filepath.Join(t.TempDir(), "absent.safetensors"), b)
	require.Error(t, err)

	tensors := weights(tiny, 0, func() float32 { return 0 })
	delete(tensors, "layer2.0.downsample.1.running_var")
	_, err = resnet.LoadConfig(tiny, save(t, tensors), b)
	require.ErrorIs(t, err, resnet.ErrMissingParam)
	assert.Contains(t, err.Error(), "layer2.0.downsample.1.running_var")

	tensors = weights(tiny, 0, func() float32 { return 0 })
	tensors["layer1.0.conv2.weight"] = safetensors.Tensor{Shape: []int{2, 2, 1, 1}, Data: make([]float32, 4)}
	_, err = resnet.LoadConfig(tiny, save(t, tensors), b)
	require.ErrorIs(t, err, resnet.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "layer1.0.conv2.weight")

	tensors = weights(tiny, 0, func() float32 { return 0 })
	delete(tensors, "fc.bias")
	_, err = resnet.LoadConfig(tiny, save(t, tensors), b)
	require.ErrorIs(t, err, resnet.ErrMissingParam)
}

func ones(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
