package scenario_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/probe/internal/models/resnet"
	"github.com/born-ml/probe/internal/safetensors"
	"github.com/born-ml/probe/internal/scenario"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tiny = resnet.Config{Name: "tiny", Layers: [4]int{1, 1, 1, 1}, Width: 2}

// tinyWeights returns a SafeTensors image for tiny with three classes whose
// logits come out as fc.bias.
func tinyWeights(t *testing.T) []byte {
	t.Helper()
	tensors := make(map[string]safetensors.Tensor)
	for name, shape := range resnet.ParamShapes(tiny, 3) {
		n := 1
		for _, d := range shape {
			n *= d
		}
		data := make([]float32, n)
		if len(shape) == 1 && filepath.Ext(name) != ".running_mean" {
			for i := range data {
				data[i] = 1
			}
		}
		tensors[name] = safetensors.Tensor{Shape: shape, Data: data}
	}
	tensors["fc.bias"] = safetensors.Tensor{Shape: []int{3}, Data: []float32{0, 2, 1}}

	var buf bytes.Buffer
	require.NoError(t, safetensors.Write(&buf, tensors, nil))
	return buf.Bytes()
}

func dogJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := range 240 {
		for x := range 320 {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// fixtures serves /tiny/model.safetensors always and /dog.jpg when withImage.
func fixtures(t *testing.T, withImage bool) *httptest.Server {
	t.Helper()
	weights, dog := tinyWeights(t), dogJPEG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/tiny/model.safetensors", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(weights)
	})
	mux.HandleFunc("/dog.jpg", func(w http.ResponseWriter, r *http.Request) {
		if !withImage {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(dog)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func classifyRunner(t *testing.T, srv *httptest.Server) *scenario.Runner {
	t.Helper()
	dir := t.TempDir()
	r := runner()
	r.ModelConfig = tiny
	r.WeightsURL = srv.URL + "/tiny/model.safetensors"
	r.ImageURL = srv.URL + "/dog.jpg"
	r.ImageFile = filepath.Join(dir, "dog.jpg")
	r.CacheDir = filepath.Join(dir, "cache")
	return r
}

func TestClassify(t *testing.T) {
	r := classifyRunner(t, fixtures(t, true))

	res, err := r.Classify(context.Background(), "cpu")
	require.NoError(t, err)

	assert.Equal(t, tensor.HostDevice, res.Device)
	assert.Equal(t, tensor.Shape{1, 3, 224, 224}, res.Batch.Shape())
	assert.Equal(t, tensor.Shape{1, 3}, res.Logits.Shape())
	assert.Equal(t, 1, res.Class)
	assert.Equal(t, filepath.Join(r.CacheDir, "tiny", "model.safetensors"), res.WeightsPath)
	assert.FileExists(t, res.ImagePath)
	assert.FileExists(t, res.WeightsPath)
}

func TestClassify_DownloadsFail(t *testing.T) {
	r := classifyRunner(t, fixtures(t, false))

	_, err := r.Classify(context.Background(), "cpu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "fallback")

	_, statErr := os.Stat(r.ImageFile)
	assert.True(t, os.IsNotExist(statErr), "no image file is left to read")
}

func TestClassify_UnknownDevice(t *testing.T) {
	r := classifyRunner(t, fixtures(t, true))
	n := countAllocs(t, func() {
		_, err := r.Classify(context.Background(), "bogus-device")
		assert.ErrorIs(t, err, tensor.ErrUnknownDevice)
	})
	assert.Zero(t, n)
	_, statErr := os.Stat(r.ImageFile)
	assert.True(t, os.IsNotExist(statErr), "nothing is downloaded")
}

func TestClassifyResult_CloseOnHost(t *testing.T) {
	r := classifyRunner(t, fixtures(t, true))
	res, err := r.Classify(context.Background(), "cpu")
	require.NoError(t, err)
	require.NoError(t, res.Close())
	require.NoError(t, res.Close())
}

func TestClassify_UnknownArch(t *testing.T) {
	r := runner()
	r.Arch = "alexnet"
	_, err := r.Classify(context.Background(), "cpu")
	assert.ErrorIs(t, err, resnet.ErrUnknownArch)
}
