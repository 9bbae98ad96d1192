package vision_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/probe/internal/backend/cpu"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/born-ml/probe/internal/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(40, 30, color.RGBA{200, 10, 10, 255}), nil))
	jpgPath := filepath.Join(dir, "dog.jpg")
	require.NoError(t, os.WriteFile(jpgPath, buf.Bytes(), 0o600))

	img, err := vision.Decode(jpgPath)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	buf.Reset()
	require.NoError(t, png.Encode(&buf, solid(5, 7, color.White)))
	img, err = vision.DecodeReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, 7, img.Bounds().Dy())

	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, err = vision.Decode(bad)
	assert.Error(t, err)

	_, err = vision.Decode(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestResize_ShorterSide(t *testing.T) {
	tests := []struct {
		w, h, size  int
		wantW, wantH int
	}{
		{640, 480, 256, 341, 256},
		{480, 640, 256, 256, 341},
		{300, 300, 256, 256, 256},
		{100, 50, 256, 512, 256},
	}
	for _, tt := range tests {
		out, err := vision.Resize(solid(tt.w, tt.h, color.Black), tt.size)
		require.NoError(t, err)
		assert.Equal(t, tt.wantW, out.Bounds().Dx())
		assert.Equal(t, tt.wantH, out.Bounds().Dy())
	}

	_, err := vision.Resize(nil, 256)
	assert.ErrorIs(t, err, vision.ErrNilImage)
	_, err = vision.Resize(solid(4, 4, color.Black), 0)
	assert.Error(t, err)
}

func TestCenterCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 5, 3))
	img.Set(2, 1, color.RGBA{255, 0, 0, 255})

	out, err := vision.CenterCrop(img, 1)
	require.NoError(t, err)
	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	_, err = vision.CenterCrop(img, 4)
	assert.Error(t, err)
	_, err = vision.CenterCrop(nil, 1)
	assert.ErrorIs(t, err, vision.ErrNilImage)
}

func TestToCHWAndNormalize(t *testing.T) {
	img := solid(2, 1, color.RGBA{255, 0, 51, 255})
	chw := vision.ToCHW(img)
	assert.InDeltaSlice(t, []float32{1, 1, 0, 0, 0.2, 0.2}, chw, 1e-6)

	vision.Normalize(chw, [3]float32{0.5, 0, 0.2}, [3]float32{0.5, 1, 0.1})
	assert.InDeltaSlice(t, []float32{1, 1, 0, 0, 0, 0}, chw, 1e-5)
}

func TestImageNet_Apply(t *testing.T) {
	p := vision.ImageNet()
	mid := color.RGBA{124, 116, 104, 255}

	data, shape, err := p.Apply(solid(320, 240, mid))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 224, 224}, shape)
	require.Len(t, data, 3*224*224)

	// Uniform input: every channel collapses to a single normalized value.
	for c, v := range []uint8{mid.R, mid.G, mid.B} {
		want := (float32(v)/255 - p.Mean[c]) / p.Std[c]
		assert.InDelta(t, want, data[c*224*224], 1e-4)
		assert.InDelta(t, want, data[(c+1)*224*224-1], 1e-4)
	}
}

func TestToTensor_Batch(t *testing.T) {
	backend := cpu.New()
	x, err := vision.ToTensor(vision.ImageNet(), solid(300, 260, color.Gray{128}), backend)
	require.NoError(t, err)

	batch := x.Unsqueeze(0)
	assert.Equal(t, tensor.Shape{1, 3, 224, 224}, batch.Shape())

	_, err = vision.ToTensor(vision.Pipeline{ResizeTo: 10, CropSize: 20}, solid(30, 30, color.Black), backend)
	assert.Error(t, err, "crop larger than the resized image")
}
