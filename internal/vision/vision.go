// Package vision decodes images and turns them into normalized CHW tensors.
package vision

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"

	"github.com/born-ml/probe/internal/tensor"
)

var ErrNilImage = errors.New("vision: nil image")

// Decode reads an image file. JPEG and PNG are supported.
func Decode(path string) (image.Image, error) {
	//nolint:gosec // G304: image path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeReader(f)
}

// DecodeReader decodes an image from r.
func DecodeReader(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Resize scales img so that its shorter side equals size, keeping the aspect
// ratio, with bilinear interpolation.
func Resize(img image.Image, size int) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	if size <= 0 {
		return nil, fmt.Errorf("vision: resize size must be positive, got %d", size)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("vision: empty image %dx%d", w, h)
	}

	newW, newH := size, size
	if w <= h {
		newH = size * h / w
	} else {
		newW = size * w / h
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// CenterCrop cuts a size x size square from the middle of img.
func CenterCrop(img image.Image, size int) (image.Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	b := img.Bounds()
	if size <= 0 || size > b.Dx() || size > b.Dy() {
		return nil, fmt.Errorf("vision: crop %d does not fit in %dx%d image", size, b.Dx(), b.Dy())
	}
	top := int(math.Round(float64(b.Dy()-size) / 2))
	left := int(math.Round(float64(b.Dx()-size) / 2))
	rect := image.Rect(left, top, left+size, top+size).Add(b.Min)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}

// ToCHW converts img to planar RGB values in [0, 1], laid out [3, H, W].
func ToCHW(img image.Image) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			out[i] = float32(r>>8) / 255
			out[plane+i] = float32(g>>8) / 255
			out[2*plane+i] = float32(bl>>8) / 255
		}
	}
	return out
}

// Normalize applies (v - mean[c]) / std[c] in place to CHW data.
func Normalize(chw []float32, mean, std [3]float32) {
	plane := len(chw) / 3
	for c := range 3 {
		for i := c * plane; i < (c+1)*plane; i++ {
			chw[i] = (chw[i] - mean[c]) / std[c]
		}
	}
}

// Pipeline is the preprocessing applied before classification.
type Pipeline struct {
	ResizeTo int // shorter side after resizing
	CropSize int
	Mean     [3]float32
	Std      [3]float32
}

// ImageNet returns the standard evaluation preprocessing for ImageNet models.
func ImageNet() Pipeline {
	return Pipeline{
		ResizeTo: 256,
		CropSize: 224,
		Mean:     [3]float32{0.485, 0.456, 0.406},
		Std:      [3]float32{0.229, 0.224, 0.225},
	}
}

// Apply resizes, crops, converts and normalizes img. The returned shape is
// [3, CropSize, CropSize].
func (p Pipeline) Apply(img image.Image) ([]float32, tensor.Shape, error) {
	resized, err := Resize(img, p.ResizeTo)
	if err != nil {
		return nil, nil, err
	}
	cropped, err := CenterCrop(resized, p.CropSize)
	if err != nil {
		return nil, nil, err
	}
	data := ToCHW(cropped)
	Normalize(data, p.Mean, p.Std)
	return data, tensor.Shape{3, p.CropSize, p.CropSize}, nil
}

// ToTensor runs p on img and wraps the result in a tensor on backend.
func ToTensor[B tensor.Backend](p Pipeline, img image.Image, backend B) (*tensor.Tensor[float32, B], error) {
	data, shape, err := p.Apply(img)
	if err != nil {
		return nil, err
	}
	return tensor.FromSlice(data, shape, backend)
}
