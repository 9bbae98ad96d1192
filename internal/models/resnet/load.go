package resnet

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/probe/internal/nn"
	"github.com/born-ml/probe/internal/safetensors"
	"github.com/born-ml/probe/internal/tensor"
)

// Load reads a torchvision-layout ResNet from a SafeTensors file onto backend.
// The number of classes is taken from fc.bias. Tensors the network does not
// use (num_batches_tracked, for instance) are ignored.
func Load[B tensor.Backend](arch, path string, backend B) (*Model[B], error) {
	cfg, err := ConfigFor(arch)
	if err != nil {
		return nil, err
	}
	return LoadConfig(cfg, path, backend)
}

// LoadConfig is Load for an explicit configuration.
func LoadConfig[B tensor.Backend](cfg Config, path string, backend B) (*Model[B], error) {
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resnet: %w", err)
	}
	defer func() { _ = f.Close() }()
	return fromFile(cfg, f, backend)
}

func fromFile[B tensor.Backend](cfg Config, f *safetensors.File, backend B) (*Model[B], error) {
	info, err := f.Info("fc.bias")
	if err != nil {
		return nil, fmt.Errorf("%w: fc.bias", ErrMissingParam)
	}
	if len(info.Shape) != 1 || info.Shape[0] <= 0 {
		return nil, fmt.Errorf("%w: fc.bias is %v", ErrShapeMismatch, info.Shape)
	}

	l := &loader{file: f, shapes: ParamShapes(cfg, info.Shape[0])}

	stem, stages := cfg.layout()
	stemConv, err := loadConvBN(l, stem, backend)
	if err != nil {
		return nil, err
	}
	var blocks []*block[B]
	for _, specs := range stages {
		for _, spec := range specs {
			b := &block[B]{}
			for _, cs := range spec.convs {
				c, err := loadConvBN(l, cs, backend)
				if err != nil {
					return nil, err
				}
				b.convs = append(b.convs, c)
			}
			if spec.downsample != nil {
				if b.downsample, err = loadConvBN(l, *spec.downsample, backend); err != nil {
					return nil, err
				}
			}
			blocks = append(blocks, b)
		}
	}

	weight, err := loadParam(l, "fc.weight", backend)
	if err != nil {
		return nil, err
	}
	bias, err := loadParam(l, "fc.bias", backend)
	if err != nil {
		return nil, err
	}
	return newModel(cfg, stemConv, blocks, nn.NewLinear(weight, bias)), nil
}

// loader reads parameters and checks them against the expected shapes.
type loader struct {
	file   *safetensors.File
	shapes map[string][]int
}

func (l *loader) read(name string) ([]float32, error) {
	want, ok := l.shapes[name]
	if !ok {
		return nil, fmt.Errorf("resnet: %s is not a parameter of this architecture", name)
	}
	data, shape, err := l.file.Float32(name)
	switch {
	case errors.Is(err, safetensors.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
	case err != nil:
		return nil, fmt.Errorf("resnet: %s: %w", name, err)
	}
	if !slices.Equal(shape, want) {
		return nil, fmt.Errorf("%w: %s is %v, want %v", ErrShapeMismatch, name, shape, want)
	}
	return data, nil
}

// loadParam reads name as a parameter on backend.
func loadParam[B tensor.Backend](l *loader, name string, backend B) (*nn.Parameter[B], error) {
	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	t, err := tensor.FromSlice(data, tensor.Shape(l.shapes[name]), backend)
	if err != nil {
		return nil, err
	}
	return nn.NewParameter(name, t), nil
}

// loadConvBN reads a bias-free conv and its batch norm and returns the
// folded convolution.
func loadConvBN[B tensor.Backend](l *loader, spec convSpec, backend B) (*nn.Conv2D[B], error) {
	weight, err := l.read(spec.prefix + ".weight")
	if err != nil {
		return nil, err
	}
	var bn [4][]float32
	for i, suffix := range []string{".weight", ".bias", ".running_mean", ".running_var"} {
		if bn[i], err = l.read(spec.bn + suffix); err != nil {
			return nil, err
		}
	}

	bias := foldBatchNorm(weight, bn[0], bn[1], bn[2], bn[3], bnEps)

	w, err := tensor.FromSlice(weight, tensor.Shape{spec.out, spec.in, spec.k, spec.k}, backend)
	if err != nil {
		return nil, err
	}
	b, err := tensor.FromSlice(bias, tensor.Shape{spec.out}, backend)
	if err != nil {
		return nil, err
	}
	return nn.NewConv2D(nn.NewParameter(spec.prefix+".weight", w), nn.NewParameter(spec.bn+".bias", b), spec.stride, spec.padding), nil
}

// foldBatchNorm rewrites an inference-mode batch norm following a bias-free
// convolution as a per-channel scale of weight plus the returned bias:
//
//	scale = gamma / sqrt(var + eps)
//	w'    = w * scale
//	b'    = beta - mean * scale
//
// weight is modified in place; its length must be a multiple of len(gamma).
func foldBatchNorm(weight, gamma, beta, mean, variance []float32, eps float64) []float32 {
	channels := len(gamma)
	per := len(weight) / channels
	bias := make([]float32, channels)
	for c := range channels {
		scale := float64(gamma[c]) / math.Sqrt(float64(variance[c])+eps)
		for i := c * per; i < (c+1)*per; i++ {
			weight[i] = float32(float64(weight[i]) * scale)
		}
		bias[c] = float32(float64(beta[c]) - float64(mean[c])*scale)
	}
	return bias
}
