// Package resnet implements inference for torchvision-layout ResNet image
// classifiers loaded from SafeTensors weights.
package resnet

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnknownArch is returned for architecture names ConfigFor does not know.
	ErrUnknownArch = errors.New("resnet: unknown architecture")

	// ErrMissingParam is returned when a weights file lacks a required tensor.
	ErrMissingParam = errors.New("resnet: missing parameter")

	// ErrShapeMismatch is returned when a stored tensor has an unexpected shape.
	ErrShapeMismatch = errors.New("resnet: parameter shape mismatch")
)

// DefaultArch is the architecture used when none is configured.
const DefaultArch = "resnet50"

// bnEps matches torch.nn.BatchNorm2d.
const bnEps = 1e-5

// Config describes a ResNet variant.
type Config struct {
	Name       string
	Bottleneck bool   // Bottleneck blocks (expansion 4) instead of basic blocks.
	Layers     [4]int // Blocks per stage.
	Width      int    // Stem output channels; stage i has Width<<i planes.
}

var configs = map[string]Config{
	"resnet18":  {Name: "resnet18", Layers: [4]int{2, 2, 2, 2}, Width: 64},
	"resnet34":  {Name: "resnet34", Layers: [4]int{3, 4, 6, 3}, Width: 64},
	"resnet50":  {Name: "resnet50", Bottleneck: true, Layers: [4]int{3, 4, 6, 3}, Width: 64},
	"resnet101": {Name: "resnet101", Bottleneck: true, Layers: [4]int{3, 4, 23, 3}, Width: 64},
	"resnet152": {Name: "resnet152", Bottleneck: true, Layers: [4]int{3, 8, 36, 3}, Width: 64},
}

// ConfigFor returns the configuration of a named architecture.
func ConfigFor(arch string) (Config, error) {
	cfg, ok := configs[strings.ToLower(strings.TrimSpace(arch))]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownArch, arch, strings.Join(Archs(), ", "))
	}
	return cfg, nil
}

// Archs lists the known architecture names.
func Archs() []string {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HubURL returns the default SafeTensors download URL for arch.
func HubURL(arch string) (string, error) {
	cfg, err := ConfigFor(arch)
	if err != nil {
		return "", err
	}
	return "https://huggingface.co/timm/" + cfg.Name + ".tv_in1k/resolve/main/model.safetensors", nil
}

func (c Config) expansion() int {
	if c.Bottleneck {
		return 4
	}
	return 1
}

// Features is the width of the pooled feature vector fed to the classifier.
func (c Config) Features() int {
	return (c.Width << 3) * c.expansion()
}

// convSpec is one convolution followed by batch norm.
type convSpec struct {
	prefix  string // conv name, e.g. "layer1.0.conv1"
	bn      string // batch norm name, e.g. "layer1.0.bn1"
	out, in int
	k       int
	stride  int
	padding int
}

type blockSpec struct {
	convs      []convSpec
	downsample *convSpec
}

// layout walks the network in forward order.
func (c Config) layout() (stem convSpec, stages [4][]blockSpec) {
	stem = convSpec{prefix: "conv1", bn: "bn1", out: c.Width, in: 3, k: 7, stride: 2, padding: 3}

	inplanes := c.Width
	exp := c.expansion()
	for s := range 4 {
		planes := c.Width << s
		for i := range c.Layers[s] {
			stride := 1
			if s > 0 && i == 0 {
				stride = 2
			}
			p := fmt.Sprintf("layer%d.%d.", s+1, i)
			var b blockSpec
			if c.Bottleneck {
				b.convs = []convSpec{
					{prefix: p + "conv1", bn: p + "bn1", out: planes, in: inplanes, k: 1, stride: 1},
					{prefix: p + "conv2", bn: p + "bn2", out: planes, in: planes, k: 3, stride: stride, padding: 1},
					{prefix: p + "conv3", bn: p + "bn3", out: planes * exp, in: planes, k: 1, stride: 1},
				}
			} else {
				b.convs = []convSpec{
					{prefix: p + "conv1", bn: p + "bn1", out: planes, in: inplanes, k: 3, stride: stride, padding: 1},
					{prefix: p + "conv2", bn: p + "bn2", out: planes, in: planes, k: 3, stride: 1, padding: 1},
				}
			}
			if stride != 1 || inplanes != planes*exp {
				b.downsample = &convSpec{
					prefix: p + "downsample.0", bn: p + "downsample.1",
					out: planes * exp, in: inplanes, k: 1, stride: stride,
				}
			}
			stages[s] = append(stages[s], b)
			inplanes = planes * exp
		}
	}
	return stem, stages
}

// ParamShapes returns every parameter the network reads, keyed by its
// torchvision state-dict name.
func ParamShapes(cfg Config, numClasses int) map[string][]int {
	shapes := make(map[string][]int)
	addConv := func(c convSpec) {
		shapes[c.prefix+".weight"] = []int{c.out, c.in, c.k, c.k}
		for _, suffix := range []string{".weight", ".bias", ".running_mean", ".running_var"} {
			shapes[c.bn+suffix] = []int{c.out}
		}
	}

	stem, stages := cfg.layout()
	addConv(stem)
	for _, blocks := range stages {
		for _, b := range blocks {
			for _, c := range b.convs {
				addConv(c)
			}
			if b.downsample != nil {
				addConv(*b.downsample)
			}
		}
	}
	shapes["fc.weight"] = []int{numClasses, cfg.Features()}
	shapes["fc.bias"] = []int{numClasses}
	return shapes
}
