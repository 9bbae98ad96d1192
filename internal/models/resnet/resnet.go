package resnet

import (
	"github.com/born-ml/probe/internal/nn"
	"github.com/born-ml/probe/internal/tensor"
)

// block is a residual block. Every conv carries its folded batch norm as
// bias.
type block[B tensor.Backend] struct {
	convs      []*nn.Conv2D[B]
	downsample *nn.Conv2D[B] // nil when the shortcut is the identity
}

// Forward applies conv-relu for every conv but the last, adds the shortcut
// and applies the final ReLU.
func (b *block[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := x
	for i, c := range b.convs {
		out = c.Forward(out)
		if i < len(b.convs)-1 {
			out = out.ReLU()
		}
	}
	identity := x
	if b.downsample != nil {
		identity = b.downsample.Forward(x)
	}
	return out.Add(identity).ReLU()
}

func (b *block[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, c := range b.convs {
		params = append(params, c.Parameters()...)
	}
	if b.downsample != nil {
		params = append(params, b.downsample.Parameters()...)
	}
	return params
}

func blockTo[B, D tensor.Backend](b *block[B], dst D) *block[D] {
	out := &block[D]{downsample: nn.Conv2DTo(b.downsample, dst)}
	for _, c := range b.convs {
		out.convs = append(out.convs, nn.Conv2DTo(c, dst))
	}
	return out
}

// Model is a ResNet classifier ready for inference.
//
// Example:
//
//	model, err := resnet.Load("resnet50", "model.safetensors", cpu.New())
//	if err != nil {
//		return err
//	}
//	logits := model.Forward(batch) // [N, 1000]
type Model[B tensor.Backend] struct {
	cfg Config

	stem   *nn.Conv2D[B]
	blocks []*block[B] // all stages in forward order
	fc     *nn.Linear[B]

	net *nn.Sequential[B]
}

func newModel[B tensor.Backend](cfg Config, stem *nn.Conv2D[B], blocks []*block[B], fc *nn.Linear[B]) *Model[B] {
	net := nn.NewSequential[B](stem, nn.NewReLU[B](), nn.NewMaxPool2D[B](3, 2, 1))
	for _, b := range blocks {
		net.Add(b)
	}
	net.Add(nn.NewGlobalAvgPool2D[B]())
	net.Add(fc)
	return &Model[B]{cfg: cfg, stem: stem, blocks: blocks, fc: fc, net: net}
}

// Config returns the architecture of m.
func (m *Model[B]) Config() Config {
	return m.cfg
}

// NumClasses returns the width of the logits.
func (m *Model[B]) NumClasses() int {
	return m.fc.OutFeatures()
}

// Backend returns the backend holding the parameters.
func (m *Model[B]) Backend() B {
	return m.stem.Weight().Tensor().Backend()
}

// Forward maps a [N, 3, H, W] batch to [N, NumClasses] logits.
func (m *Model[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.net.Forward(x)
}

// Parameters returns every parameter in forward order.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return m.net.Parameters()
}

// To copies every parameter of m onto dst.
func To[B, D tensor.Backend](m *Model[B], dst D) *Model[D] {
	blocks := make([]*block[D], 0, len(m.blocks))
	for _, b := range m.blocks {
		blocks = append(blocks, blockTo(b, dst))
	}
	return newModel(m.cfg, nn.Conv2DTo(m.stem, dst), blocks, nn.LinearTo(m.fc, dst))
}
