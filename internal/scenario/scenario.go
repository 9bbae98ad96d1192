// Package scenario holds the demonstration procedures: repeated vector
// additions with backpropagation and a single-image ResNet classification.
package scenario

import (
	"io"

	"github.com/born-ml/probe/internal/autodiff"
	"github.com/born-ml/probe/internal/backend"
	"github.com/born-ml/probe/internal/config"
	"github.com/born-ml/probe/internal/fetch"
	"github.com/born-ml/probe/internal/logger"
	"github.com/born-ml/probe/internal/models/resnet"
	"github.com/born-ml/probe/internal/monitor"
	"github.com/born-ml/probe/internal/tensor"
)

// Runner executes the procedures. The zero value is not usable; call New.
type Runner struct {
	Log        logger.Logger
	Downloader *fetch.Downloader

	// Open resolves devices to backends; backend.Open by default.
	Open func(tensor.Device) (tensor.Backend, error)

	// Monitor, when set, observes every operator, backward function and
	// allocation of the procedures. Starting and stopping it is up to the caller.
	Monitor *monitor.Monitor

	// Sizes of AddOnDevice. AddFixed and AddChained always use
	// FixedLength and FixedIterations.
	Length     int
	Iterations int

	ImageURL   string
	ImageFile  string
	Arch       string
	WeightsURL string // derived from Arch when empty
	CacheDir   string

	// ModelConfig overrides Arch when its Name is set.
	ModelConfig resnet.Config
}

// New builds a Runner from cfg with defaults for everything cfg leaves unset.
func New(cfg config.Config, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		Log:        log,
		Downloader: fetch.New(log),
		Open:       backend.Open,
		Length:     config.IntOr(cfg.Length, config.DefaultLength),
		Iterations: config.IntOr(cfg.Iterations, config.DefaultIterations),
		ImageURL:   config.Or(cfg.ImageURL, config.DefaultImageURL),
		ImageFile:  config.Or(cfg.ImageFile, config.DefaultImageFile),
		Arch:       config.Or(cfg.Arch, resnet.DefaultArch),
		WeightsURL: cfg.WeightsURL,
		CacheDir:   cfg.CacheDir,
	}
}

// Grad is the differentiable backend the addition procedures run on.
type Grad = *autodiff.AutodiffBackend[tensor.Backend]

// Vector is a float32 tensor on a Grad backend.
type Vector = tensor.Tensor[float32, Grad]

// open resolves dev, decorating it with the monitor when one is set.
func (r *Runner) open(dev tensor.Device) (tensor.Backend, error) {
	open := r.Open
	if open == nil {
		open = backend.Open
	}
	b, err := open(dev)
	if err != nil {
		return nil, err
	}
	return r.observe(b), nil
}

func (r *Runner) observe(b tensor.Backend) tensor.Backend {
	if r.Monitor == nil {
		return b
	}
	return r.Monitor.Wrap(b)
}

func (r *Runner) grad(b tensor.Backend) Grad {
	g := autodiff.New(b)
	if r.Monitor != nil {
		g.SetHook(r.Monitor.BackwardHook())
	}
	return g
}

// release closes backends that hold device resources, looking through
// decorators. A nil backend is a no-op.
func release(b tensor.Backend) error {
	for b != nil {
		if c, ok := b.(io.Closer); ok {
			return c.Close()
		}
		w, ok := b.(interface{ Inner() tensor.Backend })
		if !ok {
			return nil
		}
		b = w.Inner()
	}
	return nil
}
