package scenario

import (
	"context"
	"path/filepath"

	"github.com/born-ml/probe/internal/backend"
	"github.com/born-ml/probe/internal/backend/cpu"
	"github.com/born-ml/probe/internal/config"
	"github.com/born-ml/probe/internal/models/resnet"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/born-ml/probe/internal/vision"
)

// ClassifyResult holds the tensors of one classification run.
type ClassifyResult struct {
	Device      tensor.Device // where the forward pass ran
	Batch       *tensor.Tensor[float32, tensor.Backend]
	Logits      *tensor.Tensor[float32, tensor.Backend]
	Class       int // arg-max of Logits
	ImagePath   string
	WeightsPath string

	backend tensor.Backend // accelerator to release, nil on the host
}

// Close releases the accelerator behind Batch and Logits, if any. It is safe
// to call more than once.
func (res *ClassifyResult) Close() error {
	b := res.backend
	res.backend = nil
	return release(b)
}

// Classify loads a pretrained ResNet, downloads the sample image, preprocesses
// it into a [1, 3, 224, 224] batch and runs one forward pass.
//
// When device names an accelerator that is available, the model and batch are
// moved there first; otherwise both stay on the host.
func (r *Runner) Classify(ctx context.Context, device string) (*ClassifyResult, error) {
	dev, err := tensor.ParseDevice(device)
	if err != nil {
		return nil, err
	}

	cfg, err := r.modelConfig()
	if err != nil {
		return nil, err
	}
	log := r.Log.With("device", dev.String(), "arch", cfg.Name)

	weights, err := r.weights(ctx, cfg)
	if err != nil {
		return nil, err
	}
	host := r.observe(cpu.New())
	model, err := resnet.LoadConfig(cfg, weights, host)
	if err != nil {
		return nil, err
	}
	log.Debug("model loaded", "weights", weights, "classes", model.NumClasses())

	if err := r.Downloader.Download(ctx, r.ImageURL, r.ImageFile); err != nil {
		return nil, err
	}
	img, err := vision.Decode(r.ImageFile)
	if err != nil {
		return nil, err
	}
	x, err := vision.ToTensor(vision.ImageNet(), img, host)
	if err != nil {
		return nil, err
	}
	batch := x.Unsqueeze(0)

	ran := tensor.HostDevice
	var accel tensor.Backend
	if dev.Type.IsAccelerator() {
		if backend.Available(dev) {
			if accel, err = r.open(dev); err != nil {
				return nil, err
			}
			model = resnet.To(model, accel)
			batch = tensor.To(batch, accel)
			ran = dev
		} else {
			log.Warn("accelerator unavailable, running on host")
		}
	}

	logits := model.Forward(batch)
	class := logits.ArgMax()
	log.Debug("forward complete", "ran_on", ran.String(), "logits", logits.Shape(), "class", class)

	return &ClassifyResult{
		Device:      ran,
		Batch:       batch,
		Logits:      logits,
		Class:       class,
		ImagePath:   r.ImageFile,
		WeightsPath: weights,
		backend:     accel,
	}, nil
}

func (r *Runner) modelConfig() (resnet.Config, error) {
	if r.ModelConfig.Name != "" {
		return r.ModelConfig, nil
	}
	return resnet.ConfigFor(r.Arch)
}

// weights returns the local path of the model weights, downloading them into
// <cache>/<arch>/ on first use.
func (r *Runner) weights(ctx context.Context, cfg resnet.Config) (string, error) {
	url := r.WeightsURL
	if url == "" {
		hub, err := resnet.HubURL(cfg.Name)
		if err != nil {
			return "", err
		}
		url = hub
	}
	dir, err := config.Config{CacheDir: r.CacheDir}.ResolvedCacheDir()
	if err != nil {
		return "", err
	}
	return r.Downloader.Cached(ctx, url, filepath.Join(dir, cfg.Name))
}
