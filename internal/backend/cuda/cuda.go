//go:build cuda

// Package cuda implements a host-staged CUDA backend.
//
// Tensor storage stays in host memory labeled with the CUDA device. Add and
// MatMul on float32 data are executed by cuBLAS with staging copies; every
// other operation reuses the CPU kernels.
package cuda

import (
	"fmt"
	"sync"

	"github.com/born-ml/probe/internal/backend/cpu"
	"github.com/born-ml/probe/internal/backend/cuda/native"
	"github.com/born-ml/probe/internal/tensor"
)

// Backend runs selected kernels on a CUDA device.
type Backend struct {
	*cpu.CPUBackend

	device tensor.Device
	mu     sync.Mutex
	blas   *native.Blas
}

// Available reports whether at least one CUDA device is visible.
func Available() bool {
	count, err := native.Devices()
	return err == nil && count > 0
}

// New opens device index.
func New(index int) (*Backend, error) {
	count, err := native.Devices()
	if err != nil {
		return nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if index < 0 || index >= count {
		return nil, fmt.Errorf("cuda device %d not present (%d detected)", index, count)
	}
	if err := native.Use(index); err != nil {
		return nil, fmt.Errorf("cuda set device %d: %w", index, err)
	}
	blas, err := native.NewBlas()
	if err != nil {
		return nil, fmt.Errorf("cublas init failed: %w", err)
	}

	device := tensor.Device{Type: tensor.CUDA, Index: index}
	return &Backend{
		CPUBackend: cpu.New(cpu.WithDevice(device)),
		device:     device,
		blas:       blas,
	}, nil
}

// Close releases the cuBLAS handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blas.Close()
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CUDA"
}

// Device returns the compute device.
func (b *Backend) Device() tensor.Device {
	return b.device
}

// Add runs same-shape float32 additions through cublasSaxpy.
func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 || !x.Shape().Equal(y.Shape()) {
		return b.CPUBackend.Add(x, y)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dx := upload(x.AsFloat32())
	defer dx.Free()
	dy := upload(y.AsFloat32())
	defer dy.Free()

	must(b.blas.Axpy(1, dx, dy))

	out := tensor.MustNewRaw(x.Shape(), tensor.Float32, b.device)
	must(dy.Download(out.AsFloat32()))
	return out
}

// MatMul runs float32 matrix products through cublasSgemm.
func (b *Backend) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	xs, ys := x.Shape(), y.Shape()
	if x.DType() != tensor.Float32 || y.DType() != tensor.Float32 || len(xs) != 2 || len(ys) != 2 || xs[1] != ys[0] {
		return b.CPUBackend.MatMul(x, y)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m, k, n := xs[0], xs[1], ys[1]
	out := tensor.MustNewRaw(tensor.Shape{m, n}, tensor.Float32, b.device)

	da := upload(x.AsFloat32())
	defer da.Free()
	db := upload(y.AsFloat32())
	defer db.Free()
	dc, err := native.Alloc(m * n)
	must(err)
	defer dc.Free()

	// Row-major C = A@B is column-major C^T = B^T@A^T.
	must(b.blas.Gemm(n, m, k, db, da, dc))
	must(dc.Download(out.AsFloat32()))
	return out
}

func upload(data []float32) native.Buffer {
	buf, err := native.Upload(data)
	must(err)
	return buf
}

func must(err error) {
	if err != nil {
		panic(cudaExecutionError(err))
	}
}

func cudaExecutionError(err error) error {
	return fmt.Errorf("cuda execution failed: %w", err)
}
