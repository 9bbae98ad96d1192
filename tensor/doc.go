// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides type-safe tensors for the probe engine.
//
// # Overview
//
// Tensors are generic over their element type and their backend:
//   - Tensor[T, B]: high-level tensor with autodiff support
//   - RawTensor: reference-counted storage with shape, dtype and device
//   - Backend: compute interface implemented by backend/cpu and the CUDA build
//   - Device: a device type and ordinal, parsed from "cpu", "cuda" or "cuda:N"
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/probe/backend/cpu"
//	    "github.com/born-ml/probe/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{1, 3}, backend)
//	    z := x.Add(y) // broadcast to [2, 3]
//	}
//
// # Broadcasting
//
// Element-wise operations follow NumPy rules: shapes are aligned from the
// right and dimensions of size 1 stretch to match.
//
// # Gradients
//
// Mark leaves with RequireGrad on a differentiable backend (see the autodiff
// package) and call Backward on a result. Gradients accumulate across calls:
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Full[float32](tensor.Shape{1}, 3, backend).RequireGrad()
//	y := x.Mul(x)
//	_ = y.Backward(nil)
//	x.Grad().Data() // [6]
//
// # Memory Reporting
//
// Every storage allocation and release can be observed process-wide with
// SetMemoryReporter. The monitor package builds on this.
package tensor
