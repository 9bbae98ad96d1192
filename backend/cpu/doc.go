// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col algorithm for convolutions
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting
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
//	    y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	    z := x.Add(y)
//	}
//
// # Performance
//
// Matrix multiplication and convolution split their output rows or channels
// across worker goroutines; small problems run on the calling goroutine.
//
// For NVIDIA GPUs, build with -tags cuda and select the device by name through
// the probe CLI or the internal backend registry.
//
// # Thread Safety
//
// The CPU backend holds no mutable state and is safe for concurrent use.
package cpu
