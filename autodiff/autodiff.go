// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Backend wraps any tensor backend and records differentiable operations on
// a gradient tape. Only operations with an input that requires grad are
// recorded; Backward replays the tape in reverse, hands every leaf its
// gradient and clears the tape.
//
// Example:
//
//	import (
//	    "github.com/born-ml/probe/autodiff"
//	    "github.com/born-ml/probe/backend/cpu"
//	    "github.com/born-ml/probe/tensor"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//
//	    left := tensor.Zeros[float32](tensor.Shape{100}, backend).RequireGrad()
//	    right := tensor.Zeros[float32](tensor.Shape{100}, backend).RequireGrad()
//	    out := left.Add(right)
//
//	    seed := tensor.Zeros[float32](tensor.Shape{100}, backend)
//	    _ = out.Backward(seed)
//	    _ = left.Grad() // [100] zeros
//	}
package autodiff

import (
	"github.com/born-ml/probe/internal/autodiff"
	"github.com/born-ml/probe/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
//
// Example:
//
//	base := cpu.New()
//	backend := autodiff.New(base)
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// Hook observes backward functions as the tape runs them.
type Hook = autodiff.Hook
