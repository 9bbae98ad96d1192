// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/probe/internal/backend/cpu"
	"github.com/born-ml/probe/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option = internalcpu.Option

// WithDevice labels results with device instead of the host.
var WithDevice = internalcpu.WithDevice

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/probe/backend/cpu"
//	    "github.com/born-ml/probe/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	}
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}
