// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package monitor reports tensor operators, backward functions and storage
// allocations to a single subscriber.
//
// Example:
//
//	m := monitor.New()
//	_ = m.EnableDomain(monitor.Function)
//	_ = m.EnableDomain(monitor.BackwardFunction)
//	_ = m.Subscribe(monitor.NewPrinter(os.Stdout).Handle)
//	_ = m.Start()
//	defer m.Stop()
//
//	backend := autodiff.New(m.Wrap(cpu.New()))
//	backend.SetHook(m.BackwardHook())
package monitor

import (
	"io"

	"github.com/born-ml/probe/internal/monitor"
)

// Monitor dispatches events of enabled domains to its subscriber.
type Monitor = monitor.Monitor

// Backend is a tensor backend decorated with operator reporting.
type Backend = monitor.Backend

// Domain selects a class of events.
type Domain = monitor.Domain

// Event domains.
const (
	Function         = monitor.Function
	BackwardFunction = monitor.BackwardFunction
	Memory           = monitor.Memory
)

type (
	Event    = monitor.Event
	MemEvent = monitor.MemEvent
	Frame    = monitor.Frame
	Callback = monitor.Callback
	Printer  = monitor.Printer
	Format   = monitor.Format
)

// MaxCallPath bounds Event.CallPath when call paths are enabled.
const MaxCallPath = monitor.MaxCallPath

// Printer formats.
const (
	Text = monitor.Text
	JSON = monitor.JSON
)

// Errors.
var (
	ErrDomainOutOfRange = monitor.ErrDomainOutOfRange
	ErrNilSubscriber    = monitor.ErrNilSubscriber
	ErrSubscriberExists = monitor.ErrSubscriberExists
	ErrInitFailed       = monitor.ErrInitFailed
	ErrNotStarted       = monitor.ErrNotStarted
)

// New creates a stopped monitor with no domains enabled.
func New() *Monitor {
	return monitor.New()
}

// NewPrinter creates a subscriber writing events to w.
func NewPrinter(w io.Writer, opts ...monitor.PrinterOption) *Printer {
	return monitor.NewPrinter(w, opts...)
}

// WithFormat selects text or JSON lines output.
func WithFormat(f Format) monitor.PrinterOption {
	return monitor.WithFormat(f)
}

// WithTimestamps adds timestamps to operator events.
func WithTimestamps(enabled bool) monitor.PrinterOption {
	return monitor.WithTimestamps(enabled)
}
