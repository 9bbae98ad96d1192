package monitor

import (
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"
)

// Format selects the Printer output.
type Format int

const (
	Text Format = iota
	JSON
)

// ParseFormat accepts "text" and "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return Text, fmt.Errorf("unknown trace format %q (expected text or json)", s)
	}
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithFormat selects text or JSON lines output.
func WithFormat(f Format) PrinterOption {
	return func(p *Printer) { p.format = f }
}

// WithTimestamps adds nanosecond timestamps to operator events.
func WithTimestamps(enabled bool) PrinterOption {
	return func(p *Printer) { p.timestamps = enabled }
}

// Printer is a subscriber that writes every event to w. The first write error
// is kept and later events are dropped.
type Printer struct {
	mu         sync.Mutex
	w          io.Writer
	format     Format
	timestamps bool
	err        error
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{w: w}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle is the Callback to pass to Monitor.Subscribe.
func (p *Printer) Handle(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if p.format == JSON {
		p.err = p.writeJSON(ev)
	} else {
		p.err = p.writeText(ev)
	}
}

// Err returns the first write error.
func (p *Printer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Printer) writeText(ev Event) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(p.w, format, args...)
		}
	}

	switch {
	case ev.Site == Enter && ev.Mem != nil:
		printf("Domain: %s\n", ev.Domain)
		if ev.Mem.Kind == Alloc {
			printf("Allocate id: %d on %s\n", ev.Mem.ID, ev.Mem.Device)
		} else {
			printf("Free id: %d on %s\n", ev.Mem.ID, ev.Mem.Device)
		}
		printf("Size: %d\n", ev.Mem.Size)
		printf("Total size: %d\n", ev.Mem.TotalAllocated)
		printf("Total reserved: %d\n", ev.Mem.TotalReserved)
	case ev.Site == Enter:
		printf("Domain: %s\n", ev.Domain)
		printf("Sequence number: %d\n", ev.SequenceNumber)
		printf("Name: %s\n", ev.Name)
		if p.timestamps {
			printf("Enter level: %d at %d\n", ev.NestedLevel, ev.Timestamp.UnixNano())
		}
		for i, f := range ev.CallPath {
			printf("(%d) File: %s\n\tFunction: %s\n\tLine: %d\n", i, f.File, f.Function, f.Line)
		}
	case p.timestamps:
		printf("Exit level: %d at %d\n", ev.NestedLevel, ev.Timestamp.UnixNano())
	}
	return err
}

type jsonMem struct {
	Kind           string `json:"kind"`
	Device         string `json:"device"`
	ID             uint64 `json:"id"`
	Size           int64  `json:"size"`
	TotalAllocated int64  `json:"total_allocated"`
	TotalReserved  int64  `json:"total_reserved"`
	Collected      bool   `json:"collected,omitempty"`
}

type jsonFrame struct {
	File     string `json:"file"`
	Function string `json:"function"`
	Line     int    `json:"line"`
}

type jsonEvent struct {
	Domain         string      `json:"domain"`
	Site           string      `json:"site"`
	Name           string      `json:"name,omitempty"`
	SequenceNumber int64       `json:"sequence_number"`
	NestedLevel    int         `json:"nested_level"`
	Timestamp      int64       `json:"timestamp_ns,omitempty"`
	Mem            *jsonMem    `json:"mem,omitempty"`
	CallPath       []jsonFrame `json:"call_path,omitempty"`
}

func (p *Printer) writeJSON(ev Event) error {
	out := jsonEvent{
		Domain:         ev.Domain.String(),
		Site:           ev.Site.String(),
		Name:           ev.Name,
		SequenceNumber: ev.SequenceNumber,
		NestedLevel:    ev.NestedLevel,
	}
	if p.timestamps {
		out.Timestamp = ev.Timestamp.UnixNano()
	}
	if ev.Mem != nil {
		out.Mem = &jsonMem{
			Kind:           ev.Mem.Kind.String(),
			Device:         ev.Mem.Device.String(),
			ID:             ev.Mem.ID,
			Size:           ev.Mem.Size,
			TotalAllocated: ev.Mem.TotalAllocated,
			TotalReserved:  ev.Mem.TotalReserved,
			Collected:      ev.Mem.Collected,
		}
	}
	for _, f := range ev.CallPath {
		out.CallPath = append(out.CallPath, jsonFrame{File: f.File, Function: f.Function, Line: f.Line})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = p.w.Write(append(b, '\n'))
	return err
}
