// Package monitor reports operator and memory activity of the tensor engine
// to a single subscriber.
//
// Three domains can be observed:
//   - Function: forward operators executed by a wrapped backend (see Wrap)
//   - BackwardFunction: backward functions run by the autodiff tape (see BackwardHook)
//   - Memory: tensor storage allocations and releases
//
// Usage:
//
//	m := monitor.New()
//	_ = m.EnableDomain(monitor.Function)
//	_ = m.Subscribe(monitor.NewPrinter(os.Stdout).Handle)
//	_ = m.Start()
//	defer m.Stop()
//
//	backend := autodiff.New(m.Wrap(cpu.New()))
//	backend.SetHook(m.BackwardHook())
package monitor

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/born-ml/probe/internal/autodiff"
	"github.com/born-ml/probe/internal/tensor"
)

var (
	ErrDomainOutOfRange = errors.New("monitor: domain out of range")
	ErrNilSubscriber    = errors.New("monitor: nil subscriber")
	ErrSubscriberExists = errors.New("monitor: subscriber already registered")
	ErrInitFailed       = errors.New("monitor: init failed")
	ErrNotStarted       = errors.New("monitor: not started")
)

// Domain selects a class of events.
type Domain int

const (
	Function Domain = iota
	BackwardFunction
	Memory

	numDomains
)

func (d Domain) String() string {
	switch d {
	case Function:
		return "function"
	case BackwardFunction:
		return "backward_function"
	case Memory:
		return "memory"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// ParseDomain maps a domain name back to its Domain.
func ParseDomain(s string) (Domain, error) {
	for d := Function; d < numDomains; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrDomainOutOfRange, s)
}

// Site tells whether an event opens or closes an operator.
type Site int

const (
	Enter Site = iota
	Exit
)

func (s Site) String() string {
	if s == Exit {
		return "exit"
	}
	return "enter"
}

// MemKind distinguishes allocations from releases.
type MemKind int

const (
	Alloc MemKind = iota
	Free
)

func (k MemKind) String() string {
	if k == Free {
		return "free"
	}
	return "alloc"
}

// MemEvent describes one storage allocation or release.
type MemEvent struct {
	Kind           MemKind
	Device         tensor.Device
	ID             uint64
	Size           int64 // always positive
	TotalAllocated int64
	TotalReserved  int64
	Collected      bool // freed by the garbage collector rather than Release
}

// Frame is one caller of an operator outside the tensor engine.
type Frame struct {
	File     string
	Function string
	Line     int
}

// MaxCallPath bounds the frames recorded per event.
const MaxCallPath = 30

// Event is delivered to the subscriber.
//
// Memory events are always reported at the Enter site and carry Mem.
// CallPath is set on operator Enter events when EnableCallPath is on,
// innermost caller first.
type Event struct {
	Domain         Domain
	Site           Site
	Name           string
	SequenceNumber int64 // -1 when the operator is not tied to the autodiff tape
	NestedLevel    int
	Timestamp      time.Time
	Mem            *MemEvent
	CallPath       []Frame
}

// Callback receives events. Calls are serialized: the monitor never runs two
// callbacks at once. Operator events arrive on the goroutine that executed
// the operator. Collected memory events arrive from the runtime's cleanup
// goroutine and report NestedLevel 0.
//
// A callback must not run tensor operators itself.
type Callback func(Event)

// Monitor dispatches events of enabled domains to its subscriber.
type Monitor struct {
	mu      sync.RWMutex
	domains [numDomains]bool
	cb      Callback
	started bool
	restore func()

	deliver  sync.Mutex // serializes cb
	callPath atomic.Bool
	level    atomic.Int64
	now      func() time.Time
}

// New creates a stopped monitor with no domains enabled.
func New() *Monitor {
	return &Monitor{now: time.Now}
}

// EnableDomain turns on reporting for d.
func (m *Monitor) EnableDomain(d Domain) error {
	if d < 0 || d >= numDomains {
		return fmt.Errorf("%w: %d", ErrDomainOutOfRange, int(d))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains[d] = true
	return nil
}

// HasDomain reports whether d is enabled.
func (m *Monitor) HasDomain(d Domain) bool {
	if d < 0 || d >= numDomains {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.domains[d]
}

// Subscribe registers the single subscriber.
func (m *Monitor) Subscribe(cb Callback) error {
	if cb == nil {
		return ErrNilSubscriber
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cb != nil {
		return ErrSubscriberExists
	}
	m.cb = cb
	return nil
}

// Start begins delivering events. It fails when there is no subscriber or no
// enabled domain.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.started:
		return fmt.Errorf("%w: already started", ErrInitFailed)
	case m.cb == nil:
		return fmt.Errorf("%w: no subscriber", ErrInitFailed)
	case m.domains == [numDomains]bool{}:
		return fmt.Errorf("%w: no domain enabled", ErrInitFailed)
	}

	if m.domains[Memory] {
		m.restore = tensor.SetMemoryReporter(memoryReporter{m})
	}
	m.level.Store(0)
	m.started = true
	return nil
}

// Stop ends event delivery. When it returns no callback is running and none
// will run until the next Start. It must not be called from a callback.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.restore != nil {
		m.restore()
		m.restore = nil
	}
	m.started = false
	m.mu.Unlock()

	// Wait out a delivery in flight.
	m.deliver.Lock()
	m.deliver.Unlock()
	return nil
}

// EnableCallPath turns call path capture for operator events on or off.
func (m *Monitor) EnableCallPath(enabled bool) {
	m.callPath.Store(enabled)
}

// Started reports whether the monitor is delivering events.
func (m *Monitor) Started() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.started
}

func (m *Monitor) subscriber(d Domain) Callback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.started || !m.domains[d] {
		return nil
	}
	return m.cb
}

// enter reports an operator start. The reported level is the depth before
// entering, so an outermost operator is at level 0.
func (m *Monitor) enter(d Domain, name string, seq int64) {
	if m.subscriber(d) == nil {
		return
	}
	ev := Event{Domain: d, Site: Enter, Name: name, SequenceNumber: seq, Timestamp: m.now()}
	if m.callPath.Load() {
		ev.CallPath = callPath()
	}
	ev.NestedLevel = int(m.level.Add(1) - 1)
	m.send(ev)
}

// exit reports an operator end at the same level as its enter.
func (m *Monitor) exit(d Domain, name string, seq int64) {
	if m.subscriber(d) == nil {
		return
	}
	level := m.level.Add(-1)
	if level < 0 {
		// Started between this operator's enter and exit.
		m.level.Store(0)
		level = 0
	}
	m.send(Event{Domain: d, Site: Exit, Name: name, SequenceNumber: seq, NestedLevel: int(level), Timestamp: m.now()})
}

// send delivers ev if its domain is still being observed.
func (m *Monitor) send(ev Event) {
	m.deliver.Lock()
	defer m.deliver.Unlock()
	if cb := m.subscriber(ev.Domain); cb != nil {
		cb(ev)
	}
}

type memoryReporter struct{ m *Monitor }

func (r memoryReporter) ReportMemory(ev tensor.MemoryEvent) {
	if r.m.subscriber(Memory) == nil {
		return
	}
	mem := &MemEvent{
		Kind:           Alloc,
		Device:         ev.Device,
		ID:             ev.BufferID,
		Size:           ev.Size,
		TotalAllocated: ev.TotalAllocated,
		TotalReserved:  ev.TotalReserved,
		Collected:      ev.Collected,
	}
	if ev.Size < 0 {
		mem.Kind = Free
		mem.Size = -ev.Size
	}
	level := 0
	if !ev.Collected {
		level = int(r.m.level.Load())
	}
	r.m.send(Event{
		Domain:         Memory,
		Site:           Enter,
		SequenceNumber: -1,
		NestedLevel:    level,
		Timestamp:      r.m.now(),
		Mem:            mem,
	})
}

// engineRoot is the import path prefix shared by this module's packages.
var engineRoot = path.Dir(path.Dir(reflect.TypeFor[Monitor]().PkgPath()))

// enginePackages run operators on behalf of user code and are left out of
// call paths.
var enginePackages = []string{
	"runtime",
	engineRoot + "/internal/autodiff",
	engineRoot + "/internal/backend",
	engineRoot + "/internal/monitor",
	engineRoot + "/internal/parallel",
	engineRoot + "/internal/tensor",
	engineRoot + "/autodiff",
	engineRoot + "/backend",
	engineRoot + "/monitor",
	engineRoot + "/tensor",
}

// callPath returns up to MaxCallPath callers of the current operator.
func callPath() []Frame {
	var pcs [64]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var out []Frame
	for len(out) < MaxCallPath {
		f, more := frames.Next()
		if f.Function != "" && !isEngine(funcPackage(f.Function)) {
			out = append(out, Frame{File: f.File, Function: f.Function, Line: f.Line})
		}
		if !more {
			break
		}
	}
	return out
}

func isEngine(pkg string) bool {
	for _, p := range enginePackages {
		if pkg == p || strings.HasPrefix(pkg, p+"/") {
			return true
		}
	}
	return false
}

// funcPackage returns the import path of a runtime function name such as
// "example.com/m/pkg.(*T[...]).Method".
func funcPackage(fn string) string {
	if i := strings.IndexByte(fn, '['); i >= 0 {
		fn = fn[:i]
	}
	slash := strings.LastIndexByte(fn, '/')
	if dot := strings.IndexByte(fn[slash+1:], '.'); dot >= 0 {
		return fn[:slash+1+dot]
	}
	return fn
}

// backwardHook adapts the monitor to autodiff.Hook.
type backwardHook struct{ m *Monitor }

// BackwardHook returns a hook for autodiff.AutodiffBackend.SetHook.
func (m *Monitor) BackwardHook() autodiff.Hook {
	return backwardHook{m}
}

func (h backwardHook) BackwardEnter(name string, seq int64) {
	h.m.enter(BackwardFunction, name, seq)
}

func (h backwardHook) BackwardExit(name string, seq int64) {
	h.m.exit(BackwardFunction, name, seq)
}
