package tensor

import (
	"sync"
	"sync/atomic"
)

// MemoryEvent describes one allocation or release of tensor storage.
type MemoryEvent struct {
	BufferID       uint64
	Size           int64 // Bytes; negative on release.
	TotalAllocated int64 // Live bytes after this event, across all devices.
	TotalReserved  int64 // Bytes held by allocators; equal to TotalAllocated without caching.
	Device         Device

	// Collected marks a release performed by the garbage collector for a
	// buffer that was never released explicitly. Such events are reported
	// from the runtime's cleanup goroutine, not the goroutine running ops.
	Collected bool
}

// MemoryReporter receives storage events.
type MemoryReporter interface {
	ReportMemory(ev MemoryEvent)
}

var (
	totalAllocated atomic.Int64

	reporterMu sync.RWMutex
	reporter   MemoryReporter
)

// SetMemoryReporter installs r as the process-wide storage observer and returns
// a function restoring the previous one. A nil reporter disables reporting.
func SetMemoryReporter(r MemoryReporter) (restore func()) {
	reporterMu.Lock()
	prev := reporter
	reporter = r
	reporterMu.Unlock()

	return func() {
		reporterMu.Lock()
		reporter = prev
		reporterMu.Unlock()
	}
}

// AllocatedBytes returns the number of live tensor storage bytes.
func AllocatedBytes() int64 {
	return totalAllocated.Load()
}

func reportAlloc(id uint64, size int64, device Device) {
	total := totalAllocated.Add(size)
	emit(MemoryEvent{BufferID: id, Size: size, TotalAllocated: total, TotalReserved: total, Device: device})
}

func reportFree(id uint64, size int64, device Device, collected bool) {
	total := totalAllocated.Add(-size)
	emit(MemoryEvent{BufferID: id, Size: -size, TotalAllocated: total, TotalReserved: total, Device: device, Collected: collected})
}

func emit(ev MemoryEvent) {
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r != nil {
		r.ReportMemory(ev)
	}
}
