package logic

import (
	"sync/atomic"

	"github.com/sweeney/rover/internal/tick"
)

// DefaultMinEdgeIntervalUs is the minimum spacing between accepted rotation edges.
const DefaultMinEdgeIntervalUs = 2000

// EdgeFilter rate-limits falling edges from one rotation sensor.
//
// Accept is called from the edge handler (interrupt context) and Take from the
// main cycle. The flag is the only field shared between the two; the
// acceptance timestamp is owned by the handler side.
type EdgeFilter struct {
	minIntervalUs uint32

	lastAccepted tick.Micros
	flag         atomic.Bool
	accepted     atomic.Uint64
}

// NewEdgeFilter creates an EdgeFilter with the given minimum interval.
func NewEdgeFilter(minIntervalUs uint32) *EdgeFilter {
	return &EdgeFilter{minIntervalUs: minIntervalUs}
}

// Accept examines one falling edge observed at now. It reports whether the
// edge was far enough from the last accepted one to count.
// Must only be called from a single goroutine.
func (f *EdgeFilter) Accept(now tick.Micros) bool {
	if now.Since(f.lastAccepted) <= f.minIntervalUs {
		return false
	}
	f.lastAccepted = now
	f.accepted.Add(1)
	f.flag.Store(true)
	return true
}

// Take atomically reads and clears the pending flag.
// An edge accepted concurrently is either returned now or on the next call,
// never both and never lost.
func (f *EdgeFilter) Take() bool {
	return f.flag.Swap(false)
}

// Accepted returns the total number of edges accepted since creation.
func (f *EdgeFilter) Accepted() uint64 {
	return f.accepted.Load()
}
