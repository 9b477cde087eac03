// Package tick provides free-running 32-bit timestamps for the control loop.
// Counters wrap (Millis after ~49.7 days, Micros after ~71.6 minutes); elapsed
// time is always computed with unsigned modular subtraction so a single wrap
// between two readings is harmless.
package tick

import "time"

// Millis is a wrapping millisecond counter.
type Millis uint32

// Since returns the milliseconds elapsed from earlier to m.
func (m Millis) Since(earlier Millis) uint32 {
	return uint32(m - earlier)
}

// Micros is a wrapping microsecond counter.
type Micros uint32

// Since returns the microseconds elapsed from earlier to u.
func (u Micros) Since(earlier Micros) uint32 {
	return uint32(u - earlier)
}

// Epoch converts time.Time readings into counters relative to a start instant.
type Epoch struct {
	start time.Time
}

// NewEpoch returns an Epoch anchored at start.
func NewEpoch(start time.Time) Epoch {
	return Epoch{start: start}
}

// Millis returns the millisecond counter value for t.
func (e Epoch) Millis(t time.Time) Millis {
	return Millis(uint32(t.Sub(e.start).Milliseconds()))
}

// Micros returns the microsecond counter value for t.
func (e Epoch) Micros(t time.Time) Micros {
	return Micros(uint32(t.Sub(e.start).Microseconds()))
}

// MicrosFromDuration truncates a duration (e.g. a kernel event timestamp) to
// the wrapping microsecond counter.
func MicrosFromDuration(d time.Duration) Micros {
	return Micros(uint32(d.Microseconds()))
}
