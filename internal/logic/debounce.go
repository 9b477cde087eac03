package logic

import "github.com/sweeney/rover/internal/tick"

// DefaultDebounceMs is the bump switch debounce window.
const DefaultDebounceMs = 50

// Debouncer confirms level changes on one bump line.
//
// A raw change first restarts the window; only once the new level has held
// for the whole window and differs from the confirmed level is it committed
// and reported as an edge.
type Debouncer struct {
	windowMs uint32
	pressed  Level

	// last raw level seen
	last Level
	// confirmed level
	stable Level
	// when last changed
	lastChange tick.Millis
}

// NewDebouncer creates a Debouncer whose resting level is rest, observed at now.
// pressed is the level the line sits at while the switch is closed.
func NewDebouncer(windowMs uint32, pressed, rest Level, now tick.Millis) *Debouncer {
	return &Debouncer{
		windowMs:   windowMs,
		pressed:    pressed,
		last:       rest,
		stable:     rest,
		lastChange: now,
	}
}

// Process takes a raw sample and returns the edge confirmed by it, if any.
func (d *Debouncer) Process(raw Level, now tick.Millis) Edge {
	if raw != d.last {
		d.last = raw
		d.lastChange = now
	}

	if now.Since(d.lastChange) < d.windowMs || raw == d.stable {
		return EdgeNone
	}

	d.stable = raw
	if raw == d.pressed {
		return EdgePressed
	}
	return EdgeReleased
}

// Stable returns the confirmed level.
func (d *Debouncer) Stable() Level {
	return d.stable
}

// Pressed reports whether the confirmed level is the pressed level.
func (d *Debouncer) Pressed() bool {
	return d.stable == d.pressed
}
