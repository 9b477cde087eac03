// Package gpio provides bump switch, rotation sensor and LED access with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "github.com/sweeney/rover/internal/logic"

// Reader reads the raw levels of the two bump switch lines.
type Reader interface {
	// Read returns the raw (not debounced) left and right levels.
	Read() (left, right logic.Level, err error)

	// Close releases GPIO resources.
	Close() error
}

// Pins holds the line offsets on the GPIO chip.
type Pins struct {
	Chip      string
	HallLeft  int
	HallRight int
	BumpLeft  int
	BumpRight int
	LED       int
}

// DefaultPins matches the reference wiring.
var DefaultPins = Pins{
	Chip:      "gpiochip0",
	HallLeft:  2,
	HallRight: 3,
	BumpLeft:  7,
	BumpRight: 8,
	LED:       6,
}

func levelOf(v int) logic.Level {
	return logic.Level(v != 0)
}
