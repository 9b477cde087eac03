// Package inputs turns raw bump and rotation lines into one event Snapshot per
// control cycle.
package inputs

import (
	"fmt"

	"github.com/sweeney/rover/internal/gpio"
	"github.com/sweeney/rover/internal/logic"
	"github.com/sweeney/rover/internal/tick"
)

// Config holds the debounce parameters.
type Config struct {
	DebounceMs uint32
	// PressedLevel is the raw level of a closed bump switch.
	PressedLevel logic.Level
}

// DefaultConfig matches pulled-up switches that short to ground.
var DefaultConfig = Config{
	DebounceMs:   logic.DefaultDebounceMs,
	PressedLevel: logic.Low,
}

// Source is the debounced input source. Poll is the only place the bump lines
// are read; rotation edges arrive through the edge filters.
type Source struct {
	reader    gpio.Reader
	bumpLeft  *logic.Debouncer
	bumpRight *logic.Debouncer
	hallLeft  *logic.EdgeFilter
	hallRight *logic.EdgeFilter
}

// NewSource reads the current bump levels as the resting levels and attaches
// the rotation edge filters.
func NewSource(cfg Config, reader gpio.Reader, hallLeft, hallRight *logic.EdgeFilter, now tick.Millis) (*Source, error) {
	left, right, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read resting levels: %w", err)
	}
	return &Source{
		reader:    reader,
		bumpLeft:  logic.NewDebouncer(cfg.DebounceMs, cfg.PressedLevel, left, now),
		bumpRight: logic.NewDebouncer(cfg.DebounceMs, cfg.PressedLevel, right, now),
		hallLeft:  hallLeft,
		hallRight: hallRight,
	}, nil
}

// Poll drains pending rotation edges and samples both bump lines.
// On a read error the rotation edges are still returned; the bump debounce
// state is left untouched for this cycle.
func (s *Source) Poll(now tick.Millis) (logic.Snapshot, error) {
	var snap logic.Snapshot
	snap.HallLeft = s.hallLeft.Take()
	snap.HallRight = s.hallRight.Take()

	left, right, err := s.reader.Read()
	if err != nil {
		return snap, fmt.Errorf("read bump lines: %w", err)
	}

	switch s.bumpLeft.Process(left, now) {
	case logic.EdgePressed:
		snap.BumpLeft = true
	case logic.EdgeReleased:
		snap.ReleaseLeft = true
	}
	switch s.bumpRight.Process(right, now) {
	case logic.EdgePressed:
		snap.BumpRight = true
	case logic.EdgeReleased:
		snap.ReleaseRight = true
	}
	return snap, nil
}

// Bumped reports the confirmed pressed state of each switch.
func (s *Source) Bumped() (left, right bool) {
	return s.bumpLeft.Pressed(), s.bumpRight.Pressed()
}

// RotationCounts returns the total accepted rotation edges per side.
func (s *Source) RotationCounts() (left, right uint64) {
	return s.hallLeft.Accepted(), s.hallRight.Accepted()
}
