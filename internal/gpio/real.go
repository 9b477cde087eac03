//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/rover/internal/logic"
	"github.com/sweeney/rover/internal/tick"
)

// RealReader reads the bump switches from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	left  *gpiocdev.Line
	right *gpiocdev.Line
}

// NewRealReader requests both bump lines as inputs.
// The switches short to ground, so the lines are pulled up and rest HIGH.
func NewRealReader(pins Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	left, err := chip.RequestLine(pins.BumpLeft, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request bump left pin %d: %w", pins.BumpLeft, err)
	}

	right, err := chip.RequestLine(pins.BumpRight, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		left.Close()
		chip.Close()
		return nil, fmt.Errorf("request bump right pin %d: %w", pins.BumpRight, err)
	}

	return &RealReader{chip: chip, left: left, right: right}, nil
}

// Read returns the raw left and right levels.
func (r *RealReader) Read() (logic.Level, logic.Level, error) {
	l, err := r.left.Value()
	if err != nil {
		return logic.Low, logic.Low, fmt.Errorf("read bump left pin: %w", err)
	}
	rt, err := r.right.Value()
	if err != nil {
		return logic.Low, logic.Low, fmt.Errorf("read bump right pin: %w", err)
	}
	return levelOf(l), levelOf(rt), nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	return closeAll(r.chip, r.left, r.right)
}

// EdgeWatcher feeds falling edges of the two rotation sensors into edge filters.
// gpiocdev delivers events for each request on its own goroutine, so each
// filter has exactly one producer.
type EdgeWatcher struct {
	chip  *gpiocdev.Chip
	left  *gpiocdev.Line
	right *gpiocdev.Line
}

// NewEdgeWatcher requests both hall lines with falling-edge detection.
// Edge timestamps come from the kernel, not from when the handler runs.
func NewEdgeWatcher(pins Pins, left, right *logic.EdgeFilter) (*EdgeWatcher, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	leftLine, err := chip.RequestLine(pins.HallLeft,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(edgeHandler(left)))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request hall left pin %d: %w", pins.HallLeft, err)
	}

	rightLine, err := chip.RequestLine(pins.HallRight,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(edgeHandler(right)))
	if err != nil {
		leftLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request hall right pin %d: %w", pins.HallRight, err)
	}

	return &EdgeWatcher{chip: chip, left: leftLine, right: rightLine}, nil
}

func edgeHandler(f *logic.EdgeFilter) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		f.Accept(tick.MicrosFromDuration(evt.Timestamp))
	}
}

// Close stops edge delivery and releases GPIO resources.
func (w *EdgeWatcher) Close() error {
	return closeAll(w.chip, w.left, w.right)
}

// LED drives the signal indicator on an output line.
type LED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewLED requests the LED line as an output, initially off.
func NewLED(pins Pins) (*LED, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pins.LED, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led pin %d: %w", pins.LED, err)
	}
	return &LED{chip: chip, line: line}, nil
}

// On lights the LED.
func (l *LED) On() error {
	if err := l.line.SetValue(1); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// Off turns the LED off.
func (l *LED) Off() error {
	if err := l.line.SetValue(0); err != nil {
		return fmt.Errorf("clear led: %w", err)
	}
	return nil
}

// Close turns the LED off and releases GPIO resources.
func (l *LED) Close() error {
	var errs []error
	if l.line != nil {
		if err := l.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear led: %w", err))
		}
	}
	if err := closeAll(l.chip, l.line); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// closeAll closes the lines and then the chip, collecting errors.
func closeAll(chip *gpiocdev.Chip, lines ...*gpiocdev.Line) error {
	var errs []error
	for _, l := range lines {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
		}
	}
	if chip != nil {
		if err := chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
