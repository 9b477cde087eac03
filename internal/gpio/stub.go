//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/rover/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(Pins) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (logic.Level, logic.Level, error) {
	return logic.Low, logic.Low, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// EdgeWatcher is not available on non-Linux platforms.
type EdgeWatcher struct{}

// NewEdgeWatcher returns an error on non-Linux platforms.
func NewEdgeWatcher(Pins, *logic.EdgeFilter, *logic.EdgeFilter) (*EdgeWatcher, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *EdgeWatcher) Close() error {
	return nil
}

// LED is not available on non-Linux platforms.
type LED struct{}

// NewLED returns an error on non-Linux platforms.
func NewLED(Pins) (*LED, error) {
	return nil, errUnsupported
}

// On is not implemented on non-Linux platforms.
func (l *LED) On() error { return errUnsupported }

// Off is not implemented on non-Linux platforms.
func (l *LED) Off() error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (l *LED) Close() error { return nil }
