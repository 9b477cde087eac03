package gpio

import (
	"errors"

	"github.com/sweeney/rover/internal/logic"
)

// FakeReader is a test double that returns scripted bump levels.
type FakeReader struct {
	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// Sample represents a single raw reading of both bump lines.
type Sample struct {
	Left  logic.Level
	Right logic.Level
}

// Resting is the sample of an active-low pair with neither switch closed.
var Resting = Sample{Left: logic.High, Right: logic.High}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (logic.Level, logic.Level, error) {
	if f.ReadError != nil {
		return logic.Low, logic.Low, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.Low, logic.Low, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample.Left, sample.Right, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeLED records indicator commands.
type FakeLED struct {
	Lit bool
	// Calls holds "on"/"off" in call order.
	Calls []string
	Err   error
}

// On records an on command.
func (l *FakeLED) On() error {
	l.Calls = append(l.Calls, "on")
	if l.Err != nil {
		return l.Err
	}
	l.Lit = true
	return nil
}

// Off records an off command.
func (l *FakeLED) Off() error {
	l.Calls = append(l.Calls, "off")
	if l.Err != nil {
		return l.Err
	}
	l.Lit = false
	return nil
}
