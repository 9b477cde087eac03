// Package logic contains the pure input-derivation layer of the rover.
// This package has NO external dependencies (no GPIO, serial, MQTT, or time.Sleep).
// Time is always injectable via tick counters.
package logic

// Level is a raw digital line level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Edge is the result of feeding one raw sample to a Debouncer.
type Edge int

const (
	EdgeNone Edge = iota
	EdgePressed
	EdgeReleased
)

func (e Edge) String() string {
	switch e {
	case EdgePressed:
		return "PRESSED"
	case EdgeReleased:
		return "RELEASED"
	default:
		return "NONE"
	}
}

// Snapshot holds every edge detected since the previous poll.
// It is built once per control cycle and consumed once by the state machine.
// Flags are independent: any combination may be set.
type Snapshot struct {
	HallLeft  bool
	HallRight bool

	BumpLeft  bool
	BumpRight bool

	ReleaseLeft  bool
	ReleaseRight bool
}

// Any reports whether any flag is set.
func (s Snapshot) Any() bool {
	return s.HallLeft || s.HallRight || s.BumpLeft || s.BumpRight || s.ReleaseLeft || s.ReleaseRight
}

// Hall reports whether either rotation sensor fired.
func (s Snapshot) Hall() bool {
	return s.HallLeft || s.HallRight
}
