// Package fsm contains the rover's behavioral state machine.
// Like the logic package it never reads the clock or the hardware itself:
// each Step receives the cycle's event Snapshot and timestamp, and acts only
// through the Actuator, Signal and Link interfaces.
package fsm

import (
	"fmt"

	"github.com/sweeney/rover/internal/tick"
)

// State is one of the rover's mutually exclusive behaviors.
type State string

const (
	// StateIdle waits for the detector host handshake.
	StateIdle State = "IDLE"
	// StateIdleNoHost waits for a wheel to be turned by hand.
	StateIdleNoHost State = "IDLE_NO_HOST"
	StateWander     State = "WANDER"
	// StateBackingUpFromBump reverses away from an obstacle.
	StateBackingUpFromBump State = "BACK_UP_BUMP"
	// StateDetecting polls the detector host for a person.
	StateDetecting State = "DETECT"
	// StateDetectingNoHost pretends to detect for a fixed time.
	StateDetectingNoHost  State = "DETECT_NO_HOST"
	StateBackingUpToFlash State = "BACK_UP_FLASH"
	StateFlashing         State = "FLASH"
	// StateTurningAfterFlash is the fixed-length turn before wandering again.
	// Bump recovery ends in this turn as well.
	StateTurningAfterFlash State = "TURN"
	// StateTurningAfterDetect turns toward a detected person for a computed time.
	StateTurningAfterDetect State = "DETECT_TURN"
)

// States lists every state.
var States = []State{
	StateIdle,
	StateIdleNoHost,
	StateWander,
	StateBackingUpFromBump,
	StateDetecting,
	StateDetectingNoHost,
	StateBackingUpToFlash,
	StateFlashing,
	StateTurningAfterFlash,
	StateTurningAfterDetect,
}

// Mode selects which idle and detect states are reachable. It is fixed for
// the life of a Machine.
type Mode string

const (
	// ModeHost runs with a detector host on the serial link.
	ModeHost Mode = "host"
	// ModeStandalone runs without any host.
	ModeStandalone Mode = "standalone"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHost, ModeStandalone:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeHost, ModeStandalone)
}

// Host link tokens.
const (
	HandshakeToken = "PI_ON"
	ReadyToken     = "ARDUINO_READY"
)

// Timing holds the per-state time limits in milliseconds.
type Timing struct {
	WanderMs        uint32
	DetectMs        uint32
	BackUpFlashMs   uint32
	BackUpBumpMs    uint32
	FlashMs         uint32
	TurnMs          uint32
	SyntheticTurnMs uint32
}

// DefaultTiming is the reference tuning.
var DefaultTiming = Timing{
	WanderMs:        5000,
	DetectMs:        4000,
	BackUpFlashMs:   2000,
	BackUpBumpMs:    3000,
	FlashMs:         500,
	TurnMs:          3000,
	SyntheticTurnMs: 3000,
}

// Actuator issues motion commands. Commands take effect immediately and are
// not acknowledged.
type Actuator interface {
	Forward() error
	Backward() error
	Stop() error
	TurnLeft() error
	TurnRight() error
}

// Signal is the binary indicator.
type Signal interface {
	On() error
	Off() error
}

// Link is the line-oriented channel to the detector host.
type Link interface {
	ReadLine() (string, bool)
	WriteLine(s string) error
	Drain()
}

// BumpMemory remembers which side hit an obstacle until the back-up ends.
type BumpMemory struct {
	Left  bool
	Right bool
	Both  bool
}

// Transition records one state change.
type Transition struct {
	At     tick.Millis
	From   State
	To     State
	Reason string
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Reason)
}
