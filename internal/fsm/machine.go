package fsm

import (
	"errors"
	"log"

	"github.com/sweeney/rover/internal/detect"
	"github.com/sweeney/rover/internal/logic"
	"github.com/sweeney/rover/internal/tick"
)

// Config holds the immutable tuning of a Machine.
type Config struct {
	Mode     Mode
	Timing   Timing
	Geometry detect.Geometry
}

// DefaultConfig returns the reference tuning in the given mode.
func DefaultConfig(mode Mode) Config {
	return Config{
		Mode:     mode,
		Timing:   DefaultTiming,
		Geometry: detect.DefaultGeometry,
	}
}

// Machine is the rover's state machine. It owns the current state, the
// state timer, the bump memory and the detection client. It is driven from
// a single goroutine.
type Machine struct {
	cfg    Config
	act    Actuator
	sig    Signal
	link   Link
	client *detect.Client

	state   State
	entered tick.Millis
	bumps   BumpMemory
	// turnMs is the duration of the current StateTurningAfterDetect.
	turnMs uint32
}

// New creates a Machine in the idle state for cfg.Mode, entered at now.
// link and client are required in host mode and ignored otherwise.
func New(cfg Config, act Actuator, sig Signal, link Link, client *detect.Client, now tick.Millis) (*Machine, error) {
	if act == nil || sig == nil {
		return nil, errors.New("fsm: actuator and signal are required")
	}
	m := &Machine{
		cfg:     cfg,
		act:     act,
		sig:     sig,
		entered: now,
	}
	switch cfg.Mode {
	case ModeHost:
		if link == nil || client == nil {
			return nil, errors.New("fsm: host mode needs a link and a detection client")
		}
		m.link = link
		m.client = client
		m.state = StateIdle
	case ModeStandalone:
		m.state = StateIdleNoHost
	default:
		_, err := ParseMode(string(cfg.Mode))
		return nil, err
	}
	return m, nil
}

// cycle carries one Step's inputs to guards and actions.
type cycle struct {
	ev      logic.Snapshot
	now     tick.Millis
	elapsed uint32

	// line is the trimmed host line read this cycle (Idle only).
	line string
	// sample is the detection sample polled this cycle (Detecting only).
	sample int
	// note replaces the row's reason in the trace when set.
	note string
}

// Step runs one control cycle. At most one row of the transition table
// fires; its effector commands are issued before the state changes.
func (m *Machine) Step(ev logic.Snapshot, now tick.Millis) (Transition, bool) {
	def := transitions[m.state]
	c := &cycle{ev: ev, now: now, elapsed: now.Since(m.entered)}

	if def.poll != nil {
		def.poll(m, c)
	}
	for _, r := range def.rules {
		if !r.when(m, c) {
			continue
		}
		to := r.do(m, c)
		reason := r.reason
		if c.note != "" {
			reason = c.note
		}
		return m.enter(to, reason, now), true
	}
	return Transition{}, false
}

func (m *Machine) enter(to State, reason string, now tick.Millis) Transition {
	t := Transition{At: now, From: m.state, To: to, Reason: reason}
	log.Printf("fsm: %s", t)
	m.state = to
	m.entered = now
	if on := transitions[to].onEnter; on != nil {
		on(m)
	}
	return t
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Mode returns the mode the machine was built for.
func (m *Machine) Mode() Mode {
	return m.cfg.Mode
}

// EnteredAt returns when the current state was entered.
func (m *Machine) EnteredAt() tick.Millis {
	return m.entered
}

// Elapsed returns the time spent in the current state as of now.
func (m *Machine) Elapsed(now tick.Millis) uint32 {
	return now.Since(m.entered)
}

// Bumps returns the pending bump memory.
func (m *Machine) Bumps() BumpMemory {
	return m.bumps
}

// TurnMs returns the active detect-turn duration (0 outside that state).
func (m *Machine) TurnMs() uint32 {
	return m.turnMs
}

// Client returns the detection client (nil in standalone mode).
func (m *Machine) Client() *detect.Client {
	return m.client
}

// command issues one effector call. Failures are logged; control flow never
// depends on them.
func command(name string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("fsm: %s failed: %v", name, err)
	}
}
