package fsm

import (
	"fmt"
	"log"
	"strings"
)

// rule is one row of the transition table.
type rule struct {
	reason string
	when   func(m *Machine, c *cycle) bool
	// do issues the row's commands and returns the next state.
	do func(m *Machine, c *cycle) State
}

// stateDef describes one state.
type stateDef struct {
	// onEnter runs after the state is entered.
	onEnter func(m *Machine)
	// poll runs every cycle before the rules are evaluated.
	poll func(m *Machine, c *cycle)
	// rules are tried in order; the first match fires.
	rules []rule
}

// transitions is the complete behavior of the rover.
var transitions = map[State]stateDef{
	StateIdle: {
		poll: readHostLine,
		rules: []rule{
			{reason: "host handshake", when: handshakeReceived, do: acknowledgeHost},
		},
	},
	StateIdleNoHost: {
		rules: []rule{
			{reason: "wheel turned", when: hallEdge, do: driveForward},
		},
	},
	StateWander: {
		rules: []rule{
			{reason: "both bumped", when: bumpedBoth, do: backOffBoth},
			{reason: "left bumped", when: bumpedLeft, do: backOffLeft},
			{reason: "right bumped", when: bumpedRight, do: backOffRight},
			{reason: "wander time up", when: after(func(t Timing) uint32 { return t.WanderMs }), do: stopToDetect},
		},
	},
	StateDetectingNoHost: {
		rules: []rule{
			{reason: "simulated detection", when: after(func(t Timing) uint32 { return t.DetectMs }), do: simulateDetection},
		},
	},
	StateDetecting: {
		onEnter: resetDetection,
		poll:    pollDetection,
		rules: []rule{
			{reason: "person detected", when: personDetected, do: approachPerson},
			{reason: "nobody found", when: after(func(t Timing) uint32 { return t.DetectMs }), do: driveForward},
		},
	},
	StateTurningAfterDetect: {
		rules: []rule{
			{reason: "turn done", when: detectTurnDone, do: backUpToFlash},
		},
	},
	StateBackingUpToFlash: {
		rules: []rule{
			{reason: "backed up", when: after(func(t Timing) uint32 { return t.BackUpFlashMs }), do: startFlash},
		},
	},
	StateFlashing: {
		rules: []rule{
			{reason: "flash done", when: after(func(t Timing) uint32 { return t.FlashMs }), do: endFlash},
		},
	},
	StateTurningAfterFlash: {
		rules: []rule{
			{reason: "turn done", when: after(func(t Timing) uint32 { return t.TurnMs }), do: resumeWander},
		},
	},
	StateBackingUpFromBump: {
		rules: []rule{
			{reason: "backed up", when: after(func(t Timing) uint32 { return t.BackUpBumpMs }), do: turnAwayFromBump},
		},
	},
}

// after returns a guard that fires once the state has lasted the selected limit.
func after(limit func(Timing) uint32) func(*Machine, *cycle) bool {
	return func(m *Machine, c *cycle) bool {
		return c.elapsed >= limit(m.cfg.Timing)
	}
}

// Idle

func readHostLine(m *Machine, c *cycle) {
	if line, ok := m.link.ReadLine(); ok {
		c.line = strings.TrimSpace(line)
	}
}

func handshakeReceived(_ *Machine, c *cycle) bool {
	return c.line == HandshakeToken
}

func acknowledgeHost(m *Machine, c *cycle) State {
	if err := m.link.WriteLine(ReadyToken); err != nil {
		log.Printf("fsm: ready acknowledgement failed: %v", err)
	}
	return driveForward(m, c)
}

func hallEdge(_ *Machine, c *cycle) bool {
	return c.ev.Hall()
}

func driveForward(m *Machine, _ *cycle) State {
	command("forward", m.act.Forward)
	return StateWander
}

// Wander

func bumpedBoth(_ *Machine, c *cycle) bool  { return c.ev.BumpLeft && c.ev.BumpRight }
func bumpedLeft(_ *Machine, c *cycle) bool  { return c.ev.BumpLeft }
func bumpedRight(_ *Machine, c *cycle) bool { return c.ev.BumpRight }

func backOffBoth(m *Machine, _ *cycle) State {
	m.bumps.Both = true
	return backOff(m)
}

func backOffLeft(m *Machine, _ *cycle) State {
	m.bumps.Left = true
	return backOff(m)
}

func backOffRight(m *Machine, _ *cycle) State {
	m.bumps.Right = true
	return backOff(m)
}

func backOff(m *Machine) State {
	command("backward", m.act.Backward)
	return StateBackingUpFromBump
}

func stopToDetect(m *Machine, _ *cycle) State {
	command("stop", m.act.Stop)
	if m.cfg.Mode == ModeHost {
		return StateDetecting
	}
	return StateDetectingNoHost
}

// Detect

func simulateDetection(m *Machine, _ *cycle) State {
	m.turnMs = m.cfg.Timing.SyntheticTurnMs
	return StateTurningAfterDetect
}

func resetDetection(m *Machine) {
	m.client.Reset(m.link)
}

func pollDetection(m *Machine, c *cycle) {
	c.sample = m.client.Poll(c.now, m.link)
}

func personDetected(_ *Machine, c *cycle) bool {
	return c.sample != 0
}

// approachPerson applies the geometry policy to the cycle's sample.
func approachPerson(m *Machine, c *cycle) State {
	m.client.Consume()
	d := m.cfg.Geometry.Decide(c.sample)
	if d.Centered {
		log.Printf("fsm: dx=%d centered enough, skipping turn", c.sample)
		c.note = fmt.Sprintf("person centered dx=%d", c.sample)
		command("backward", m.act.Backward)
		return StateBackingUpToFlash
	}

	m.turnMs = d.TurnMs
	log.Printf("fsm: dx=%d turn time %dms", c.sample, d.TurnMs)
	c.note = fmt.Sprintf("person at dx=%d", c.sample)
	if d.Left {
		command("turn left", m.act.TurnLeft)
	} else {
		command("turn right", m.act.TurnRight)
	}
	return StateTurningAfterDetect
}

func detectTurnDone(m *Machine, c *cycle) bool {
	return c.elapsed >= m.turnMs
}

func backUpToFlash(m *Machine, _ *cycle) State {
	m.turnMs = 0
	command("backward", m.act.Backward)
	return StateBackingUpToFlash
}

// Flash

func startFlash(m *Machine, _ *cycle) State {
	command("stop", m.act.Stop)
	command("signal on", m.sig.On)
	return StateFlashing
}

func endFlash(m *Machine, _ *cycle) State {
	command("turn right", m.act.TurnRight)
	command("signal off", m.sig.Off)
	return StateTurningAfterFlash
}

func resumeWander(_ *Machine, _ *cycle) State {
	return StateWander
}

// Bump recovery

// turnAwayFromBump consumes one bump flag in fixed priority order:
// both, then left, then right. With no flag set it still turns right.
func turnAwayFromBump(m *Machine, c *cycle) State {
	switch {
	case m.bumps.Both:
		m.bumps.Both = false
		c.note = "backed up, both bumped"
		command("turn right", m.act.TurnRight)
	case m.bumps.Left:
		m.bumps.Left = false
		c.note = "backed up, left bumped"
		command("turn left", m.act.TurnLeft)
	case m.bumps.Right:
		m.bumps.Right = false
		c.note = "backed up, right bumped"
		command("turn right", m.act.TurnRight)
	default:
		c.note = "backed up, no bump recorded"
		command("turn right", m.act.TurnRight)
	}
	return StateTurningAfterFlash
}
