package fsm

// FakeActuator records motion commands for tests.
type FakeActuator struct {
	Calls []string
	// Err, if set, is returned by every command (the call is still recorded).
	Err error
}

func (a *FakeActuator) record(name string) error {
	a.Calls = append(a.Calls, name)
	return a.Err
}

func (a *FakeActuator) Forward() error   { return a.record("forward") }
func (a *FakeActuator) Backward() error  { return a.record("backward") }
func (a *FakeActuator) Stop() error      { return a.record("stop") }
func (a *FakeActuator) TurnLeft() error  { return a.record("turn_left") }
func (a *FakeActuator) TurnRight() error { return a.record("turn_right") }

// Last returns the most recent command, or "" if none.
func (a *FakeActuator) Last() string {
	if len(a.Calls) == 0 {
		return ""
	}
	return a.Calls[len(a.Calls)-1]
}

// Reset forgets recorded commands.
func (a *FakeActuator) Reset() {
	a.Calls = nil
}
