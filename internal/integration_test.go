package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/rover/internal/detect"
	"github.com/sweeney/rover/internal/fsm"
	"github.com/sweeney/rover/internal/gpio"
	"github.com/sweeney/rover/internal/hostlink"
	"github.com/sweeney/rover/internal/inputs"
	"github.com/sweeney/rover/internal/logic"
	"github.com/sweeney/rover/internal/mqtt"
	"github.com/sweeney/rover/internal/serialio"
	"github.com/sweeney/rover/internal/status"
	"github.com/sweeney/rover/internal/tick"
)

const cycleMs = 10

var wallStart = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// rover wires the control path the way the daemon does, with fakes at the
// hardware and broker edges.
type rover struct {
	t *testing.T

	mode      fsm.Mode
	reader    *gpio.FakeReader
	hallLeft  *logic.EdgeFilter
	hallRight *logic.EdgeFilter
	source    *inputs.Source
	drive     *fsm.FakeActuator
	led       *gpio.FakeLED
	link      *serialio.FakeLink
	client    *detect.Client
	machine   *fsm.Machine
	pub       *mqtt.FakePublisher
	tracker   *status.Tracker

	now tick.Millis
	// pump runs after every cycle when set.
	pump func()
}

func newRover(t *testing.T, mode fsm.Mode) *rover {
	t.Helper()
	r := &rover{
		t:         t,
		mode:      mode,
		reader:    gpio.NewFakeReader([]gpio.Sample{gpio.Resting}),
		hallLeft:  logic.NewEdgeFilter(logic.DefaultMinEdgeIntervalUs),
		hallRight: logic.NewEdgeFilter(logic.DefaultMinEdgeIntervalUs),
		drive:     &fsm.FakeActuator{},
		led:       &gpio.FakeLED{},
		pub:       mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(wallStart, status.Config{Mode: string(mode)}),
		now:       1000,
	}

	var err error
	r.source, err = inputs.NewSource(inputs.DefaultConfig, r.reader, r.hallLeft, r.hallRight, r.now)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	var link fsm.Link
	if mode == fsm.ModeHost {
		r.link = serialio.NewFakeLink()
		r.client = detect.NewClient(detect.DefaultClientConfig)
		link = r.link
	}
	r.machine, err = fsm.New(fsm.DefaultConfig(mode), r.drive, r.led, link, r.client, r.now)
	if err != nil {
		t.Fatalf("fsm.New: %v", err)
	}
	r.tracker.Start(mode, r.machine.State(), wallStart)
	return r
}

func (r *rover) wall() time.Time {
	return wallStart.Add(time.Duration(r.now-1000) * time.Millisecond)
}

// cycle runs one control cycle and publishes any transition.
func (r *rover) cycle() {
	snap, err := r.source.Poll(r.now)
	if err != nil {
		r.t.Fatalf("poll at %d: %v", r.now, err)
	}
	if tr, ok := r.machine.Step(snap, r.now); ok {
		r.tracker.RecordTransition(tr, r.wall())
		if err := r.pub.Publish(mqtt.TransitionEvent{Timestamp: r.wall(), Mode: r.mode, Transition: tr}); err != nil {
			r.t.Fatalf("publish: %v", err)
		}
	}
	left, right := r.source.RotationCounts()
	r.tracker.UpdateInputs(left, right)
	if r.client != nil {
		r.tracker.UpdateDetect(r.client.Stats())
	}
	if r.pump != nil {
		r.pump()
	}
	r.now += cycleMs
}

// runUntil cycles until the machine reaches want, failing after limitMs.
func (r *rover) runUntil(want fsm.State, limitMs int) {
	r.t.Helper()
	for elapsed := 0; elapsed <= limitMs; elapsed += cycleMs {
		r.cycle()
		if r.machine.State() == want {
			return
		}
	}
	r.t.Fatalf("still in %s after %dms, wanted %s", r.machine.State(), limitMs, want)
}

// press holds the bump lines at the given levels from the next cycle on.
func (r *rover) press(left, right logic.Level) {
	r.reader.Samples = []gpio.Sample{{Left: left, Right: right}}
	r.reader.Reset()
}

func (r *rover) wheelTurned() {
	r.hallLeft.Accept(tick.Micros(uint32(r.now) * 1000))
}

func (r *rover) visited() []fsm.State {
	out := make([]fsm.State, len(r.pub.Events))
	for i, e := range r.pub.Events {
		out[i] = e.To
	}
	return out
}

func (r *rover) lastEvent() mqtt.TransitionEvent {
	r.t.Helper()
	if len(r.pub.Events) == 0 {
		r.t.Fatal("no transitions published")
	}
	return r.pub.Events[len(r.pub.Events)-1]
}

func equalStates(a, b []fsm.State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// attachHost connects the rover's link to a detector host answering from
// cache, moving lines in both directions after every cycle.
func attachHost(r *rover, cache *mqtt.DetectionCache) (*hostlink.Responder, *serialio.FakeLink) {
	hostSide := serialio.NewFakeLink()
	resp := hostlink.NewResponder(hostSide, cache, hostlink.DefaultGate)
	var toHost, toRover int
	r.pump = func() {
		for ; toHost < len(r.link.Written); toHost++ {
			hostSide.Push(r.link.Written[toHost])
		}
		for {
			line, ok := hostSide.ReadLine()
			if !ok {
				break
			}
			resp.Handle(line)
		}
		for ; toRover < len(hostSide.Written); toRover++ {
			r.link.Push(hostSide.Written[toRover])
		}
	}
	return resp, hostSide
}

func TestIntegrationStandaloneCycle(t *testing.T) {
	r := newRover(t, fsm.ModeStandalone)

	for i := 0; i < 10; i++ {
		r.cycle()
	}
	if r.machine.State() != fsm.StateIdleNoHost {
		t.Fatalf("expected to wait for a wheel turn, in %s", r.machine.State())
	}

	r.wheelTurned()
	r.runUntil(fsm.StateWander, cycleMs)
	wanderAt := r.lastEvent().At

	r.runUntil(fsm.StateDetectingNoHost, 6000)
	if got := r.lastEvent().At.Since(wanderAt); got != fsm.DefaultTiming.WanderMs {
		t.Errorf("wander lasted %dms, want %d", got, fsm.DefaultTiming.WanderMs)
	}

	r.runUntil(fsm.StateTurningAfterDetect, 5000)
	if r.machine.TurnMs() != fsm.DefaultTiming.SyntheticTurnMs {
		t.Errorf("synthetic turn: got %dms", r.machine.TurnMs())
	}
	r.runUntil(fsm.StateWander, 10000)

	want := []fsm.State{
		fsm.StateWander,
		fsm.StateDetectingNoHost,
		fsm.StateTurningAfterDetect,
		fsm.StateBackingUpToFlash,
		fsm.StateFlashing,
		fsm.StateTurningAfterFlash,
		fsm.StateWander,
	}
	if got := r.visited(); !equalStates(got, want) {
		t.Errorf("visited %v, want %v", got, want)
	}
	wantCalls := []string{"forward", "stop", "backward", "stop", "turn_right"}
	if !equalStrings(r.drive.Calls, wantCalls) {
		t.Errorf("drive calls %v, want %v", r.drive.Calls, wantCalls)
	}
	if !equalStrings(r.led.Calls, []string{"on", "off"}) || r.led.Lit {
		t.Errorf("led calls %v, lit=%v", r.led.Calls, r.led.Lit)
	}

	snap := r.tracker.Snapshot()
	if snap.State != fsm.StateWander || snap.Transitions != len(want) {
		t.Errorf("tracker: state %s, %d transitions", snap.State, snap.Transitions)
	}
	if snap.Entries[fsm.StateWander] != 2 || snap.Entries[fsm.StateIdleNoHost] != 1 {
		t.Errorf("tracker entries: %v", snap.Entries)
	}
	if snap.RotationsLeft != 1 {
		t.Errorf("expected one rotation edge, got %d", snap.RotationsLeft)
	}
}

func TestIntegrationBumpRecovery(t *testing.T) {
	r := newRover(t, fsm.ModeStandalone)
	r.wheelTurned()
	r.runUntil(fsm.StateWander, cycleMs)

	r.press(logic.Low, logic.High)
	r.runUntil(fsm.StateBackingUpFromBump, 200)
	r.press(logic.High, logic.High)
	if r.drive.Last() != "backward" {
		t.Errorf("expected backward on bump, got %s", r.drive.Last())
	}

	r.runUntil(fsm.StateTurningAfterFlash, 4000)
	if r.drive.Last() != "turn_left" {
		t.Errorf("expected turn away to the left, got %s", r.drive.Last())
	}
	ev := r.lastEvent()
	if ev.Reason != "backed up, left bumped" {
		t.Errorf("reason: got %q", ev.Reason)
	}

	data, err := mqtt.FormatPayload(ev)
	if err != nil {
		t.Fatal(err)
	}
	var payload mqtt.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	tp := payload.Transition
	if tp.Mode != "standalone" || tp.From != "BACK_UP_BUMP" || tp.To != "TURN" {
		t.Errorf("unexpected payload %s", data)
	}
	if tp.TickMs != uint32(ev.At) {
		t.Errorf("tick_ms: got %d, want %d", tp.TickMs, ev.At)
	}

	r.runUntil(fsm.StateWander, 4000)
	if r.machine.Bumps() != (fsm.BumpMemory{}) {
		t.Errorf("bump flag left set: %+v", r.machine.Bumps())
	}
}

func TestIntegrationBounceIgnored(t *testing.T) {
	r := newRover(t, fsm.ModeStandalone)
	r.wheelTurned()
	r.runUntil(fsm.StateWander, cycleMs)

	// Chatter shorter than the debounce window.
	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			r.press(logic.Low, logic.Low)
		} else {
			r.press(logic.High, logic.High)
		}
		r.cycle()
	}
	if r.machine.State() != fsm.StateWander {
		t.Errorf("bounce caused a transition to %s", r.machine.State())
	}
}

func TestIntegrationHostDetection(t *testing.T) {
	r := newRover(t, fsm.ModeHost)

	now := wallStart
	cache := mqtt.NewDetectionCache(time.Second, func() time.Time { return now })
	if err := cache.Update([]byte(`{"person":{"bbox":[440,100,640,360],"conf":0.87}}`)); err != nil {
		t.Fatal(err)
	}
	resp, _ := attachHost(r, cache)

	for i := 0; i < 5; i++ {
		r.cycle()
	}
	if r.machine.State() != fsm.StateIdle {
		t.Fatalf("expected IDLE before handshake, got %s", r.machine.State())
	}

	r.link.Push(hostlink.HandshakeToken)
	r.runUntil(fsm.StateWander, cycleMs)
	if r.link.Count(fsm.ReadyToken) != 1 {
		t.Errorf("expected one ready reply, got %v", r.link.Written)
	}

	r.runUntil(fsm.StateDetecting, 6000)
	r.runUntil(fsm.StateTurningAfterDetect, 500)

	dx := hostlink.DefaultGate.Offset(cache.Largest())
	if dx != 220 {
		t.Fatalf("offset: got %d", dx)
	}
	if got := r.lastEvent().Reason; got != "person at dx=220" {
		t.Errorf("reason: got %q", got)
	}
	if r.drive.Last() != "turn_right" {
		t.Errorf("expected turn_right, got %s", r.drive.Last())
	}
	want := detect.DefaultGeometry.Decide(dx).TurnMs
	if r.machine.TurnMs() != want {
		t.Errorf("turn: got %dms, want %d", r.machine.TurnMs(), want)
	}

	r.runUntil(fsm.StateWander, 10000)
	if resp.Answered() == 0 {
		t.Error("host never answered")
	}
	stats := r.tracker.Snapshot().Detect
	if stats.Replies == 0 || stats.LastReply != 220 {
		t.Errorf("detect stats: %+v", stats)
	}
}

func TestIntegrationHostNobody(t *testing.T) {
	r := newRover(t, fsm.ModeHost)
	now := wallStart
	cache := mqtt.NewDetectionCache(time.Second, func() time.Time { return now })
	if err := cache.Update([]byte(`{"person":null}`)); err != nil {
		t.Fatal(err)
	}
	resp, _ := attachHost(r, cache)

	r.link.Push(hostlink.HandshakeToken)
	r.runUntil(fsm.StateWander, cycleMs)
	r.runUntil(fsm.StateDetecting, 6000)
	r.runUntil(fsm.StateWander, 5000)

	if got := r.lastEvent().Reason; got != "nobody found" {
		t.Errorf("reason: got %q", got)
	}
	// Requests are paced more than 200ms apart across the 4s window.
	if n := resp.Answered(); n < 10 || n > 25 {
		t.Errorf("expected paced requests, host answered %d", n)
	}
	if r.led.Lit || len(r.led.Calls) != 0 {
		t.Errorf("led should not flash without a person: %v", r.led.Calls)
	}
}

func TestIntegrationStaleDetectionIgnored(t *testing.T) {
	r := newRover(t, fsm.ModeHost)
	now := wallStart
	cache := mqtt.NewDetectionCache(500*time.Millisecond, func() time.Time { return now })
	if err := cache.Update([]byte(`{"person":{"bbox":[0,0,200,300],"conf":0.9}}`)); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Second)
	attachHost(r, cache)

	r.link.Push(hostlink.HandshakeToken)
	r.runUntil(fsm.StateWander, cycleMs)
	r.runUntil(fsm.StateDetecting, 6000)
	r.runUntil(fsm.StateWander, 5000)

	if got := r.lastEvent().Reason; got != "nobody found" {
		t.Errorf("stale detection acted on: %q", got)
	}
}

func TestIntegrationStatusJSON(t *testing.T) {
	r := newRover(t, fsm.ModeStandalone)
	r.wheelTurned()
	r.runUntil(fsm.StateWander, cycleMs)

	var out status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(r.tracker.Snapshot()), &out); err != nil {
		t.Fatal(err)
	}
	if out.Status.State != "WANDER" || out.Status.Mode != "standalone" {
		t.Errorf("unexpected status %+v", out.Status)
	}
	if out.Status.LastTransition == nil || out.Status.LastTransition.From != "IDLE_NO_HOST" {
		t.Errorf("last transition: %+v", out.Status.LastTransition)
	}
}
