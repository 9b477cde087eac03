// Package status provides a thread-safe status tracker for the rover daemon.
// It is written by the control loop and read by HTTP handlers and the
// MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/rover/internal/detect"
	"github.com/sweeney/rover/internal/fsm"
)

// NetworkInfo contains network state as reported by the host OS helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Mode        string
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Timing      fsm.Timing
	Broker      string
	HTTPAddr    string
	HostDevice  string
	ServoDevice string
}

// HistorySize is the number of recent transitions kept for display.
const HistorySize = 20

// Record is a transition with the wall time it was recorded at.
type Record struct {
	Time time.Time
	fsm.Transition
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode fsm.Mode
	// State is empty until the state machine is running.
	State      fsm.State
	StateSince time.Time
	// Last is the most recent transition; valid when Transitions > 0.
	Last        fsm.Transition
	Transitions int
	// Entries counts how often each state was entered.
	Entries map[fsm.State]int
	// Recent holds up to HistorySize transitions, oldest first.
	Recent []Record

	RotationsLeft  uint64
	RotationsRight uint64
	Detect         detect.Stats

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// InState returns how long the rover has been in its current state.
func (s Snapshot) InState() time.Duration {
	if s.StateSince.IsZero() {
		return 0
	}
	return s.Now.Sub(s.StateSince)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Entries:   make(map[fsm.State]int),
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Start records the initial state.
func (t *Tracker) Start(mode fsm.Mode, state fsm.State, at time.Time) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.State = state
	t.snap.StateSince = at
	t.snap.Entries[state]++
	t.mu.Unlock()
}

// RecordTransition records a state change that happened at wall time at.
func (t *Tracker) RecordTransition(tr fsm.Transition, at time.Time) {
	t.mu.Lock()
	t.snap.State = tr.To
	t.snap.StateSince = at
	t.snap.Last = tr
	t.snap.Transitions++
	t.snap.Entries[tr.To]++
	t.snap.Recent = append(t.snap.Recent, Record{Time: at, Transition: tr})
	if n := len(t.snap.Recent); n > HistorySize {
		t.snap.Recent = append(t.snap.Recent[:0:0], t.snap.Recent[n-HistorySize:]...)
	}
	t.mu.Unlock()
}

// UpdateInputs sets the accepted rotation edge totals.
func (t *Tracker) UpdateInputs(left, right uint64) {
	t.mu.Lock()
	t.snap.RotationsLeft = left
	t.snap.RotationsRight = right
	t.mu.Unlock()
}

// UpdateDetect sets the detection protocol counters.
func (t *Tracker) UpdateDetect(stats detect.Stats) {
	t.mu.Lock()
	t.snap.Detect = stats
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Entries = make(map[fsm.State]int, len(t.snap.Entries))
	for k, v := range t.snap.Entries {
		s.Entries[k] = v
	}
	s.Recent = append([]Record(nil), t.snap.Recent...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
