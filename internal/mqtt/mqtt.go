// Package mqtt publishes the rover's transition trace and lifecycle events,
// and receives person detections for the detector host.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/rover/internal/fsm"
	"github.com/sweeney/rover/internal/hostlink"
)

// TopicTransitions is the MQTT topic for state machine transitions.
const TopicTransitions = "rover/fsm/transitions"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "rover/system"

// TopicDetections carries person detections from the vision process.
const TopicDetections = "rover/detector/person"

// Publisher publishes rover events to MQTT.
type Publisher interface {
	// Publish sends a state transition. Failures must not affect control.
	Publish(event TransitionEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TransitionEvent is one state change with its wall-clock time.
type TransitionEvent struct {
	Timestamp time.Time
	Mode      fsm.Mode
	fsm.Transition
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the transition message.
type Payload struct {
	Transition TransitionPayload `json:"transition"`
}

// TransitionPayload contains the transition details.
type TransitionPayload struct {
	Timestamp string `json:"timestamp"`
	Mode      string `json:"mode"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason"`
	TickMs    uint32 `json:"tick_ms"`
}

// FormatPayload creates the JSON payload for a transition.
func FormatPayload(event TransitionEvent) ([]byte, error) {
	payload := Payload{
		Transition: TransitionPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Mode:      string(event.Mode),
			From:      string(event.From),
			To:        string(event.To),
			Reason:    event.Reason,
			TickMs:    uint32(event.At),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// DetectionPayload is a detection message from the vision process.
// A null person means nobody is in view.
type DetectionPayload struct {
	Person *PersonPayload `json:"person"`
}

// PersonPayload is the largest person box in frame pixels.
type PersonPayload struct {
	BBox [4]int  `json:"bbox"`
	Conf float64 `json:"conf"`
}

// ParseDetection decodes a detection message.
func ParseDetection(data []byte) (hostlink.Box, bool, error) {
	var p DetectionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return hostlink.Box{}, false, fmt.Errorf("decode detection: %w", err)
	}
	if p.Person == nil {
		return hostlink.Box{}, false, nil
	}
	b := p.Person.BBox
	if b[2] < b[0] || b[3] < b[1] {
		return hostlink.Box{}, false, fmt.Errorf("decode detection: inverted box %v", b)
	}
	return hostlink.Box{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3], Conf: p.Person.Conf}, true, nil
}
