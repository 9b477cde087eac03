package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rover/internal/fsm"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string          `json:"event,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Mode           string          `json:"mode"`
	State          string          `json:"state"`
	InStateMs      int64           `json:"in_state_ms"`
	LastTransition *TransitionJSON `json:"last_transition,omitempty"`
	UptimeSeconds  int64           `json:"uptime_seconds"`
	StartTime      string          `json:"start_time"`
	Timestamp      string          `json:"timestamp"`
	MQTT           MQTTStatus      `json:"mqtt"`
	Counts         CountsJSON      `json:"counts"`
	Detect         DetectJSON      `json:"detect"`
	Network        *NetworkJSON    `json:"network,omitempty"`
	Config         ConfigJSON      `json:"config"`
}

// TransitionJSON is the JSON representation of a transition.
type TransitionJSON struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON holds the transition and sensor totals.
type CountsJSON struct {
	Transitions    int            `json:"transitions"`
	Entries        map[string]int `json:"state_entries"`
	RotationsLeft  uint64         `json:"rotations_left"`
	RotationsRight uint64         `json:"rotations_right"`
}

// DetectJSON holds the detection protocol counters.
type DetectJSON struct {
	Requests  uint64 `json:"requests"`
	Replies   uint64 `json:"replies"`
	Timeouts  uint64 `json:"timeouts"`
	BadLines  uint64 `json:"bad_lines"`
	LastReply int    `json:"last_reply"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mode        string `json:"mode"`
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	WanderMs    uint32 `json:"wander_ms"`
	DetectMs    uint32 `json:"detect_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	HostDevice  string `json:"host_device,omitempty"`
	ServoDevice string `json:"servo_device,omitempty"`
}

// StateOrUnknown returns the state name, or UNKNOWN before the machine runs.
func StateOrUnknown(s fsm.State) string {
	if s == "" {
		return "UNKNOWN"
	}
	return string(s)
}

func buildInner(snap Snapshot) StatusInner {
	entries := make(map[string]int, len(snap.Entries))
	for k, v := range snap.Entries {
		entries[string(k)] = v
	}

	inner := StatusInner{
		Mode:          string(snap.Mode),
		State:         StateOrUnknown(snap.State),
		InStateMs:     snap.InState().Milliseconds(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Transitions:    snap.Transitions,
			Entries:        entries,
			RotationsLeft:  snap.RotationsLeft,
			RotationsRight: snap.RotationsRight,
		},
		Detect: DetectJSON{
			Requests:  snap.Detect.Requests,
			Replies:   snap.Detect.Replies,
			Timeouts:  snap.Detect.Timeouts,
			BadLines:  snap.Detect.BadLines,
			LastReply: snap.Detect.LastReply,
		},
		Config: ConfigJSON{
			Mode:        snap.Config.Mode,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			WanderMs:    snap.Config.Timing.WanderMs,
			DetectMs:    snap.Config.Timing.DetectMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			HostDevice:  snap.Config.HostDevice,
			ServoDevice: snap.Config.ServoDevice,
		},
	}
	if snap.Transitions > 0 {
		inner.LastTransition = &TransitionJSON{
			From:   string(snap.Last.From),
			To:     string(snap.Last.To),
			Reason: snap.Last.Reason,
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// HistoryJSON is the recent transitions document.
type HistoryJSON struct {
	Transitions []RecordJSON `json:"transitions"`
}

// RecordJSON is one recorded transition.
type RecordJSON struct {
	Timestamp string `json:"timestamp"`
	TickMs    uint32 `json:"tick_ms"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason"`
}

// FormatHistory returns the recent transitions, newest first.
func FormatHistory(snap Snapshot) []byte {
	h := HistoryJSON{Transitions: make([]RecordJSON, 0, len(snap.Recent))}
	for i := len(snap.Recent) - 1; i >= 0; i-- {
		r := snap.Recent[i]
		h.Transitions = append(h.Transitions, RecordJSON{
			Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
			TickMs:    uint32(r.At),
			From:      string(r.From),
			To:        string(r.To),
			Reason:    r.Reason,
		})
	}
	data, _ := json.MarshalIndent(h, "", "  ")
	return data
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
