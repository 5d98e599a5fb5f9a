package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensor-player/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	State         int          `json:"state"`
	NumStates     int          `json:"num_states"`
	Media         MediaJSON    `json:"media"`
	Button        string       `json:"button"`
	Flags         FlagsJSON    `json:"flags"`
	Sensors       []bool       `json:"sensors_occupied"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MediaJSON reports the current state's media.
type MediaJSON struct {
	Ref    string `json:"ref"`
	Active bool   `json:"active"`
}

// FlagsJSON reports pending one-shot flags.
type FlagsJSON struct {
	Skip  bool `json:"skip"`
	Reset bool `json:"reset"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Transitions int `json:"transitions"`
	Skips       int `json:"skips"`
	Resets      int `json:"resets"`
	MediaStarts int `json:"media_starts"`
	Errors      int `json:"errors"`
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
	StatesFile  string `json:"states_file"`
	PollMs      int64  `json:"poll_ms"`
	ConfirmMs   int64  `json:"confirm_ms"`
	HoldMs      int64  `json:"hold_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

// Occupied reports, per sensor, whether it reads LOW (inputs are pulled up).
func Occupied(snap logic.Snapshot) []bool {
	out := make([]bool, len(snap))
	for i, l := range snap {
		out[i] = l == logic.Low
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Loaded,
		State:         snap.State,
		NumStates:     snap.NumStates,
		Media:         MediaJSON{Ref: snap.Media, Active: snap.MediaActive},
		Button:        snap.Button.String(),
		Flags:         FlagsJSON{Skip: snap.Flags.Skip, Reset: snap.Flags.Reset},
		Sensors:       Occupied(snap.Sensors),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Transitions: snap.Counts.Transitions,
			Skips:       snap.Counts.Skips,
			Resets:      snap.Counts.Resets,
			MediaStarts: snap.Counts.MediaStarts,
			Errors:      snap.Counts.Errors,
		},
		Config: ConfigJSON{
			StatesFile:  snap.Config.StatesFile,
			PollMs:      snap.Config.PollMs,
			ConfirmMs:   snap.Config.ConfirmMs,
			HoldMs:      snap.Config.HoldMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
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
