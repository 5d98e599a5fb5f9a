// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// DefaultTopic is the topic prefix used when none is configured.
const DefaultTopic = "sensor-player"

// Event names carried in payloads.
const (
	EventStateChange = "STATE_CHANGE"
	EventSkip        = "SKIP"
	EventReset       = "RESET"
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
)

// EventsTopic returns the topic for transition and button events under prefix.
func EventsTopic(prefix string) string {
	return prefix + "/events"
}

// SystemTopic returns the topic for lifecycle events under prefix.
func SystemTopic(prefix string) string {
	return prefix + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishTransition sends a committed state change.
	// Returns error if publishing fails (should not crash the process).
	PublishTransition(event TransitionEvent) error

	// PublishButton sends a recognised button gesture.
	PublishButton(event ButtonEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TransitionEvent is a committed state change.
type TransitionEvent struct {
	Timestamp time.Time
	From      int
	To        int
	Media     string // media ref of the entered state, may be empty
}

// ButtonEvent is a button gesture and the state it happened in.
type ButtonEvent struct {
	Timestamp time.Time
	Kind      string // EventSkip or EventReset
	State     int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Player PlayerPayload `json:"player"`
}

// PlayerPayload contains the event details. Pointer fields are omitted
// when the event does not carry them.
type PlayerPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	From      *int    `json:"from,omitempty"`
	To        *int    `json:"to,omitempty"`
	State     *int    `json:"state,omitempty"`
	Media     *string `json:"media,omitempty"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatTransitionPayload creates the JSON payload for a state change.
func FormatTransitionPayload(event TransitionEvent) ([]byte, error) {
	from, to, media := event.From, event.To, event.Media
	return json.Marshal(Payload{
		Player: PlayerPayload{
			Timestamp: timestamp(event.Timestamp),
			Event:     EventStateChange,
			From:      &from,
			To:        &to,
			Media:     &media,
		},
	})
}

// FormatButtonPayload creates the JSON payload for a button gesture.
func FormatButtonPayload(event ButtonEvent) ([]byte, error) {
	state := event.State
	return json.Marshal(Payload{
		Player: PlayerPayload{
			Timestamp: timestamp(event.Timestamp),
			Event:     event.Kind,
			State:     &state,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: timestamp(event.Timestamp),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishTransition(TransitionEvent) error { return nil }
func (NopPublisher) PublishButton(ButtonEvent) error         { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error         { return nil }
func (NopPublisher) Close() error                            { return nil }
func (NopPublisher) IsConnected() bool                       { return false }
