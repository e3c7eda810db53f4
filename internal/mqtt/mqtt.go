// Package mqtt provides MQTT publishing and inbound control with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/phase-trigger/internal/phase"
)

// Topic is the MQTT topic for trigger events.
const Topic = "phase/trigger/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "phase/trigger/system"

// TopicControl is the MQTT topic the daemon subscribes to for runtime
// reconfiguration and inbound digital-line transitions.
const TopicControl = "phase/trigger/control"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a trigger event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event TriggerEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ControlSource delivers inbound control messages.
type ControlSource interface {
	// Controls returns the channel control messages arrive on.
	Controls() <-chan ControlMessage
}

// TriggerEvent wraps a detector event with the stream it belongs to and the
// wall-clock time it was observed.
type TriggerEvent struct {
	Timestamp time.Time
	Stream    uint16
	Event     phase.Event
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure for trigger events.
type Payload struct {
	Trigger TriggerPayload `json:"trigger"`
}

// TriggerPayload contains the trigger event details.
type TriggerPayload struct {
	Timestamp string `json:"timestamp"`
	Stream    uint16 `json:"stream"`
	Sample    int64  `json:"sample"`
	Line      int    `json:"line"`
	Kind      string `json:"kind"`
	State     bool   `json:"state"`
}

// FormatPayload creates the JSON payload for a trigger event.
func FormatPayload(event TriggerEvent) ([]byte, error) {
	payload := Payload{
		Trigger: TriggerPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Stream:    event.Stream,
			Sample:    event.Event.SampleNumber,
			Line:      event.Event.Line,
			Kind:      event.Event.Kind.String(),
			State:     event.Event.State(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
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
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// TTLTransition is an inbound digital-line transition delivered over the
// control topic: line id, new state, and a snapshot of the full digital word.
type TTLTransition struct {
	Line  int    `json:"line"`
	State bool   `json:"state"`
	Word  uint64 `json:"word"`
}

// ControlMessage is a runtime command received on the control topic.
// Exactly one of Set or TTL is populated:
//
//	{"stream": 1, "set": "phase", "value": "TROUGH"}
//	{"stream": 1, "set": "ttl_out", "value": 4}
//	{"stream": 1, "ttl": {"line": 2, "state": true, "word": 4}}
type ControlMessage struct {
	Stream uint16          `json:"stream"`
	Set    string          `json:"set,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	TTL    *TTLTransition  `json:"ttl,omitempty"`
}

// ParseControl decodes and validates a control payload.
func ParseControl(payload []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("parse control: %w", err)
	}
	if (msg.Set == "") == (msg.TTL == nil) {
		return ControlMessage{}, fmt.Errorf("control needs exactly one of set/ttl")
	}
	return msg, nil
}

// IntValue decodes the message value as an integer (used for "channel",
// "ttl_out", and "gate_line" commands).
func (m ControlMessage) IntValue() (int, error) {
	var v int
	if err := json.Unmarshal(m.Value, &v); err != nil {
		return 0, fmt.Errorf("control %q value: %w", m.Set, err)
	}
	return v, nil
}

// StringValue decodes the message value as a string (used for "phase").
func (m ControlMessage) StringValue() (string, error) {
	var v string
	if err := json.Unmarshal(m.Value, &v); err != nil {
		return "", fmt.Errorf("control %q value: %w", m.Set, err)
	}
	return v, nil
}
