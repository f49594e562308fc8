// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pump-controller/internal/logic"
)

// TopicPump is the MQTT topic for pump transition events.
const TopicPump = "farm/irrigation/pump/events"

// TopicTelemetry is the MQTT topic for periodic telemetry snapshots.
const TopicTelemetry = "farm/irrigation/telemetry"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "farm/irrigation/system"

// Publisher publishes controller events to MQTT.
type Publisher interface {
	// PublishPump sends a pump transition event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishPump(event PumpEvent) error

	// PublishTelemetry sends a pre-formatted telemetry snapshot.
	PublishTelemetry(payload []byte) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// PumpEvent describes a pump transition for publication.
type PumpEvent struct {
	Timestamp time.Time
	On        bool
	Reason    logic.Reason
	Mode      logic.Mode
	SoilPct   int
	TankEmpty bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the pump event message structure.
type Payload struct {
	Pump PumpPayload `json:"pump"`
}

// PumpPayload contains the pump transition details.
type PumpPayload struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	Reason    string `json:"reason"`
	Mode      string `json:"mode"`
	SoilPct   int    `json:"soil_pct"`
	TankEmpty bool   `json:"tank_empty"`
}

// FormatPumpPayload creates the JSON payload for a pump event.
func FormatPumpPayload(event PumpEvent) ([]byte, error) {
	state := "OFF"
	if event.On {
		state = "ON"
	}
	payload := Payload{
		Pump: PumpPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			State:     state,
			Reason:    string(event.Reason),
			Mode:      string(event.Mode),
			SoilPct:   event.SoilPct,
			TankEmpty: event.TankEmpty,
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
