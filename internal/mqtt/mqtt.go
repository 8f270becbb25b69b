// Package mqtt publishes shot events, machine readings and lifecycle events.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/shot-monitor/internal/logic"
)

// Topics. Shot and system events are QoS 1; readings are QoS 0.
const (
	TopicEvents   = "espresso/shot-monitor/events"
	TopicReadings = "espresso/shot-monitor/readings"
	TopicSystem   = "espresso/shot-monitor/system"
)

// Publisher publishes to MQTT. Errors are reported, never fatal.
type Publisher interface {
	PublishShot(event ShotEvent) error
	PublishReading(event ReadingEvent) error
	PublishSystem(event SystemEvent) error
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ShotEvent is a debounced pump transition. ID is shared by the start and
// end event of the same shot.
type ShotEvent struct {
	ID        string
	Type      logic.TransitionType
	Timestamp time.Time
	Interval  logic.RunInterval
}

// ReadingEvent is one decoded telemetry record.
type ReadingEvent struct {
	Timestamp time.Time
	Reading   logic.MachineReading
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "DISPLAY_SLEEP"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// ShotPayload is the JSON envelope on TopicEvents.
type ShotPayload struct {
	Shot ShotPayloadInner `json:"shot"`
}

// ShotPayloadInner contains the shot event details.
type ShotPayloadInner struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// FormatShotPayload creates the JSON payload for a shot event.
func FormatShotPayload(event ShotEvent) ([]byte, error) {
	inner := ShotPayloadInner{
		ID:        event.ID,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		StartedAt: event.Interval.Start.UTC().Format(time.RFC3339Nano),
	}
	if !event.Interval.End.IsZero() {
		inner.EndedAt = event.Interval.End.UTC().Format(time.RFC3339Nano)
		inner.DurationMs = event.Interval.Duration.Milliseconds()
	}
	return json.Marshal(ShotPayload{Shot: inner})
}

// ReadingPayload is the JSON envelope on TopicReadings.
// Fields the machine did not report are omitted.
type ReadingPayload struct {
	Reading ReadingPayloadInner `json:"reading"`
}

// ReadingPayloadInner contains the reading fields.
type ReadingPayloadInner struct {
	Timestamp   string `json:"timestamp"`
	Steam       *int   `json:"steam,omitempty"`
	SteamTarget *int   `json:"steam_target,omitempty"`
	HX          *int   `json:"hx,omitempty"`
	Heating     *bool  `json:"heating,omitempty"`
}

// FormatReadingPayload creates the JSON payload for a reading.
func FormatReadingPayload(event ReadingEvent) ([]byte, error) {
	r := event.Reading
	return json.Marshal(ReadingPayload{Reading: ReadingPayloadInner{
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		Steam:       r.CurrentSteamTemp,
		SteamTarget: r.TargetSteamTemp,
		HX:          r.HXTemp,
		Heating:     r.HeatingOn,
	}})
}

// SystemPayload is used for simple events (LWT, RECONNECTED) that don't
// carry a full status snapshot.
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
