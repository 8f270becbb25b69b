package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/shot-monitor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Pump          string        `json:"pump"`
	Display       string        `json:"display"`
	Ready         bool          `json:"ready"`
	Shot          ShotJSON      `json:"shot"`
	LastShot      *LastShotJSON `json:"last_shot,omitempty"`
	Counts        CountsJSON    `json:"shot_counts"`
	Machine       *MachineJSON  `json:"machine,omitempty"`
	Telemetry     TelemetryJSON `json:"telemetry"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ShotJSON describes the shot in progress, or the last one when idle.
type ShotJSON struct {
	Running   bool   `json:"running"`
	ElapsedMs int64  `json:"elapsed_ms"`
	StartedAt string `json:"started_at,omitempty"`
}

// LastShotJSON is the most recently closed shot.
type LastShotJSON struct {
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
	DurationMs int64  `json:"duration_ms"`
}

// CountsJSON is the JSON representation of shot counts.
type CountsJSON struct {
	Started int `json:"started"`
	Closed  int `json:"closed"`
}

// MachineJSON is the newest telemetry reading. Absent fields were not reported.
type MachineJSON struct {
	Steam       *int   `json:"steam,omitempty"`
	SteamTarget *int   `json:"steam_target,omitempty"`
	HX          *int   `json:"hx,omitempty"`
	Heating     *bool  `json:"heating,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

// TelemetryJSON reports the serial feed health.
type TelemetryJSON struct {
	Enabled     bool   `json:"enabled"`
	Stale       bool   `json:"stale"`
	LastSeen    string `json:"last_seen,omitempty"`
	Lines       int    `json:"lines"`
	Resets      int    `json:"resets"`
	Truncations int    `json:"truncations"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
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
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	MinShotMs   int64  `json:"min_shot_ms"`
	CooldownMs  int64  `json:"cooldown_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
	SerialPort  string `json:"serial_port,omitempty"`
	History     bool   `json:"history"`
}

// PumpState returns the run state, or UNKNOWN before the first tick.
func (s Snapshot) PumpState() string {
	if !s.Updated || s.Monitor.Run == "" {
		return "UNKNOWN"
	}
	return string(s.Monitor.Run)
}

// DisplayState returns ASLEEP once the panel has been powered down.
func (s Snapshot) DisplayState() string {
	if s.Monitor.Asleep {
		return "ASLEEP"
	}
	return "AWAKE"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	m := snap.Monitor
	inner := StatusInner{
		Pump:    snap.PumpState(),
		Display: snap.DisplayState(),
		Ready:   snap.Updated,
		Shot: ShotJSON{
			Running:   m.Run == logic.StateRunning,
			ElapsedMs: m.Elapsed.Milliseconds(),
		},
		Counts: CountsJSON{
			Started: m.Counts.Started,
			Closed:  m.Counts.Closed,
		},
		Telemetry: TelemetryJSON{
			Enabled:     snap.Config.SerialPort != "",
			Stale:       snap.Telemetry.Stale,
			Lines:       snap.Telemetry.Lines,
			Resets:      snap.Telemetry.Resets,
			Truncations: m.LineTruncations,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			MinShotMs:   snap.Config.MinShotMs,
			CooldownMs:  snap.Config.CooldownMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
			SerialPort:  snap.Config.SerialPort,
			History:     snap.Config.History,
		},
	}

	if m.Current.Open() {
		inner.Shot.StartedAt = formatTime(m.Current.Start)
	}
	if !m.Last.End.IsZero() {
		inner.LastShot = &LastShotJSON{
			StartedAt:  formatTime(m.Last.Start),
			EndedAt:    formatTime(m.Last.End),
			DurationMs: m.Last.Duration.Milliseconds(),
		}
	}
	if m.Reading != nil {
		inner.Machine = &MachineJSON{
			Steam:       m.Reading.CurrentSteamTemp,
			SteamTarget: m.Reading.TargetSteamTemp,
			HX:          m.Reading.HXTemp,
			Heating:     m.Reading.HeatingOn,
			UpdatedAt:   formatTime(m.ReadingAt),
		}
	}
	if !snap.Telemetry.LastSeen.IsZero() {
		inner.Telemetry.LastSeen = formatTime(snap.Telemetry.LastSeen)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
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
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
