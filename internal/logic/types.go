// Package logic contains the pure state tracking and data shaping for the shot monitor.
// This package has NO external dependencies (no GPIO, serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// RunState represents whether the pump is running.
type RunState string

const (
	StateIdle    RunState = "IDLE"
	StateRunning RunState = "RUNNING"
)

// RunInterval is one span of pump activity.
// End is zero while the interval is open.
type RunInterval struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Open reports whether the interval has not been closed yet.
func (r RunInterval) Open() bool {
	return !r.Start.IsZero() && r.End.IsZero()
}

// SleepDecision tracks when the output device becomes eligible to power down.
type SleepDecision struct {
	// ArmedAt is the end time of the last qualifying shot; zero when disarmed.
	ArmedAt time.Time
	// Asleep is terminal for the process lifetime.
	Asleep bool
}

// RefreshGate rate-limits an expensive action.
type RefreshGate struct {
	LastRefresh time.Time
	MinInterval time.Duration
}

// State is the single owned context threaded through every component.
// Only Detector mutates Run, Current and PendingIdleSince.
type State struct {
	Run RunState
	// Current is the open interval while running.
	Current RunInterval
	// Last is the most recently closed interval; zero if none has closed.
	Last RunInterval
	// PendingIdleSince is the first inactive sample of the current episode.
	PendingIdleSince time.Time

	Sleep   SleepDecision
	Refresh RefreshGate
	Readout RefreshGate

	Counts ShotCounts
}

// NewState returns an idle state with the given refresh gate intervals.
func NewState(refreshInterval, readoutInterval time.Duration) *State {
	return &State{
		Run:     StateIdle,
		Refresh: RefreshGate{MinInterval: refreshInterval},
		Readout: RefreshGate{MinInterval: readoutInterval},
	}
}

// ShotCounts tracks the number of detected intervals since startup.
type ShotCounts struct {
	Started int
	Closed  int
}

// TransitionType identifies a debounced edge.
type TransitionType string

const (
	TransitionNone    TransitionType = ""
	TransitionStarted TransitionType = "SHOT_START"
	TransitionStopped TransitionType = "SHOT_END"
)

// Transition is returned by Detector.Process.
// Interval is the opened interval on start and the closed one on stop.
type Transition struct {
	Type     TransitionType
	Time     time.Time
	Interval RunInterval
}

// MachineReading is one decoded telemetry record.
// A nil field was not reported by the machine.
type MachineReading struct {
	CurrentSteamTemp *int
	TargetSteamTemp  *int
	HXTemp           *int
	HeatingOn        *bool
}

// Empty reports whether no field was populated.
func (m MachineReading) Empty() bool {
	return m.CurrentSteamTemp == nil && m.TargetSteamTemp == nil && m.HXTemp == nil && m.HeatingOn == nil
}

// PlotPoint is a sample in domain units.
type PlotPoint struct {
	TimeSeconds float64
	Value       float64
}

// PixelPoint is a sample in display coordinates.
type PixelPoint struct {
	X int
	Y int
}
