package logic

import "time"

// Detector turns the bouncing pump signal into a two-state model.
// The start edge is accepted immediately; the stop edge only after the
// signal has been continuously inactive for the debounce duration.
type Detector struct {
	debounceDuration time.Duration
}

// NewDetector creates a run state detector with the given debounce duration.
func NewDetector(debounceDuration time.Duration) *Detector {
	return &Detector{debounceDuration: debounceDuration}
}

// Debounce returns the configured debounce duration.
func (d *Detector) Debounce() time.Duration {
	return d.debounceDuration
}

// Process takes the instantaneous pump level and returns the transition it caused, if any.
func (d *Detector) Process(st *State, active bool, now time.Time) Transition {
	if st.Run != StateRunning {
		if !active {
			return Transition{}
		}
		// No debounce on the start edge. A detector constructed while the
		// signal is already active treats the first tick as a normal start.
		st.Run = StateRunning
		st.Current = RunInterval{Start: now}
		st.PendingIdleSince = time.Time{}
		st.Counts.Started++
		return Transition{Type: TransitionStarted, Time: now, Interval: st.Current}
	}

	if active {
		// Any active blip cancels the pending stop.
		st.PendingIdleSince = time.Time{}
		return Transition{}
	}

	if st.PendingIdleSince.IsZero() {
		st.PendingIdleSince = now
	}

	if now.Sub(st.PendingIdleSince) < d.debounceDuration {
		return Transition{}
	}

	closed := st.Current
	closed.End = now
	closed.Duration = closed.End.Sub(closed.Start)

	st.Run = StateIdle
	st.Last = closed
	st.Current = RunInterval{}
	st.PendingIdleSince = time.Time{}
	st.Counts.Closed++

	return Transition{Type: TransitionStopped, Time: now, Interval: closed}
}
