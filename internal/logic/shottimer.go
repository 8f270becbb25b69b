package logic

import "time"

// ShotTimer derives the brew timer from the detector's intervals.
// It performs no throttling; callers gate how often the readout is drawn.
type ShotTimer struct{}

// Elapsed returns the running time of the open interval, or the duration of
// the last closed interval when idle (0 if none has closed).
func (ShotTimer) Elapsed(st *State, now time.Time) time.Duration {
	if st.Run == StateRunning && st.Current.Open() {
		return now.Sub(st.Current.Start)
	}
	return st.Last.Duration
}

// Seconds is Elapsed truncated to whole seconds, as shown on the timer readout.
func (t ShotTimer) Seconds(st *State, now time.Time) int {
	return int(t.Elapsed(st, now) / time.Second)
}
