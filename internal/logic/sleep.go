package logic

import "time"

// SleepPolicy decides when the output device should power down to avoid burn-in.
type SleepPolicy struct {
	minShot  time.Duration
	cooldown time.Duration
}

// NewSleepPolicy creates a policy. Shots no longer than minShot never arm it;
// once armed it fires after cooldown has elapsed since the shot closed.
func NewSleepPolicy(minShot, cooldown time.Duration) *SleepPolicy {
	return &SleepPolicy{minShot: minShot, cooldown: cooldown}
}

// Observe updates the arming state from a detector transition.
func (p *SleepPolicy) Observe(st *State, tr Transition) {
	switch tr.Type {
	case TransitionStarted:
		st.Sleep.ArmedAt = time.Time{}
	case TransitionStopped:
		if tr.Interval.Duration > p.minShot {
			st.Sleep.ArmedAt = tr.Interval.End
		} else {
			st.Sleep.ArmedAt = time.Time{}
		}
	}
}

// ShouldSleep reports whether the device should be powered down now.
// It never fires before any interval has closed, and never after the
// device is already asleep.
func (p *SleepPolicy) ShouldSleep(st *State, now time.Time) bool {
	if st.Sleep.Asleep {
		return false
	}
	if st.Last.End.IsZero() || st.Sleep.ArmedAt.IsZero() {
		return false
	}
	if st.Last.Duration <= p.minShot {
		return false
	}
	return now.Sub(st.Sleep.ArmedAt) > p.cooldown
}

// MarkAsleep records that the device was powered down. There is no wake path.
func (p *SleepPolicy) MarkAsleep(st *State) {
	st.Sleep.Asleep = true
	st.Sleep.ArmedAt = time.Time{}
}
