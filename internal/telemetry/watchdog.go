package telemetry

import "time"

// DefaultStaleAfter is how long the feed may be silent before it is re-polled.
const DefaultStaleAfter = 5 * time.Second

// Watchdog tracks when the last complete line arrived.
type Watchdog struct {
	staleAfter time.Duration
	lastSeen   time.Time
}

// NewWatchdog creates a watchdog armed at start.
func NewWatchdog(staleAfter time.Duration, start time.Time) *Watchdog {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Watchdog{staleAfter: staleAfter, lastSeen: start}
}

// Seen records activity at now. It is also used to re-arm after a reset.
func (w *Watchdog) Seen(now time.Time) {
	w.lastSeen = now
}

// Stale reports whether nothing has been seen for longer than the limit.
func (w *Watchdog) Stale(now time.Time) bool {
	return now.Sub(w.lastSeen) > w.staleAfter
}

// LastSeen returns the time of the last recorded activity.
func (w *Watchdog) LastSeen() time.Time {
	return w.lastSeen
}
