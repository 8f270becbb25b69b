package logic

import "time"

// ShouldRefresh reports whether at least MinInterval has passed since the last
// recorded refresh. A gate that has never fired is always open.
func (g *RefreshGate) ShouldRefresh(now time.Time) bool {
	if g.LastRefresh.IsZero() {
		return true
	}
	return now.Sub(g.LastRefresh) >= g.MinInterval
}

// RecordRefresh marks a refresh as issued at now.
func (g *RefreshGate) RecordRefresh(now time.Time) {
	g.LastRefresh = now
}
