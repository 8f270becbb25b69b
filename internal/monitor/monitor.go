// Package monitor composes the pure logic components into the per-tick
// control loop. It owns the single logic.State and the telemetry line buffer,
// and talks to the panel only through display.Display.
package monitor

import (
	"time"

	"github.com/sweeney/shot-monitor/internal/display"
	"github.com/sweeney/shot-monitor/internal/logic"
	"github.com/sweeney/shot-monitor/internal/telemetry"
)

// Config holds the tunables of the control loop.
type Config struct {
	Debounce        time.Duration
	MinShot         time.Duration
	Cooldown        time.Duration
	RefreshInterval time.Duration
	ReadoutInterval time.Duration

	Plot     logic.PlotRect
	ValueMin float64
	ValueMax float64
	TimeMax  time.Duration
	// GridLines is the number of horizontal guides drawn inside the plot.
	GridLines int

	MaxLine int
}

// DefaultConfig returns the values the machine was tuned with.
func DefaultConfig() Config {
	return Config{
		Debounce:        1500 * time.Millisecond,
		MinShot:         15 * time.Second,
		Cooldown:        10 * time.Second,
		RefreshInterval: time.Second,
		ReadoutInterval: time.Second,
		Plot:            logic.DefaultPlotRect,
		ValueMin:        20,
		ValueMax:        140,
		TimeMax:         30 * time.Minute,
		GridLines:       5,
		MaxLine:         telemetry.DefaultMaxLine,
	}
}

// Level is one sample of the pump sensor.
type Level int

const (
	// LevelUnknown means the sensor could not be read this tick.
	LevelUnknown Level = iota
	LevelInactive
	LevelActive
)

// LevelOf converts a reader result into a Level.
func LevelOf(active bool, err error) Level {
	switch {
	case err != nil:
		return LevelUnknown
	case active:
		return LevelActive
	default:
		return LevelInactive
	}
}

// TickResult reports what one tick did, for publishing and bookkeeping.
type TickResult struct {
	// Reading is the newest telemetry record completed this tick, if any.
	Reading *logic.MachineReading
	// Lines is the number of complete lines drained this tick.
	Lines int

	Transition logic.Transition

	// WentToSleep is set on the single tick the panel was powered down.
	WentToSleep  bool
	TimerUpdated bool
	Refreshed    bool
	Points       []logic.PixelPoint
}

// Started reports whether a run interval opened this tick.
func (r TickResult) Started() bool {
	return r.Transition.Type == logic.TransitionStarted
}

// Closed reports whether a run interval closed this tick.
func (r TickResult) Closed() bool {
	return r.Transition.Type == logic.TransitionStopped
}

// Monitor drives the display from the sensor and telemetry.
// It is not safe for concurrent use; call Tick from one goroutine.
type Monitor struct {
	st       *logic.State
	detector *logic.Detector
	timer    logic.ShotTimer
	sleep    *logic.SleepPolicy
	mapper   *logic.GraphMapper
	lines    *telemetry.LineBuffer
	disp     display.Display

	origin time.Time

	// pending is the newest reading not yet pushed to the display.
	pending  *logic.MachineReading
	latest   *logic.MachineReading
	latestAt time.Time
}

// New creates a monitor whose graph time axis starts at origin, and draws
// the static layout.
func New(cfg Config, disp display.Display, origin time.Time) *Monitor {
	m := &Monitor{
		st:       logic.NewState(cfg.RefreshInterval, cfg.ReadoutInterval),
		detector: logic.NewDetector(cfg.Debounce),
		sleep:    logic.NewSleepPolicy(cfg.MinShot, cfg.Cooldown),
		mapper:   logic.NewGraphMapper(cfg.Plot, cfg.ValueMin, cfg.ValueMax, cfg.TimeMax.Minutes()),
		lines:    telemetry.NewLineBuffer(cfg.MaxLine),
		disp:     disp,
		origin:   origin,
	}
	disp.Prepare(m.mapper.Rect(), m.mapper.GridLines(cfg.GridLines))
	return m
}

// Tick runs one iteration of the control loop:
//  1. drain telemetry bytes, keeping the newest reading
//  2. feed the sensor level to the detector
//  3. power the panel down if the sleep policy says so
//  4. update the shot timer readout while running
//  5. push the newest reading to the panel when the refresh gate is open
//
// Once asleep, steps 1 and 2 still run so shots are tracked, but nothing
// is drawn.
func (m *Monitor) Tick(now time.Time, level Level, data []byte) TickResult {
	var res TickResult

	for _, line := range m.lines.Feed(data) {
		res.Lines++
		r := logic.ParseLine(line)
		if r.Empty() {
			continue
		}
		res.Reading = &r
	}
	if res.Reading != nil {
		m.pending = res.Reading
		m.latest = res.Reading
		m.latestAt = now
	}

	if level != LevelUnknown {
		res.Transition = m.detector.Process(m.st, level == LevelActive, now)
		m.sleep.Observe(m.st, res.Transition)
	}

	if m.st.Sleep.Asleep {
		return res
	}
	if m.sleep.ShouldSleep(m.st, now) {
		m.disp.PowerDown()
		m.sleep.MarkAsleep(m.st)
		res.WentToSleep = true
		return res
	}

	if m.st.Run == logic.StateRunning && m.st.Readout.ShouldRefresh(now) {
		m.disp.SetRegionText(display.RegionTimer, display.FormatTimer(m.timer.Seconds(m.st, now)))
		m.st.Readout.RecordRefresh(now)
		res.TimerUpdated = true
	}

	if m.st.Refresh.ShouldRefresh(now) {
		if m.pending != nil {
			res.Points = m.draw(*m.pending, now)
			m.pending = nil
		}
		m.disp.RequestRefresh(display.RegionFull)
		m.st.Refresh.RecordRefresh(now)
		res.Refreshed = true
	}

	return res
}

func (m *Monitor) draw(r logic.MachineReading, now time.Time) []logic.PixelPoint {
	elapsed := now.Sub(m.origin).Seconds()
	var points []logic.PixelPoint

	plot := func(v int) {
		p := m.mapper.Map(logic.PlotPoint{TimeSeconds: elapsed, Value: float64(v)})
		m.disp.DrawPoint(p.X, p.Y)
		points = append(points, p)
	}

	if r.CurrentSteamTemp != nil {
		plot(*r.CurrentSteamTemp)
	}
	if r.TargetSteamTemp != nil {
		current := 0
		if r.CurrentSteamTemp != nil {
			current = *r.CurrentSteamTemp
		}
		m.disp.SetRegionText(display.RegionSteam, display.FormatSteam(current, *r.TargetSteamTemp))
	}
	if r.HXTemp != nil {
		m.disp.SetRegionText(display.RegionHX, display.FormatHX(*r.HXTemp))
		plot(*r.HXTemp)
	}
	if r.HeatingOn != nil {
		m.disp.SetHeatingIndicator(*r.HeatingOn)
	}
	return points
}

// Snapshot is a read-only view of the monitor for status reporting.
type Snapshot struct {
	Run     logic.RunState
	Current logic.RunInterval
	Last    logic.RunInterval
	// Elapsed is the running time of the open shot, or the last shot's duration.
	Elapsed time.Duration
	Asleep  bool
	ArmedAt time.Time
	Counts  logic.ShotCounts

	Reading   *logic.MachineReading
	ReadingAt time.Time

	LineTruncations int
}

// Snapshot returns the current view at now.
func (m *Monitor) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Run:             m.st.Run,
		Current:         m.st.Current,
		Last:            m.st.Last,
		Elapsed:         m.timer.Elapsed(m.st, now),
		Asleep:          m.st.Sleep.Asleep,
		ArmedAt:         m.st.Sleep.ArmedAt,
		Counts:          m.st.Counts,
		Reading:         m.latest,
		ReadingAt:       m.latestAt,
		LineTruncations: m.lines.Truncations,
	}
}
