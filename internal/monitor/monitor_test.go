package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/shot-monitor/internal/display"
	"github.com/sweeney/shot-monitor/internal/logic"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func newTestMonitor() (*Monitor, *display.Fake) {
	f := display.NewFake()
	return New(DefaultConfig(), f, t0), f
}

const machineLine = "C1.06,116,124,093,0840,1,0\n"

func TestNewPreparesLayout(t *testing.T) {
	_, f := newTestMonitor()

	if !f.Prepared {
		t.Fatal("expected Prepare to be called")
	}
	if f.Rect != logic.DefaultPlotRect {
		t.Errorf("expected default plot rect, got %+v", f.Rect)
	}
	if len(f.Grid) != 5 {
		t.Fatalf("expected 5 grid lines, got %d", len(f.Grid))
	}
	if f.Grid[0].Value != 40 || f.Grid[4].Value != 120 {
		t.Errorf("unexpected grid values: %+v", f.Grid)
	}
}

func TestLevelOf(t *testing.T) {
	if LevelOf(true, nil) != LevelActive {
		t.Error("expected LevelActive")
	}
	if LevelOf(false, nil) != LevelInactive {
		t.Error("expected LevelInactive")
	}
	if LevelOf(true, errors.New("gpio")) != LevelUnknown {
		t.Error("expected LevelUnknown on error")
	}
}

func TestTickDrawsReading(t *testing.T) {
	m, f := newTestMonitor()

	res := m.Tick(at(60000), LevelInactive, []byte(machineLine))

	if res.Reading == nil {
		t.Fatal("expected a reading")
	}
	if res.Lines != 1 {
		t.Errorf("expected 1 line, got %d", res.Lines)
	}
	if !res.Refreshed {
		t.Error("expected the first tick to refresh")
	}

	// 60s into a 30 min window: x = 20 + 360/30 = 32
	want := []logic.PixelPoint{{X: 32, Y: 108}, {X: 32, Y: 154}}
	if len(f.Points) != len(want) {
		t.Fatalf("expected %d points, got %v", len(want), f.Points)
	}
	for i, p := range want {
		if f.Points[i] != p {
			t.Errorf("point %d: expected %+v, got %+v", i, p, f.Points[i])
		}
	}
	if len(res.Points) != 2 {
		t.Errorf("expected 2 points in result, got %d", len(res.Points))
	}

	if got, _ := f.LastText(display.RegionSteam); got != "116/124" {
		t.Errorf("steam: expected %q, got %q", "116/124", got)
	}
	if got, _ := f.LastText(display.RegionHX); got != " 93" {
		t.Errorf("hx: expected %q, got %q", " 93", got)
	}
	if len(f.Heating) != 1 || !f.Heating[0] {
		t.Errorf("expected heating indicator on, got %v", f.Heating)
	}
	if len(f.Refreshes) != 1 || f.Refreshes[0] != display.RegionFull {
		t.Errorf("expected one full refresh, got %v", f.Refreshes)
	}
}

func TestTickKeepsNewestReading(t *testing.T) {
	m, _ := newTestMonitor()

	res := m.Tick(at(0), LevelInactive, []byte("1,80,95,60,0,0\n1,81,95,61,0,1\n"))

	if res.Lines != 2 {
		t.Errorf("expected 2 lines, got %d", res.Lines)
	}
	if res.Reading == nil || *res.Reading.CurrentSteamTemp != 81 {
		t.Errorf("expected newest reading (81), got %+v", res.Reading)
	}
}

func TestTickBlankLineIsNotAReading(t *testing.T) {
	m, _ := newTestMonitor()

	res := m.Tick(at(0), LevelInactive, []byte("\r\n"))

	if res.Lines != 1 {
		t.Errorf("expected 1 line, got %d", res.Lines)
	}
	if res.Reading != nil {
		t.Errorf("expected no reading, got %+v", res.Reading)
	}
}

func TestTickSeparatorNoiseKeepsReading(t *testing.T) {
	m, f := newTestMonitor()

	res := m.Tick(at(0), LevelInactive, []byte("1,85\r\n,,\n"))

	if res.Lines != 2 {
		t.Errorf("expected 2 lines, got %d", res.Lines)
	}
	if res.Reading == nil || *res.Reading.CurrentSteamTemp != 85 {
		t.Fatalf("expected reading 85 to survive, got %+v", res.Reading)
	}
	if res.Reading.TargetSteamTemp != nil {
		t.Errorf("target: expected absent, got %d", *res.Reading.TargetSteamTemp)
	}
	if len(f.Points) != 1 {
		t.Errorf("expected 1 point drawn, got %d", len(f.Points))
	}
	if _, ok := f.LastText(display.RegionSteam); ok {
		t.Error("steam region should not be set without a target")
	}
}

func TestTickPartialLineAcrossTicks(t *testing.T) {
	m, _ := newTestMonitor()

	res := m.Tick(at(0), LevelInactive, []byte("C1.06,116,12"))
	if res.Reading != nil {
		t.Fatal("partial line should not produce a reading")
	}

	res = m.Tick(at(10), LevelInactive, []byte("4,093,0840,1,0\n"))
	if res.Reading == nil || *res.Reading.TargetSteamTemp != 124 {
		t.Fatalf("expected completed reading, got %+v", res.Reading)
	}
}

func TestTickRefreshIsRateLimited(t *testing.T) {
	m, f := newTestMonitor()

	m.Tick(at(0), LevelInactive, []byte(machineLine))
	if len(f.Points) != 2 {
		t.Fatalf("expected first reading drawn, got %d points", len(f.Points))
	}

	res := m.Tick(at(500), LevelInactive, []byte("1,100,124,95,0,0\n"))
	if res.Refreshed {
		t.Error("expected no refresh 500ms after the last one")
	}
	if len(f.Points) != 2 {
		t.Errorf("reading should wait for the gate, got %d points", len(f.Points))
	}

	res = m.Tick(at(1000), LevelInactive, nil)
	if !res.Refreshed {
		t.Fatal("expected refresh at 1000ms")
	}
	if len(f.Points) != 4 {
		t.Errorf("expected pending reading drawn, got %d points", len(f.Points))
	}
	if got, _ := f.LastText(display.RegionSteam); got != "100/124" {
		t.Errorf("steam: expected %q, got %q", "100/124", got)
	}

	// Nothing new: the panel still refreshes but nothing is drawn.
	res = m.Tick(at(2000), LevelInactive, nil)
	if !res.Refreshed || len(res.Points) != 0 {
		t.Errorf("expected empty refresh, got %+v", res)
	}
	if len(f.Points) != 4 {
		t.Errorf("expected no new points, got %d", len(f.Points))
	}
}

func TestTickShortLineDrawsOnlyPresentFields(t *testing.T) {
	m, f := newTestMonitor()

	m.Tick(at(0), LevelInactive, []byte("1,85\n"))

	if len(f.Points) != 1 {
		t.Errorf("expected only the steam point, got %v", f.Points)
	}
	if _, ok := f.LastText(display.RegionSteam); ok {
		t.Error("steam text needs the target field")
	}
	if _, ok := f.LastText(display.RegionHX); ok {
		t.Error("hx text should not be set")
	}
	if len(f.Heating) != 0 {
		t.Error("heating indicator should not be touched")
	}
}

func TestTickTimerReadout(t *testing.T) {
	m, f := newTestMonitor()

	for ms := 0; ms <= 3500; ms += 100 {
		m.Tick(at(ms), LevelActive, nil)
	}

	got := f.TextsFor(display.RegionTimer)
	want := []string{"0", "1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("expected timer updates %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTickTimerIdleNoReadout(t *testing.T) {
	m, f := newTestMonitor()

	for ms := 0; ms <= 5000; ms += 100 {
		m.Tick(at(ms), LevelInactive, nil)
	}
	if n := len(f.TextsFor(display.RegionTimer)); n != 0 {
		t.Errorf("expected no timer updates while idle, got %d", n)
	}
}

func TestTickUnknownLevelSkipsDetector(t *testing.T) {
	m, _ := newTestMonitor()

	m.Tick(at(0), LevelActive, nil)
	// Read failures must not count as inactive samples.
	for ms := 100; ms <= 5000; ms += 100 {
		res := m.Tick(at(ms), LevelUnknown, nil)
		if res.Closed() {
			t.Fatalf("unknown level closed the shot at %dms", ms)
		}
	}
	if s := m.Snapshot(at(5000)); s.Run != logic.StateRunning {
		t.Errorf("expected RUNNING, got %s", s.Run)
	}
}

func TestTickEndToEndShotThenSleep(t *testing.T) {
	m, f := newTestMonitor()

	var startMs, stopMs, sleepMs int = -1, -1, -1
	var refreshesAtSleep int
	for ms := 0; ms <= 60000; ms += 100 {
		level := LevelInactive
		if ms >= 1000 && ms < 21000 {
			level = LevelActive
		}
		res := m.Tick(at(ms), level, []byte(machineLine))
		if res.Started() {
			startMs = ms
		}
		if res.Closed() {
			stopMs = ms
			d := res.Transition.Interval.Duration
			if d < 20*time.Second || d > 22*time.Second {
				t.Errorf("expected duration ≈20s, got %v", d)
			}
		}
		if res.WentToSleep {
			if sleepMs != -1 {
				t.Fatal("WentToSleep reported twice")
			}
			sleepMs = ms
			refreshesAtSleep = len(f.Refreshes)
			if res.Refreshed || res.TimerUpdated {
				t.Error("no display writes on the tick that powers down")
			}
		}
	}

	if startMs != 1000 {
		t.Errorf("expected start at 1000ms, got %d", startMs)
	}
	if stopMs != 22500 {
		t.Errorf("expected stop at 22500ms, got %d", stopMs)
	}
	// armed at 22500, strictly more than 10s later
	if sleepMs != 32600 {
		t.Errorf("expected sleep at 32600ms, got %d", sleepMs)
	}
	if f.PowerDowns != 1 {
		t.Errorf("expected one PowerDown, got %d", f.PowerDowns)
	}
	if len(f.Refreshes) != refreshesAtSleep {
		t.Errorf("display refreshed after sleep: %d -> %d", refreshesAtSleep, len(f.Refreshes))
	}

	s := m.Snapshot(at(60000))
	if !s.Asleep {
		t.Error("snapshot should report asleep")
	}
	if s.Counts.Started != 1 || s.Counts.Closed != 1 {
		t.Errorf("expected 1/1 shots, got %+v", s.Counts)
	}
}

func TestTickShotsTrackedWhileAsleep(t *testing.T) {
	m, f := newTestMonitor()

	drive := func(from, to int, level Level) {
		for ms := from; ms < to; ms += 100 {
			m.Tick(at(ms), level, nil)
		}
	}
	drive(0, 20000, LevelActive)
	drive(20000, 40000, LevelInactive)
	if f.PowerDowns != 1 {
		t.Fatalf("expected panel asleep, got %d power downs", f.PowerDowns)
	}
	calls := f.Calls()

	drive(40000, 45000, LevelActive)
	res := m.Tick(at(45000), LevelInactive, nil)
	if res.Closed() {
		t.Fatal("should not close before debounce")
	}
	res = m.Tick(at(46500), LevelInactive, []byte(machineLine))
	if !res.Closed() {
		t.Fatal("expected second shot to close while asleep")
	}
	if res.Reading == nil {
		t.Error("telemetry should still be parsed while asleep")
	}
	if f.Calls() != calls {
		t.Errorf("expected no display calls while asleep, got %d more", f.Calls()-calls)
	}
	if f.PowerDowns != 1 {
		t.Errorf("sleep is terminal, expected 1 power down, got %d", f.PowerDowns)
	}
}

func TestTickShortShotKeepsDisplayAwake(t *testing.T) {
	m, f := newTestMonitor()

	for ms := 0; ms <= 120000; ms += 100 {
		level := LevelInactive
		if ms < 9000 {
			level = LevelActive
		}
		if res := m.Tick(at(ms), level, nil); res.WentToSleep {
			t.Fatalf("short shot put the display to sleep at %dms", ms)
		}
	}
	if f.PowerDowns != 0 {
		t.Errorf("expected no power down, got %d", f.PowerDowns)
	}
}

func TestTickGraphPinsToRightEdge(t *testing.T) {
	m, f := newTestMonitor()

	m.Tick(at(3*60*60*1000), LevelInactive, []byte(machineLine))

	for _, p := range f.Points {
		if p.X != logic.DefaultPlotRect.XRight {
			t.Errorf("expected x pinned to %d, got %d", logic.DefaultPlotRect.XRight, p.X)
		}
	}
}

func TestSnapshot(t *testing.T) {
	m, _ := newTestMonitor()

	m.Tick(at(0), LevelActive, []byte(machineLine))
	s := m.Snapshot(at(4000))

	if s.Run != logic.StateRunning {
		t.Errorf("expected RUNNING, got %s", s.Run)
	}
	if s.Elapsed != 4*time.Second {
		t.Errorf("expected 4s elapsed, got %v", s.Elapsed)
	}
	if s.Reading == nil || *s.Reading.HXTemp != 93 {
		t.Errorf("expected latest reading, got %+v", s.Reading)
	}
	if !s.ReadingAt.Equal(at(0)) {
		t.Errorf("expected reading time %v, got %v", at(0), s.ReadingAt)
	}
}
