package logic

import (
	"testing"
	"time"
)

// runShot drives a detector through one shot: active from startMs for runMs,
// then inactive until the debounce closes it. Returns the stop time in ms.
func runShot(t *testing.T, d *Detector, p *SleepPolicy, st *State, startMs, runMs int) int {
	t.Helper()
	p.Observe(st, d.Process(st, true, at(startMs)))
	p.Observe(st, d.Process(st, true, at(startMs+runMs)))
	idleMs := startMs + runMs + 1
	p.Observe(st, d.Process(st, false, at(idleMs)))
	stopMs := idleMs + int(d.Debounce()/time.Millisecond)
	tr := d.Process(st, false, at(stopMs))
	if tr.Type != TransitionStopped {
		t.Fatalf("expected shot to close at %dms, got %q", stopMs, tr.Type)
	}
	p.Observe(st, tr)
	return stopMs
}

func TestShouldSleepFalseAtStartup(t *testing.T) {
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	st := newTestState()

	for _, ms := range []int{0, 10000, 60000, 3600000} {
		if p.ShouldSleep(st, at(ms)) {
			t.Errorf("ShouldSleep at %dms with no closed interval: expected false", ms)
		}
	}
}

func TestShortShotNeverSleeps(t *testing.T) {
	d := NewDetector(1500 * time.Millisecond)
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	st := newTestState()

	// 9000ms run + 1500ms debounce tail is still below the 15s minimum
	stop := runShot(t, d, p, st, 0, 9000)

	for _, after := range []int{0, 10001, 60000, 3600000} {
		if p.ShouldSleep(st, at(stop+after)) {
			t.Errorf("short shot: ShouldSleep %dms after stop should be false", after)
		}
	}
}

func TestLongShotSleepsAfterCooldown(t *testing.T) {
	d := NewDetector(1500 * time.Millisecond)
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	st := newTestState()

	stop := runShot(t, d, p, st, 0, 20000)
	if st.Last.Duration < 20*time.Second {
		t.Fatalf("expected recorded duration ≈20s, got %v", st.Last.Duration)
	}

	if p.ShouldSleep(st, at(stop+5000)) {
		t.Error("should not sleep before cooldown")
	}
	if p.ShouldSleep(st, at(stop+10000)) {
		t.Error("should not sleep at exactly the cooldown")
	}
	if !p.ShouldSleep(st, at(stop+10001)) {
		t.Error("expected sleep after cooldown")
	}
}

func TestShotAtThresholdDoesNotArm(t *testing.T) {
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	st := newTestState()

	iv := RunInterval{Start: at(0), End: at(15000), Duration: 15 * time.Second}
	st.Last = iv
	p.Observe(st, Transition{Type: TransitionStopped, Time: iv.End, Interval: iv})

	if p.ShouldSleep(st, at(60000)) {
		t.Error("a shot of exactly the minimum should not arm sleep")
	}
}

func TestNewShotDisarms(t *testing.T) {
	d := NewDetector(1500 * time.Millisecond)
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	st := newTestState()

	stop := runShot(t, d, p, st, 0, 20000)

	// A second shot starts before the cooldown expires.
	p.Observe(st, d.Process(st, true, at(stop+2000)))
	if !st.Sleep.ArmedAt.IsZero() {
		t.Fatal("opening a new interval should clear the armed time")
	}
	if p.ShouldSleep(st, at(stop+30000)) {
		t.Error("should not sleep while the second shot is running")
	}
}

func TestShortShotAfterLongShotDisarms(t *testing.T) {
	d := NewDetector(1500 * time.Millisecond)
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	st := newTestState()

	stop := runShot(t, d, p, st, 0, 20000)
	stop2 := runShot(t, d, p, st, stop+1000, 3000)

	if p.ShouldSleep(st, at(stop2+60000)) {
		t.Error("the most recent (short) shot should decide, not the earlier long one")
	}
}

func TestSleepIsSticky(t *testing.T) {
	d := NewDetector(1500 * time.Millisecond)
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	st := newTestState()

	stop := runShot(t, d, p, st, 0, 20000)
	if !p.ShouldSleep(st, at(stop+11000)) {
		t.Fatal("expected sleep decision")
	}
	p.MarkAsleep(st)

	if !st.Sleep.Asleep {
		t.Error("expected Asleep=true")
	}
	if p.ShouldSleep(st, at(stop+12000)) {
		t.Error("no further decisions once asleep")
	}

	// Even another qualifying shot does not produce a new decision.
	stop2 := runShot(t, d, p, st, stop+20000, 20000)
	if p.ShouldSleep(st, at(stop2+20000)) {
		t.Error("sleep is terminal; expected false")
	}
}

func TestEndToEndShotThenSleep(t *testing.T) {
	d := NewDetector(1500 * time.Millisecond)
	p := NewSleepPolicy(15*time.Second, 10*time.Second)
	timer := ShotTimer{}
	st := newTestState()

	var stopMs int
	// Active for 20s sampled every 100ms, then inactive.
	for ms := 0; ms <= 40000; ms += 100 {
		active := ms < 20000
		tr := d.Process(st, active, at(ms))
		p.Observe(st, tr)
		if tr.Type == TransitionStopped {
			stopMs = ms
		}
		if stopMs == 0 && p.ShouldSleep(st, at(ms)) {
			t.Fatalf("sleep before the shot closed at %dms", ms)
		}
	}

	if stopMs != 21500 {
		t.Fatalf("expected close at 21500ms (20000 + debounce), got %d", stopMs)
	}
	got := timer.Elapsed(st, at(40000))
	if got < 20*time.Second || got > 22*time.Second {
		t.Errorf("expected recorded duration ≈20s, got %v", got)
	}
	if p.ShouldSleep(st, at(stopMs+9900)) {
		t.Error("should not sleep before cooldown from idle start")
	}
	if !p.ShouldSleep(st, at(stopMs+10100)) {
		t.Error("expected sleep after cooldown from idle start")
	}
}
