package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/shot-monitor/internal/gpio"
	"github.com/sweeney/shot-monitor/internal/history"
	"github.com/sweeney/shot-monitor/internal/logic"
	"github.com/sweeney/shot-monitor/internal/metrics"
	"github.com/sweeney/shot-monitor/internal/monitor"
	"github.com/sweeney/shot-monitor/internal/mqtt"
	"github.com/sweeney/shot-monitor/internal/status"
	"github.com/sweeney/shot-monitor/internal/telemetry"
)

const historyTimeout = time.Second

// loop wires the monitor to the outside world. Only run touches it.
type loop struct {
	reader     gpio.Reader
	source     telemetry.Source // nil when telemetry is disabled
	monitor    *monitor.Monitor
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	recorder   history.Recorder
	metrics    *metrics.Metrics
	tracker    *status.Tracker
	log        zerolog.Logger

	heartbeat  time.Duration
	readings   *rate.Limiter
	staleAfter time.Duration
	networkEnv string

	watchdog      *telemetry.Watchdog
	scratch       []byte
	shotID        string
	lines         int
	resets        int
	lastHeartbeat time.Time
	gpioFailing   bool
	serialFailing bool
}

func (l *loop) run(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	start := now()
	l.watchdog = telemetry.NewWatchdog(l.staleAfter, start)
	l.lastHeartbeat = start
	l.scratch = make([]byte, 256)

	for {
		select {
		case s := <-sig:
			l.shutdown(now(), s)
			return nil

		case <-tick:
			l.step(now())
		}
	}
}

func (l *loop) step(t time.Time) {
	level := monitor.LevelOf(l.readSensor())
	data := l.readTelemetry()

	res := l.monitor.Tick(t, level, data)

	if res.Lines > 0 {
		l.lines += res.Lines
		l.watchdog.Seen(t)
		if l.metrics != nil {
			l.metrics.AddTelemetryLines(res.Lines)
		}
	}

	switch {
	case res.Started():
		l.shotID = uuid.NewString()
		l.log.Info().Str("shot", l.shotID).Msg("shot started")
		l.publishShot(res.Transition)
	case res.Closed():
		if l.shotID == "" {
			l.shotID = uuid.NewString()
		}
		l.log.Info().
			Str("shot", l.shotID).
			Dur("duration", res.Transition.Interval.Duration).
			Msg("shot ended")
		l.publishShot(res.Transition)
		l.recordShot(res.Transition)
		l.shotID = ""
	}

	if res.WentToSleep {
		l.log.Info().Msg("display powered down")
		l.publishStatus(t, "DISPLAY_SLEEP", "", false)
	}

	if res.Reading != nil {
		l.handleReading(t, *res.Reading)
	}

	l.checkWatchdog(t)

	if l.heartbeat > 0 && t.Sub(l.lastHeartbeat) >= l.heartbeat {
		l.lastHeartbeat = t
		if net := readNetworkInfo(l.networkEnv); net != nil {
			l.tracker.SetNetwork(net)
		}
		snap := l.monitor.Snapshot(t)
		l.log.Info().
			Str("pump", string(snap.Run)).
			Int("shots", snap.Counts.Closed).
			Bool("asleep", snap.Asleep).
			Msg("heartbeat")
		l.publishStatus(t, "HEARTBEAT", "", false)
	}

	l.updateStatus(t)
}

// readSensor logs only the first failure of a run of errors; the loop
// ticks too fast to log every one.
func (l *loop) readSensor() (bool, error) {
	active, err := l.reader.Read()
	if err != nil {
		if !l.gpioFailing {
			l.log.Error().Err(err).Msg("gpio read error")
		}
		l.gpioFailing = true
		return false, err
	}
	if l.gpioFailing {
		l.log.Info().Msg("gpio read recovered")
		l.gpioFailing = false
	}
	return active, nil
}

func (l *loop) readTelemetry() []byte {
	if l.source == nil {
		return nil
	}
	data, err := telemetry.Drain(l.source, l.scratch)
	if err != nil {
		if !l.serialFailing {
			l.log.Warn().Err(err).Msg("serial read error")
		}
		l.serialFailing = true
	} else {
		l.serialFailing = false
	}
	return data
}

// checkWatchdog re-requests the feed when the machine has gone quiet. It
// re-arms itself so a machine that is switched off costs one reset per
// stale period.
func (l *loop) checkWatchdog(t time.Time) {
	if l.source == nil || !l.watchdog.Stale(t) {
		return
	}
	l.resets++
	if l.metrics != nil {
		l.metrics.IncTelemetryResets()
	}
	if err := l.source.Reset(); err != nil {
		l.log.Warn().Err(err).Msg("telemetry reset failed")
	} else {
		l.log.Debug().Time("last_seen", l.watchdog.LastSeen()).Msg("telemetry stale, feed reset")
	}
	l.watchdog.Seen(t)
}

func (l *loop) publishShot(tr logic.Transition) {
	event := mqtt.ShotEvent{
		ID:        l.shotID,
		Type:      tr.Type,
		Timestamp: tr.Time,
		Interval:  tr.Interval,
	}
	if err := l.publisher.PublishShot(event); err != nil {
		l.log.Warn().Err(err).Str("event", string(tr.Type)).Msg("publish shot failed")
	}
}

func (l *loop) recordShot(tr logic.Transition) {
	if l.metrics != nil {
		l.metrics.ObserveShot(tr.Interval.Duration)
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	err := l.recorder.RecordShot(ctx, &history.Shot{
		ID:        l.shotID,
		StartedAt: tr.Interval.Start,
		EndedAt:   tr.Interval.End,
		Duration:  tr.Interval.Duration,
	})
	if err != nil {
		l.log.Error().Err(err).Msg("record shot failed")
	}
}

func (l *loop) handleReading(t time.Time, r logic.MachineReading) {
	if l.metrics != nil {
		l.metrics.ObserveReading(r)
	}
	if !l.readings.AllowN(t, 1) {
		return
	}

	err := l.publisher.PublishReading(mqtt.ReadingEvent{Timestamp: t, Reading: r})
	switch {
	case errors.Is(err, mqtt.ErrNotConnected):
		l.log.Debug().Msg("reading dropped, broker offline")
	case err != nil:
		l.log.Warn().Err(err).Msg("publish reading failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := l.recorder.RecordReading(ctx, t, r); err != nil {
		l.log.Error().Err(err).Msg("record reading failed")
	}
}

func (l *loop) updateStatus(t time.Time) {
	connected := l.mqttStatus != nil && l.mqttStatus.IsConnected()
	snap := l.monitor.Snapshot(t)

	l.tracker.Update(snap)
	l.tracker.SetMQTTConnected(connected)
	l.tracker.SetTelemetry(status.TelemetryStats{
		LastSeen: l.lastSeen(),
		Stale:    l.source != nil && l.watchdog.Stale(t),
		Resets:   l.resets,
		Lines:    l.lines,
	})

	if l.metrics != nil {
		l.metrics.SetRunning(snap.Current.Open())
		l.metrics.SetAsleep(snap.Asleep)
		l.metrics.SetMQTTConnected(connected)
	}
}

// lastSeen is zero until the first line arrives.
func (l *loop) lastSeen() time.Time {
	if l.lines == 0 {
		return time.Time{}
	}
	return l.watchdog.LastSeen()
}

// publishStatus sends a system event carrying the full status snapshot.
func (l *loop) publishStatus(t time.Time, event, reason string, retained bool) error {
	l.updateStatus(t)
	snap := l.tracker.Snapshot()
	err := l.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  t,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		l.log.Warn().Err(err).Str("event", event).Msg("publish system event failed")
	}
	return err
}

func (l *loop) shutdown(t time.Time, s os.Signal) {
	l.log.Info().Str("signal", s.String()).Msg("shutting down")
	if err := l.publishStatus(t, "SHUTDOWN", signalName(s), true); err == nil {
		l.log.Info().Msg("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
