// Package metrics exposes the monitor's state as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/shot-monitor/internal/logic"
)

const namespace = "shot_monitor"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	temperature     *prometheus.GaugeVec
	heating         prometheus.Gauge
	running         prometheus.Gauge
	asleep          prometheus.Gauge
	shots           prometheus.Counter
	shotDuration    prometheus.Histogram
	lastShot        prometheus.Gauge
	telemetryLines  prometheus.Counter
	telemetryResets prometheus.Counter
	mqttConnected   prometheus.Gauge
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last reported machine temperature.",
		}, []string{"sensor"}),
		heating: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heating",
			Help:      "1 while the boiler element is on.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pump_running",
			Help:      "1 while a shot is in progress.",
		}),
		asleep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_asleep",
			Help:      "1 once the display has been powered down.",
		}),
		shots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shots_total",
			Help:      "Completed shots since start.",
		}),
		shotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shot_duration_seconds",
			Help:      "Duration of completed shots.",
			Buckets:   []float64{5, 10, 15, 20, 25, 30, 35, 40, 50, 60},
		}),
		lastShot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_shot_duration_seconds",
			Help:      "Duration of the most recent shot.",
		}),
		telemetryLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_lines_total",
			Help:      "Telemetry lines received from the machine.",
		}),
		telemetryResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_resets_total",
			Help:      "Times the serial feed was re-polled after going stale.",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while connected to the broker.",
		}),
	}

	m.registry.MustRegister(
		m.temperature, m.heating, m.running, m.asleep,
		m.shots, m.shotDuration, m.lastShot,
		m.telemetryLines, m.telemetryResets, m.mqttConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveReading records the fields present in r.
func (m *Metrics) ObserveReading(r logic.MachineReading) {
	if r.CurrentSteamTemp != nil {
		m.temperature.WithLabelValues("steam").Set(float64(*r.CurrentSteamTemp))
	}
	if r.TargetSteamTemp != nil {
		m.temperature.WithLabelValues("steam_target").Set(float64(*r.TargetSteamTemp))
	}
	if r.HXTemp != nil {
		m.temperature.WithLabelValues("hx").Set(float64(*r.HXTemp))
	}
	if r.HeatingOn != nil {
		m.heating.Set(boolToFloat(*r.HeatingOn))
	}
}

// ObserveShot records a closed shot.
func (m *Metrics) ObserveShot(d time.Duration) {
	m.shots.Inc()
	m.shotDuration.Observe(d.Seconds())
	m.lastShot.Set(d.Seconds())
}

func (m *Metrics) SetRunning(running bool) {
	m.running.Set(boolToFloat(running))
}

func (m *Metrics) SetAsleep(asleep bool) {
	m.asleep.Set(boolToFloat(asleep))
}

func (m *Metrics) SetMQTTConnected(connected bool) {
	m.mqttConnected.Set(boolToFloat(connected))
}

func (m *Metrics) AddTelemetryLines(n int) {
	if n > 0 {
		m.telemetryLines.Add(float64(n))
	}
}

func (m *Metrics) IncTelemetryResets() {
	m.telemetryResets.Inc()
}

// Registry returns the private registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
