// Package config loads daemon settings from defaults, an optional config
// file, SHOT_MONITOR_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/shot-monitor/internal/logic"
	"github.com/sweeney/shot-monitor/internal/monitor"
)

const (
	EnvPrefix         = "SHOT_MONITOR"
	DefaultConfigName = "shot-monitor"
	DefaultConfigDir  = "/etc"
)

type Config struct {
	LogLevel   string        `mapstructure:"log-level"`
	Poll       time.Duration `mapstructure:"poll"`
	Debounce   time.Duration `mapstructure:"debounce"`
	Heartbeat  time.Duration `mapstructure:"heartbeat"`
	HTTPAddr   string        `mapstructure:"http"`
	NetworkEnv string        `mapstructure:"network-env"`
	PrintState bool          `mapstructure:"print-state"`

	Sleep     SleepConfig     `mapstructure:"sleep"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Plot      PlotConfig      `mapstructure:"plot"`
	GPIO      GPIOConfig      `mapstructure:"gpio"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	History   HistoryConfig   `mapstructure:"history"`
}

type SleepConfig struct {
	MinShot  time.Duration `mapstructure:"min-shot"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type RefreshConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	ReadoutInterval time.Duration `mapstructure:"readout-interval"`
}

type PlotConfig struct {
	ValueMin  float64       `mapstructure:"value-min"`
	ValueMax  float64       `mapstructure:"value-max"`
	TimeMax   time.Duration `mapstructure:"time-max"`
	X         int           `mapstructure:"x"`
	Y         int           `mapstructure:"y"`
	Width     int           `mapstructure:"width"`
	Height    int           `mapstructure:"height"`
	GridLines int           `mapstructure:"grid-lines"`
}

type GPIOConfig struct {
	Chip      string `mapstructure:"chip"`
	Pin       int    `mapstructure:"pin"`
	ActiveLow bool   `mapstructure:"active-low"`
}

type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read-timeout"`
	MaxLine     int           `mapstructure:"max-line"`
}

type TelemetryConfig struct {
	StaleAfter time.Duration `mapstructure:"stale-after"`
}

type MQTTConfig struct {
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"client-id"`
	ReadingInterval time.Duration `mapstructure:"reading-interval"`
	BufferSize      int           `mapstructure:"buffer-size"`
	WSBroker        string        `mapstructure:"ws-broker"`
}

type HistoryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DB            string        `mapstructure:"db"`
	BatchSize     int           `mapstructure:"batch-size"`
	FlushInterval time.Duration `mapstructure:"flush-interval"`
}

// ErrHelp is returned when -h/--help was requested.
var ErrHelp = pflag.ErrHelp

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("shot-monitor", pflag.ContinueOnError)

	fs.String("config", "", "Config file (default /etc/shot-monitor.toml if present)")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Duration("poll", 10*time.Millisecond, "Control loop tick interval")
	fs.Duration("debounce", 1500*time.Millisecond, "Continuous inactive time before a shot ends")
	fs.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.String("http", ":80", "HTTP status address (empty to disable)")
	fs.String("network-env", "/run/pi-helper.env", "Env file with network info (empty to disable)")
	fs.Bool("print-state", false, "Print the pump sensor level and exit")

	fs.Duration("sleep.min-shot", 15*time.Second, "Shots must be longer than this to arm display sleep")
	fs.Duration("sleep.cooldown", 10*time.Second, "Time after a qualifying shot before the display sleeps")

	fs.Duration("refresh.interval", time.Second, "Minimum time between display refreshes")
	fs.Duration("refresh.readout-interval", time.Second, "Shot timer readout cadence")

	fs.Float64("plot.value-min", 20, "Bottom of the temperature axis (C)")
	fs.Float64("plot.value-max", 140, "Top of the temperature axis (C)")
	fs.Duration("plot.time-max", 30*time.Minute, "Width of the time axis")
	fs.Int("plot.x", logic.DefaultPlotRect.XLeft, "Plot left edge (px)")
	fs.Int("plot.y", logic.DefaultPlotRect.YTop, "Plot top edge (px)")
	fs.Int("plot.width", logic.DefaultPlotRect.XRight-logic.DefaultPlotRect.XLeft, "Plot width (px)")
	fs.Int("plot.height", logic.DefaultPlotRect.YBottom-logic.DefaultPlotRect.YTop, "Plot height (px)")
	fs.Int("plot.grid-lines", 5, "Horizontal guide lines inside the plot")

	fs.String("gpio.chip", "gpiochip0", "GPIO chip")
	fs.Int("gpio.pin", 16, "BCM pin of the pump reed sensor")
	fs.Bool("gpio.active-low", true, "Sensor reads low while the pump runs")

	fs.String("serial.port", "/dev/serial0", "Machine telemetry serial port (empty to disable)")
	fs.Int("serial.baud", 9600, "Serial baud rate")
	fs.Duration("serial.read-timeout", 5*time.Millisecond, "Serial read timeout")
	fs.Int("serial.max-line", 64, "Longest telemetry line kept")

	fs.Duration("telemetry.stale-after", 5*time.Second, "Re-poll the serial port after this long without a line")

	fs.String("mqtt.broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	fs.String("mqtt.client-id", "shot-monitor", "MQTT client ID")
	fs.Duration("mqtt.reading-interval", 5*time.Second, "Minimum time between published readings")
	fs.Int("mqtt.buffer-size", 256, "Messages held while the broker is unreachable")
	fs.String("mqtt.ws-broker", "=broker", `MQTT websocket URL for the live status page ("=broker" derives from mqtt.broker, "off" disables)`)

	fs.Bool("history.enabled", false, "Record shots and readings in SQLite")
	fs.String("history.db", "/var/lib/shot-monitor/history.db", "SQLite database path")
	fs.Int("history.batch-size", 30, "Readings per insert batch")
	fs.Duration("history.flush-interval", time.Minute, "Maximum time readings stay buffered")

	return fs
}

// Load parses args (without the program name) and merges every source.
func Load(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(DefaultConfigDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the control loop cannot run with.
func (c *Config) Validate() error {
	var errs []error

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"poll", c.Poll},
		{"debounce", c.Debounce},
		{"sleep.min-shot", c.Sleep.MinShot},
		{"sleep.cooldown", c.Sleep.Cooldown},
		{"refresh.interval", c.Refresh.Interval},
		{"refresh.readout-interval", c.Refresh.ReadoutInterval},
		{"plot.time-max", c.Plot.TimeMax},
		{"telemetry.stale-after", c.Telemetry.StaleAfter},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", p.name, p.d))
		}
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if c.Plot.ValueMax <= c.Plot.ValueMin {
		errs = append(errs, fmt.Errorf("plot.value-max (%v) must be above plot.value-min (%v)", c.Plot.ValueMax, c.Plot.ValueMin))
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		errs = append(errs, fmt.Errorf("plot size must be positive, got %dx%d", c.Plot.Width, c.Plot.Height))
	}
	if c.Serial.Port != "" && c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if c.History.Enabled && c.History.DB == "" {
		errs = append(errs, errors.New("history.db is required when history is enabled"))
	}

	return errors.Join(errs...)
}

// PlotRect returns the plot rectangle in pixel edges.
func (c *Config) PlotRect() logic.PlotRect {
	return logic.PlotRect{
		XLeft:   c.Plot.X,
		XRight:  c.Plot.X + c.Plot.Width,
		YTop:    c.Plot.Y,
		YBottom: c.Plot.Y + c.Plot.Height,
	}
}

// Monitor returns the control loop settings.
func (c *Config) Monitor() monitor.Config {
	return monitor.Config{
		Debounce:        c.Debounce,
		MinShot:         c.Sleep.MinShot,
		Cooldown:        c.Sleep.Cooldown,
		RefreshInterval: c.Refresh.Interval,
		ReadoutInterval: c.Refresh.ReadoutInterval,
		Plot:            c.PlotRect(),
		ValueMin:        c.Plot.ValueMin,
		ValueMax:        c.Plot.ValueMax,
		TimeMax:         c.Plot.TimeMax,
		GridLines:       c.Plot.GridLines,
		MaxLine:         c.Serial.MaxLine,
	}
}

// WSBrokerURL resolves mqtt.ws-broker into a concrete URL. "=broker" derives
// ws://host:9001 from the TCP broker address; "off" or an unparsable broker
// yields "".
func (c *Config) WSBrokerURL() string {
	switch c.MQTT.WSBroker {
	case "off", "":
		return ""
	case "=broker":
	default:
		return c.MQTT.WSBroker
	}
	u, err := url.Parse(c.MQTT.Broker)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

// Usage returns the flag help text.
func Usage() string {
	return newFlagSet().FlagUsages()
}
