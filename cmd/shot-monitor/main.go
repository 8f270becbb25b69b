// Command shot-monitor watches an espresso machine's pump sensor and serial
// telemetry, times shots, drives the front panel and publishes to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/shot-monitor/internal/config"
	"github.com/sweeney/shot-monitor/internal/display"
	"github.com/sweeney/shot-monitor/internal/gpio"
	"github.com/sweeney/shot-monitor/internal/history"
	"github.com/sweeney/shot-monitor/internal/logger"
	"github.com/sweeney/shot-monitor/internal/metrics"
	"github.com/sweeney/shot-monitor/internal/monitor"
	"github.com/sweeney/shot-monitor/internal/mqtt"
	"github.com/sweeney/shot-monitor/internal/status"
	"github.com/sweeney/shot-monitor/internal/telemetry"
	"github.com/sweeney/shot-monitor/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shot-monitor: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(os.Stderr, cfg.LogLevel, logger.IsService())
	if err != nil {
		fmt.Fprintf(os.Stderr, "shot-monitor: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	gpioReader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Pin, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	if cfg.PrintState {
		active, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("pump: %s\n", levelString(active))
		return nil
	}

	// The pump sensor alone is enough to time shots, so a missing serial
	// adapter is not fatal.
	var source telemetry.Source
	if cfg.Serial.Port != "" {
		s, err := telemetry.OpenSerial(telemetry.SerialConfig{
			Port:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeout,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("telemetry disabled")
		} else {
			source = s
			defer s.Close()
		}
	}

	publisher := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.BufferSize,
	}, log)
	defer publisher.Close()

	var recorder history.Recorder = history.NewNoop()
	if cfg.History.Enabled {
		repo, err := history.Open(context.Background(), history.Config{
			DBPath:        cfg.History.DB,
			BatchSize:     cfg.History.BatchSize,
			FlushInterval: cfg.History.FlushInterval,
		}, log)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		recorder = repo
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Error().Err(err).Msg("close history")
		}
	}()

	m := metrics.New()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		MinShotMs:   cfg.Sleep.MinShot.Milliseconds(),
		CooldownMs:  cfg.Sleep.Cooldown.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		WSBroker:    cfg.WSBrokerURL(),
		SerialPort:  cfg.Serial.Port,
		History:     cfg.History.Enabled,
	})
	if net := readNetworkInfo(cfg.NetworkEnv); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn().Err(err).Msg("failed to publish startup event")
	} else {
		log.Info().Msg("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, recorder, m.Handler(), log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http status server listening")
	}

	start := time.Now()
	mon := monitor.New(cfg.Monitor(), display.NewHeadless(log), start)

	l := &loop{
		reader:     gpioReader,
		source:     source,
		monitor:    mon,
		publisher:  publisher,
		mqttStatus: publisher,
		recorder:   recorder,
		metrics:    m,
		tracker:    tracker,
		log:        log,
		heartbeat:  cfg.Heartbeat,
		readings:   rate.NewLimiter(rate.Every(cfg.MQTT.ReadingInterval), 1),
		staleAfter: cfg.Telemetry.StaleAfter,
		networkEnv: cfg.NetworkEnv,
	}

	log.Info().
		Dur("poll", cfg.Poll).
		Dur("debounce", cfg.Debounce).
		Str("broker", cfg.MQTT.Broker).
		Dur("heartbeat", cfg.Heartbeat).
		Bool("telemetry", source != nil).
		Bool("history", cfg.History.Enabled).
		Msg("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return l.run(time.Now, ticker.C, sigCh)
}

func levelString(active bool) string {
	if active {
		return "ACTIVE"
	}
	return "INACTIVE"
}
