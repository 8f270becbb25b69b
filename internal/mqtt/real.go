package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned for messages that are not worth holding for
// replay (readings) while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// Options configure a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Shot and system events
// published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	log    zerolog.Logger
	now    func() time.Time

	mu            sync.Mutex
	buffer        *ringBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher and starts connecting in the
// background. It never fails: until the first connection succeeds, events
// go to the offline buffer.
func NewRealPublisher(opts Options, log zerolog.Logger) *RealPublisher {
	p := &RealPublisher{
		log: log.With().Str("component", "mqtt").Str("broker", opts.Broker).Logger(),
		now: time.Now,
	}
	p.buffer = newRingBuffer(opts.BufferSize, p.log)

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("connection lost")
		})

	p.client = paho.NewClient(co)
	p.client.Connect()
	return p
}

// onConnect runs on its own goroutine for the first connect and every
// reconnect.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	p.log.Info().Bool("reconnect", reconnect).Int("buffered", len(pending)).Msg("connected")

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}); err != nil {
			p.log.Error().Err(err).Msg("publish reconnected event")
		}
	}

	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			// Put the rest back; they go out on the next connect.
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buffer.push(m)
			}
			p.mu.Unlock()
			p.log.Error().Err(err).Int("remaining", len(pending)-i).Msg("replay interrupted")
			return
		}
	}
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// publish sends msg, or buffers it when offline and keep is set.
func (p *RealPublisher) publish(msg bufferedMsg, keep bool) error {
	if !p.client.IsConnectionOpen() {
		if !keep {
			return ErrNotConnected
		}
		p.mu.Lock()
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	return p.send(msg)
}

// PublishShot sends a shot transition. QoS 1, buffered while offline.
func (p *RealPublisher) PublishShot(event ShotEvent) error {
	payload, err := FormatShotPayload(event)
	if err != nil {
		return fmt.Errorf("format shot payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicEvents, payload: payload, qos: 1}, true)
}

// PublishReading sends a telemetry reading. QoS 0 and dropped while offline.
func (p *RealPublisher) PublishReading(event ReadingEvent) error {
	payload, err := FormatReadingPayload(event)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicReadings, payload: payload}, false)
}

// PublishSystem sends a system lifecycle event. QoS 1, buffered while offline.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}, true)
}

// IsConnected reports whether the client currently has an open connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
