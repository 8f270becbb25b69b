package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// SerialConfig holds the port settings. The machine talks 9600 8N1.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// SerialSource reads telemetry from a serial port.
type SerialSource struct {
	cfg SerialConfig
	log zerolog.Logger

	mu   sync.Mutex
	port serial.Port
}

// OpenSerial opens the port in 8N1 mode with a short read timeout so Read
// never stalls the control loop.
func OpenSerial(cfg SerialConfig, log zerolog.Logger) (*SerialSource, error) {
	s := &SerialSource{cfg: cfg, log: log.With().Str("component", "serial").Str("port", cfg.Port).Logger()}
	port, err := s.open()
	if err != nil {
		return nil, err
	}
	s.port = port
	s.log.Info().Int("baud", cfg.BaudRate).Msg("serial port open")
	return s, nil
}

func (s *SerialSource) open() (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", s.cfg.Port, err)
	}
	if err := port.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", s.cfg.Port, err)
	}
	return port, nil
}

// Read returns buffered bytes, waiting at most the configured read timeout.
func (s *SerialSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return 0, fmt.Errorf("serial %s: not open", s.cfg.Port)
	}
	n, err := s.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("read serial %s: %w", s.cfg.Port, err)
	}
	return n, nil
}

// Reset flushes the input buffer. If that fails the port is reopened, which
// recovers USB adapters that were unplugged and replugged.
func (s *SerialSource) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		err := s.port.ResetInputBuffer()
		if err == nil {
			return nil
		}
		s.log.Warn().Err(err).Msg("input reset failed, reopening")
		s.port.Close()
		s.port = nil
	}

	port, err := s.open()
	if err != nil {
		return err
	}
	s.port = port
	s.log.Info().Msg("serial port reopened")
	return nil
}

// Close releases the port.
func (s *SerialSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return fmt.Errorf("close serial %s: %w", s.cfg.Port, err)
	}
	return nil
}
