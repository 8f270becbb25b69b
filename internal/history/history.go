// Package history keeps a persistent log of shots and machine readings.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/shot-monitor/internal/logic"
)

var (
	ErrInvalidDBPath = errors.New("history: database path is empty")
	ErrNilShot       = errors.New("history: shot is nil")
	ErrClosed        = errors.New("history: recorder is closed")
)

// Shot is one closed pump interval.
type Shot struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}

// Recorder stores shots and readings.
type Recorder interface {
	RecordShot(ctx context.Context, shot *Shot) error
	RecordReading(ctx context.Context, at time.Time, r logic.MachineReading) error
	// RecentShots returns up to limit shots, newest first.
	RecentShots(ctx context.Context, limit int) ([]Shot, error)
	Close() error
}

// Config controls the SQLite repository.
type Config struct {
	DBPath string
	// BatchSize is the number of readings buffered before a write.
	BatchSize int
	// FlushInterval flushes a partial batch; zero disables the timer.
	FlushInterval time.Duration
}

const (
	DefaultBatchSize     = 60
	DefaultFlushInterval = time.Minute
	// MaxPendingBatches bounds the reading backlog kept while writes fail.
	MaxPendingBatches = 10
)

// Noop discards everything. Used when history is disabled.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) RecordShot(_ context.Context, shot *Shot) error {
	if shot == nil {
		return ErrNilShot
	}
	return nil
}

func (Noop) RecordReading(context.Context, time.Time, logic.MachineReading) error { return nil }

func (Noop) RecentShots(context.Context, int) ([]Shot, error) { return nil, nil }

func (Noop) Close() error { return nil }
