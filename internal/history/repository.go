package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/sweeney/shot-monitor/internal/logic"
)

const defaultDirPerm = 0o755

type reading struct {
	at time.Time
	r  logic.MachineReading
}

// Repository is the SQLite-backed Recorder.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	cfg Config

	mu     sync.Mutex
	buffer []reading
	// unflushed counts readings added since the last flush attempt.
	unflushed int
	dropped   int // since the last successful flush
	closed    bool

	flushTicker *time.Ticker
	shutdown    chan struct{}
	flushDone   chan struct{}
}

// Open creates the database file and schema if needed and starts the
// background flusher.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Repository, error) {
	if cfg.DBPath == "" {
		return nil, ErrInvalidDBPath
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	log = log.With().Str("component", "history").Logger()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", cfg.DBPath, err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY between
	// the loop and the flusher.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}

	r := &Repository{
		db:        db,
		log:       log,
		cfg:       cfg,
		buffer:    make([]reading, 0, cfg.BatchSize),
		shutdown:  make(chan struct{}),
		flushDone: make(chan struct{}),
	}
	if cfg.FlushInterval > 0 {
		r.flushTicker = time.NewTicker(cfg.FlushInterval)
		go r.flusher()
	} else {
		close(r.flushDone)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("history opened")
	return r, nil
}

// RecordShot writes the shot immediately.
func (r *Repository) RecordShot(ctx context.Context, shot *Shot) error {
	if shot == nil {
		return ErrNilShot
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	_, err := r.db.ExecContext(ctx, insertShotSQL,
		shot.ID,
		shot.StartedAt.UnixMilli(),
		shot.EndedAt.UnixMilli(),
		shot.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("history: insert shot %s: %w", shot.ID, err)
	}
	return nil
}

// RecordReading buffers the reading and writes once a batch worth of new
// readings has arrived. While writes fail the backlog is capped at
// MaxPendingBatches batches, dropping the oldest.
func (r *Repository) RecordReading(ctx context.Context, at time.Time, m logic.MachineReading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	if limit := r.cfg.BatchSize * MaxPendingBatches; len(r.buffer) >= limit {
		if r.dropped == 0 {
			r.log.Warn().Int("limit", limit).Msg("reading backlog full, dropping oldest")
		}
		r.dropped++
		n := copy(r.buffer, r.buffer[1:])
		r.buffer = r.buffer[:n]
	}
	r.buffer = append(r.buffer, reading{at: at, r: m})
	r.unflushed++

	if r.unflushed >= r.cfg.BatchSize {
		return r.flush(ctx)
	}
	return nil
}

// Buffered returns the number of readings not yet written.
func (r *Repository) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

// Flush writes any buffered readings.
func (r *Repository) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush(ctx)
}

func (r *Repository) RecentShots(ctx context.Context, limit int) ([]Shot, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, recentShotsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query shots: %w", err)
	}
	defer rows.Close()

	var shots []Shot
	for rows.Next() {
		var (
			s                   Shot
			started, ended, dur int64
		)
		if err := rows.Scan(&s.ID, &started, &ended, &dur); err != nil {
			return nil, fmt.Errorf("history: scan shot: %w", err)
		}
		s.StartedAt = time.UnixMilli(started)
		s.EndedAt = time.UnixMilli(ended)
		s.Duration = time.Duration(dur) * time.Millisecond
		shots = append(shots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: read shots: %w", err)
	}
	return shots, nil
}

// CountReadings returns the number of stored readings.
func (r *Repository) CountReadings(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count readings: %w", err)
	}
	return n, nil
}

// Close flushes pending readings, checkpoints the WAL and closes the database.
func (r *Repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.shutdown)
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	<-r.flushDone

	r.mu.Lock()
	err := r.flush(context.Background())
	r.mu.Unlock()
	if err != nil {
		r.log.Error().Err(err).Msg("final flush failed")
	}

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.log.Warn().Err(err).Msg("wal checkpoint failed")
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	r.log.Info().Msg("history closed")
	return nil
}

func (r *Repository) flusher() {
	defer close(r.flushDone)
	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(context.Background()); err != nil {
				r.log.Error().Err(err).Msg("periodic flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdown:
			return
		}
	}
}

// flush must be called with mu held. The buffer is kept on failure so the
// next flush retries it.
func (r *Repository) flush(ctx context.Context) error {
	if len(r.buffer) == 0 {
		return nil
	}
	r.unflushed = 0

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin flush: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("history: prepare reading insert: %w", err)
	}
	defer stmt.Close()

	for _, rd := range r.buffer {
		_, err := stmt.ExecContext(ctx,
			rd.at.UnixMilli(),
			nullInt(rd.r.CurrentSteamTemp),
			nullInt(rd.r.TargetSteamTemp),
			nullInt(rd.r.HXTemp),
			nullBool(rd.r.HeatingOn),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("history: insert reading: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit readings: %w", err)
	}

	r.log.Debug().Int("records", len(r.buffer)).Msg("flushed readings")
	if r.dropped > 0 {
		r.log.Warn().Int("dropped", r.dropped).Msg("readings lost while the database was failing")
		r.dropped = 0
	}
	r.buffer = r.buffer[:0]
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullBool(v *bool) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	if *v {
		return sql.NullInt64{Int64: 1, Valid: true}
	}
	return sql.NullInt64{Int64: 0, Valid: true}
}
