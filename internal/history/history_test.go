package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/shot-monitor/internal/logic"
)

var t0 = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

func openTest(t *testing.T, cfg Config) *Repository {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "nested", "history.db")
	}
	r, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidDBPath)
}

func TestRecordAndListShots(t *testing.T) {
	r := openTest(t, Config{})
	ctx := context.Background()

	for i, d := range []time.Duration{25 * time.Second, 9 * time.Second, 31 * time.Second} {
		start := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, r.RecordShot(ctx, &Shot{
			ID:        string(rune('a' + i)),
			StartedAt: start,
			EndedAt:   start.Add(d),
			Duration:  d,
		}))
	}

	shots, err := r.RecentShots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, "c", shots[0].ID)
	assert.Equal(t, "b", shots[1].ID)
	assert.Equal(t, 31*time.Second, shots[0].Duration)
	assert.True(t, shots[0].StartedAt.Equal(t0.Add(2*time.Minute)))
	assert.True(t, shots[0].EndedAt.Equal(t0.Add(2*time.Minute+31*time.Second)))
}

func TestRecentShotsEmpty(t *testing.T) {
	r := openTest(t, Config{})

	shots, err := r.RecentShots(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, shots)

	shots, err = r.RecentShots(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, shots)
}

func TestRecordShotNil(t *testing.T) {
	r := openTest(t, Config{})
	assert.ErrorIs(t, r.RecordShot(context.Background(), nil), ErrNilShot)
}

func TestRecordShotDuplicateID(t *testing.T) {
	r := openTest(t, Config{})
	ctx := context.Background()
	shot := &Shot{ID: "same", StartedAt: t0, EndedAt: t0.Add(time.Second), Duration: time.Second}

	require.NoError(t, r.RecordShot(ctx, shot))
	assert.Error(t, r.RecordShot(ctx, shot))
}

func TestReadingsBatch(t *testing.T) {
	r := openTest(t, Config{BatchSize: 3})
	ctx := context.Background()

	require.NoError(t, r.RecordReading(ctx, t0, logic.MachineReading{HXTemp: intp(93)}))
	require.NoError(t, r.RecordReading(ctx, t0.Add(time.Second), logic.MachineReading{HeatingOn: boolp(false)}))
	assert.Equal(t, 2, r.Buffered())

	n, err := r.CountReadings(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing written before the batch fills")

	require.NoError(t, r.RecordReading(ctx, t0.Add(2*time.Second), logic.MachineReading{
		CurrentSteamTemp: intp(116),
		TargetSteamTemp:  intp(124),
	}))
	assert.Zero(t, r.Buffered())

	n, err = r.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReadingBacklogIsCapped(t *testing.T) {
	r := openTest(t, Config{BatchSize: 2})
	ctx := context.Background()

	_, err := r.db.Exec("DROP TABLE readings")
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		err := r.RecordReading(ctx, t0.Add(time.Duration(i)*time.Second), logic.MachineReading{HXTemp: intp(90 + i)})
		if i%2 == 1 {
			assert.Error(t, err, "reading %d completes a batch and the write fails", i)
		} else {
			assert.NoError(t, err, "reading %d", i)
		}
	}
	assert.Equal(t, 2*MaxPendingBatches, r.Buffered())

	_, err = r.db.Exec(createTablesSQL)
	require.NoError(t, err)
	require.NoError(t, r.Flush(ctx))
	assert.Zero(t, r.Buffered())

	n, err := r.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*MaxPendingBatches, n)

	var oldest int64
	require.NoError(t, r.db.QueryRow("SELECT MIN(timestamp) FROM readings").Scan(&oldest))
	assert.Equal(t, t0.Add(10*time.Second).UnixMilli(), oldest, "oldest readings are dropped first")
}

func TestReadingsStoreNulls(t *testing.T) {
	r := openTest(t, Config{BatchSize: 10})
	ctx := context.Background()

	require.NoError(t, r.RecordReading(ctx, t0, logic.MachineReading{HXTemp: intp(93)}))
	require.NoError(t, r.Flush(ctx))

	var steam, hx, heating *int64
	err := r.db.QueryRowContext(ctx, `SELECT steam, hx, heating FROM readings`).Scan(&steam, &hx, &heating)
	require.NoError(t, err)
	assert.Nil(t, steam)
	require.NotNil(t, hx)
	assert.EqualValues(t, 93, *hx)
	assert.Nil(t, heating)
}

func TestPeriodicFlush(t *testing.T) {
	r := openTest(t, Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, r.RecordReading(ctx, t0, logic.MachineReading{HXTemp: intp(90)}))

	assert.Eventually(t, func() bool {
		return r.Buffered() == 0
	}, time.Second, 5*time.Millisecond)

	n, err := r.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCloseFlushesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	r, err := Open(ctx, Config{DBPath: path, BatchSize: 100}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.RecordReading(ctx, t0, logic.MachineReading{HXTemp: intp(90)}))
	require.NoError(t, r.RecordShot(ctx, &Shot{ID: "x", StartedAt: t0, EndedAt: t0.Add(20 * time.Second), Duration: 20 * time.Second}))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "second close is a no-op")

	assert.ErrorIs(t, r.RecordReading(ctx, t0, logic.MachineReading{}), ErrClosed)
	assert.ErrorIs(t, r.RecordShot(ctx, &Shot{ID: "y"}), ErrClosed)

	r2 := openTest(t, Config{DBPath: path})
	n, err := r2.CountReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	shots, err := r2.RecentShots(ctx, 5)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.Equal(t, "x", shots[0].ID)
}

func TestSchemaVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	r, err := Open(ctx, Config{DBPath: path}, zerolog.Nop())
	require.NoError(t, err)
	_, err = r.db.ExecContext(ctx, `INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'))`)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = Open(ctx, Config{DBPath: path}, zerolog.Nop())
	assert.ErrorContains(t, err, "schema version 99")
}

func TestNoop(t *testing.T) {
	var rec Recorder = NewNoop()
	ctx := context.Background()

	assert.NoError(t, rec.RecordShot(ctx, &Shot{ID: "a"}))
	assert.ErrorIs(t, rec.RecordShot(ctx, nil), ErrNilShot)
	assert.NoError(t, rec.RecordReading(ctx, t0, logic.MachineReading{}))
	shots, err := rec.RecentShots(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, shots)
	assert.NoError(t, rec.Close())
}

var _ Recorder = (*Repository)(nil)
