package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/config"
	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/data"
)

// openTestDB connects to the database named by WORLDSIM_TEST_DSN and resets
// the schema's tables. Tests are skipped when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("WORLDSIM_TEST_DSN")
	if dsn == "" {
		t.Skip("WORLDSIM_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	version, err := RunMigrations(ctx, db.Pool, zap.NewNop())
	require.NoError(t, err)
	require.EqualValues(t, 3, version)

	_, err = db.Pool.Exec(ctx, `TRUNCATE snapshot_batch, entity_snapshot, entity_journal, world_meta`)
	require.NoError(t, err)
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db)
	ctx := context.Background()

	_, err := repo.LoadLatest(ctx)
	require.ErrorIs(t, err, ErrNoSnapshot)

	recs := []data.EntityRecord{
		{
			Handle:   3,
			Template: "drifter",
			Overrides: []ecs.ComponentInfo{
				{Name: "position", Fields: ecs.Fields{"value": ecs.String("5,5")}},
				{Name: "rotation", Fields: ecs.Fields{"value": ecs.Number(180)}},
			},
			Removed:     []string{"spin"},
			Fingerprint: 0xdeadbeefcafe,
		},
		{Handle: 7, Template: "crate", Fingerprint: 42},
	}
	first, err := repo.Save(ctx, recs[:1], 4)
	require.NoError(t, err)
	second, err := repo.Save(ctx, recs, 8)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	b, err := repo.LoadLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, second, b.ID)
	require.Equal(t, uint64(8), b.NextHandle)
	require.Equal(t, recs, b.Records)

	n, err := repo.Prune(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCounterNeverMovesBack(t *testing.T) {
	db := openTestDB(t)
	repo := NewSnapshotRepo(db)
	ctx := context.Background()

	v, err := repo.LoadCounter(ctx)
	require.NoError(t, err)
	require.Zero(t, v)

	require.NoError(t, repo.SaveCounter(ctx, 100))
	require.NoError(t, repo.SaveCounter(ctx, 40))
	v, err = repo.LoadCounter(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(100), v)
}

func TestJournalTruncatesBySnapshot(t *testing.T) {
	db := openTestDB(t)
	journal := NewJournalRepo(db)
	snaps := NewSnapshotRepo(db)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	require.NoError(t, journal.Write(ctx, []JournalEntry{
		{Kind: JournalSpawn, Handle: 1, Template: "crate"},
		{Kind: JournalDestroy, Handle: 1},
	}))
	got, err := journal.Since(ctx, start)
	require.NoError(t, err)
	require.Equal(t, []JournalEntry{
		{Kind: JournalSpawn, Handle: 1, Template: "crate"},
		{Kind: JournalDestroy, Handle: 1},
	}, got)

	id, err := snaps.Save(ctx, nil, 2)
	require.NoError(t, err)
	n, err := journal.Truncate(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = journal.Truncate(ctx, uuid.New())
	require.NoError(t, err)
	require.Zero(t, n, "unknown batch truncates nothing")
}
