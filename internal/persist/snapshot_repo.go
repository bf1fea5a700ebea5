package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/data"
)

// ErrNoSnapshot is returned by LoadLatest when nothing was ever saved.
var ErrNoSnapshot = errors.New("no snapshot saved")

const nextHandleKey = "next_handle"

// Batch is one saved world snapshot.
type Batch struct {
	ID         uuid.UUID
	TakenAt    time.Time
	NextHandle uint64
	Records    []data.EntityRecord
}

// SnapshotRepo stores template-relative entity snapshots and the handle
// counter.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save writes a whole snapshot in one transaction: the batch header, every
// entity record and the handle counter. It returns the new batch id.
func (r *SnapshotRepo) Save(ctx context.Context, recs []data.EntityRecord, nextHandle uint64) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("snapshot id: %w", err)
	}

	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		overrides, err := json.Marshal(nonNil(rec.Overrides))
		if err != nil {
			return uuid.Nil, fmt.Errorf("encode overrides of %d: %w", rec.Handle, err)
		}
		removed, err := json.Marshal(nonNil(rec.Removed))
		if err != nil {
			return uuid.Nil, fmt.Errorf("encode removed of %d: %w", rec.Handle, err)
		}
		rows = append(rows, []any{id, int64(rec.Handle), rec.Template, int64(rec.Fingerprint), string(overrides), string(removed)})
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshot_batch (id, entity_count, next_handle) VALUES ($1, $2, $3)`,
		id, len(recs), int64(nextHandle),
	); err != nil {
		return uuid.Nil, fmt.Errorf("snapshot header: %w", err)
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"entity_snapshot"},
		[]string{"batch_id", "handle", "template", "fingerprint", "overrides", "removed"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return uuid.Nil, fmt.Errorf("snapshot rows: %w", err)
	}
	if err := saveCounter(ctx, tx, nextHandle); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("snapshot commit: %w", err)
	}
	r.db.log.Debug("snapshot saved", zap.Stringer("batch", id), zap.Int("entities", len(recs)))
	return id, nil
}

// LoadLatest returns the most recent snapshot.
func (r *SnapshotRepo) LoadLatest(ctx context.Context) (*Batch, error) {
	var (
		b    Batch
		next int64
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, taken_at, next_handle FROM snapshot_batch ORDER BY taken_at DESC, id DESC LIMIT 1`,
	).Scan(&b.ID, &b.TakenAt, &next)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot header: %w", err)
	}
	b.NextHandle = uint64(next)

	rows, err := r.db.Pool.Query(ctx,
		`SELECT handle, template, fingerprint, overrides, removed
		 FROM entity_snapshot WHERE batch_id = $1 ORDER BY handle`, b.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec                data.EntityRecord
			handle, fp         int64
			overrides, removed []byte
		)
		if err := rows.Scan(&handle, &rec.Template, &fp, &overrides, &removed); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		rec.Handle, rec.Fingerprint = uint64(handle), uint64(fp)
		if err := json.Unmarshal(overrides, &rec.Overrides); err != nil {
			return nil, fmt.Errorf("decode overrides of %d: %w", handle, err)
		}
		if err := json.Unmarshal(removed, &rec.Removed); err != nil {
			return nil, fmt.Errorf("decode removed of %d: %w", handle, err)
		}
		if len(rec.Overrides) == 0 {
			rec.Overrides = nil
		}
		if len(rec.Removed) == 0 {
			rec.Removed = nil
		}
		b.Records = append(b.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load snapshot rows: %w", err)
	}
	return &b, nil
}

// Prune deletes all but the newest keep snapshots.
func (r *SnapshotRepo) Prune(ctx context.Context, keep int) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM snapshot_batch WHERE id NOT IN (
		   SELECT id FROM snapshot_batch ORDER BY taken_at DESC, id DESC LIMIT $1)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveCounter persists the next handle on its own.
func (r *SnapshotRepo) SaveCounter(ctx context.Context, next uint64) error {
	return saveCounter(ctx, r.db.Pool, next)
}

// LoadCounter returns the persisted next handle, or 0 when none was saved.
func (r *SnapshotRepo) LoadCounter(ctx context.Context) (uint64, error) {
	var v int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM world_meta WHERE key = $1`, nextHandleKey,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load handle counter: %w", err)
	}
	return uint64(v), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// saveCounter never moves the stored counter backwards.
func saveCounter(ctx context.Context, db execer, next uint64) error {
	_, err := db.Exec(ctx,
		`INSERT INTO world_meta (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE
		 SET value = GREATEST(world_meta.value, EXCLUDED.value), updated_at = now()`,
		nextHandleKey, int64(next),
	)
	if err != nil {
		return fmt.Errorf("save handle counter: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
