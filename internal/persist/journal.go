package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JournalKind is the lifecycle step a journal entry records.
type JournalKind string

const (
	JournalSpawn   JournalKind = "spawn"
	JournalDestroy JournalKind = "destroy"
)

// JournalEntry records one entity spawning or being destroyed between two
// snapshots.
type JournalEntry struct {
	Kind     JournalKind
	Handle   uint64
	Template string // empty for destroy
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// Write atomically appends a batch of entries in a single transaction.
func (r *JournalRepo) Write(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO entity_journal (kind, handle, template) VALUES ($1, $2, $3)`,
			string(e.Kind), int64(e.Handle), e.Template,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Since returns the entries recorded after t, oldest first.
func (r *JournalRepo) Since(ctx context.Context, t time.Time) ([]JournalEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT kind, handle, template FROM entity_journal WHERE recorded_at > $1 ORDER BY id`, t,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e      JournalEntry
			kind   string
			handle int64
		)
		if err := rows.Scan(&kind, &handle, &e.Template); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Kind, e.Handle = JournalKind(kind), uint64(handle)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Truncate drops the entries a snapshot batch already covers.
func (r *JournalRepo) Truncate(ctx context.Context, batch uuid.UUID) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM entity_journal
		 WHERE recorded_at <= (SELECT taken_at FROM snapshot_batch WHERE id = $1)`, batch,
	)
	if err != nil {
		return 0, fmt.Errorf("journal truncate: %w", err)
	}
	return tag.RowsAffected(), nil
}
