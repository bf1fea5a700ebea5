package system

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/core/event"
	coresys "github.com/worldsim/worldsim/internal/core/system"
	"github.com/worldsim/worldsim/internal/data"
	"github.com/worldsim/worldsim/internal/persist"
	"github.com/worldsim/worldsim/internal/world"
)

const persistTimeout = 5 * time.Second

// SnapshotStore saves whole-world snapshots. Implemented by
// persist.SnapshotRepo.
type SnapshotStore interface {
	Save(ctx context.Context, recs []data.EntityRecord, nextHandle uint64) (uuid.UUID, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// Journal records spawns and destroys between snapshots. Implemented by
// persist.JournalRepo.
type Journal interface {
	Write(ctx context.Context, entries []persist.JournalEntry) error
	Truncate(ctx context.Context, batch uuid.UUID) (int64, error)
}

// PersistenceSystem journals entity lifecycle events every tick and saves a
// full snapshot every interval ticks. Phase 5 (Persist).
type PersistenceSystem struct {
	world     *world.World
	store     SnapshotStore
	journal   Journal // optional
	log       *zap.Logger
	tickCount int
	interval  int // snapshot every N ticks
	keep      int // snapshots kept after pruning; <= 0 keeps all

	pending []persist.JournalEntry
	last    uuid.UUID
}

func NewPersistenceSystem(w *world.World, store SnapshotStore, journal Journal, log *zap.Logger, intervalTicks, keep int) *PersistenceSystem {
	s := &PersistenceSystem{
		world:    w,
		store:    store,
		journal:  journal,
		log:      log,
		interval: intervalTicks,
		keep:     keep,
	}
	if journal != nil {
		event.Subscribe(w.Bus(), func(e event.EntitySpawned) {
			s.pending = append(s.pending, persist.JournalEntry{Kind: persist.JournalSpawn, Handle: e.Handle, Template: e.Template})
		})
		event.Subscribe(w.Bus(), func(e event.EntityDestroyed) {
			s.pending = append(s.pending, persist.JournalEntry{Kind: persist.JournalDestroy, Handle: e.Handle})
		})
	}
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.flushJournal()

	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.save()
}

// SaveNow writes a snapshot immediately. Called on graceful shutdown so no
// state is lost.
func (s *PersistenceSystem) SaveNow() error {
	s.flushJournal()
	return s.save()
}

// LastBatch returns the id of the most recent snapshot this system saved.
func (s *PersistenceSystem) LastBatch() uuid.UUID { return s.last }

func (s *PersistenceSystem) flushJournal() {
	if s.journal == nil || len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.journal.Write(ctx, s.pending); err != nil {
		// Entries stay pending and are retried next tick.
		s.log.Error("journal write failed", zap.Int("entries", len(s.pending)), zap.Error(err))
		return
	}
	s.pending = s.pending[:0]
}

func (s *PersistenceSystem) save() error {
	recs := s.world.Snapshot()
	next := uint64(s.world.NextHandle())

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	id, err := s.store.Save(ctx, recs, next)
	if err != nil {
		s.log.Error("snapshot save failed", zap.Int("entities", len(recs)), zap.Error(err))
		return err
	}
	s.last = id
	s.log.Info("snapshot saved", zap.Stringer("batch", id), zap.Int("entities", len(recs)), zap.Uint64("next_handle", next))

	if s.journal != nil {
		if n, err := s.journal.Truncate(ctx, id); err != nil {
			s.log.Error("journal truncate failed", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("journal truncated", zap.Int64("entries", n))
		}
	}
	if s.keep > 0 {
		if n, err := s.store.Prune(ctx, s.keep); err != nil {
			s.log.Error("snapshot prune failed", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("snapshots pruned", zap.Int64("batches", n))
		}
	}
	return nil
}

// ReplayJournal applies the journal entries recorded after the snapshot the
// world was restored from, oldest first. The journal carries no entity
// state, so a replayed spawn comes back as its template builds it. Spawns of
// live handles and destroys of unknown handles are skipped.
func ReplayJournal(w *world.World, entries []persist.JournalEntry, log *zap.Logger) (spawned, destroyed int) {
	for _, e := range entries {
		h := ecs.Handle(e.Handle)
		switch e.Kind {
		case persist.JournalSpawn:
			if _, ok := w.Get(h); ok {
				continue
			}
			if _, err := w.Restore(data.EntityRecord{Handle: e.Handle, Template: e.Template}); err != nil {
				log.Warn("skip journaled spawn", zap.Uint64("handle", e.Handle), zap.String("template", e.Template), zap.Error(err))
				continue
			}
			spawned++
		case persist.JournalDestroy:
			if w.MarkForDestruction(h) {
				destroyed++
			}
		default:
			log.Warn("unknown journal entry", zap.String("kind", string(e.Kind)), zap.Uint64("handle", e.Handle))
		}
	}
	w.FlushDestroyQueue()
	return spawned, destroyed
}
