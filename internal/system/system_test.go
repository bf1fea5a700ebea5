package system

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/worldsim/worldsim/internal/component"
	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/core/event"
	coresys "github.com/worldsim/worldsim/internal/core/system"
	"github.com/worldsim/worldsim/internal/data"
	"github.com/worldsim/worldsim/internal/geom"
	"github.com/worldsim/worldsim/internal/persist"
	"github.com/worldsim/worldsim/internal/world"
)

const testTemplates = `
name: player
components:
  - position
  - keyboard_input
  - wasd_movement_control:
      speed: 10
  - sprite:
      index: 3
      colour: "#ff0000"
---
name: rock
components:
  - position
`

func newWorld(t *testing.T) *world.World {
	t.Helper()
	reg := ecs.NewRegistry()
	component.DeclareBuiltins(reg, component.Env{Log: zap.NewNop()})
	var ts []data.Template
	for _, doc := range strings.Split(testTemplates, "\n---\n") {
		tpl, err := data.ParseTemplate([]byte(doc))
		require.NoError(t, err)
		ts = append(ts, tpl)
	}
	table, err := data.ResolveAll(ts, reg, zap.NewNop())
	require.NoError(t, err)
	return world.New(reg, table, geom.R(0, 0, 100, 100), 1, nil, zap.NewNop())
}

type frames struct{ got []Frame }

func (f *frames) Draw(fr Frame) {
	fr.Drawables = append([]Drawable(nil), fr.Drawables...)
	f.got = append(f.got, fr)
}

func pipeline(w *world.World, q *InputQueue, r Renderer) *coresys.Runner {
	run := coresys.NewRunner(nil, 0)
	run.Register(NewCleanupSystem(w))
	run.Register(NewRenderSystem(w, r))
	run.Register(NewSpatialSystem(w, zap.NewNop()))
	run.Register(NewTickSystem(w))
	run.Register(NewEventDispatchSystem(w.Bus()))
	run.Register(NewInputSystem(w, q, 0, zap.NewNop()))
	return run
}

func TestPipelineMovesRefilesAndRenders(t *testing.T) {
	w := newWorld(t)
	p, err := w.Spawn("player", geom.V(20, 20))
	require.NoError(t, err)
	_, err = w.Spawn("rock", geom.V(80, 80))
	require.NoError(t, err)
	require.False(t, w.Tree().Root().IsLeaf())

	q := NewInputQueue(8)
	fr := &frames{}
	run := pipeline(w, q, fr)

	require.True(t, q.Push(event.RawKey{Key: "d", Pressed: true}))
	for i := 0; i < 4; i++ {
		run.Tick(time.Second)
	}

	require.Equal(t, geom.V(60, 20), p.Position())
	leaf, ok := w.Tree().LeafOf(p.Handle())
	require.True(t, ok)
	require.Same(t, w.Tree().GetLeafAt(p.Position()), leaf, "moved entity re-filed in the same tick")
	require.Equal(t, 0, w.PendingMoves())

	require.Len(t, fr.got, 4)
	last := fr.got[3]
	require.Equal(t, uint64(4), last.Seq)
	require.Len(t, last.Drawables, 1, "rock has no sprite")
	d := last.Drawables[0]
	require.Equal(t, p.Handle(), d.Handle)
	require.Equal(t, 3, d.Index)
	require.Equal(t, uint8(255), d.R)
	require.Equal(t, geom.V(60, 20), d.World.Translation())
}

func TestCleanupRunsAfterEverythingElse(t *testing.T) {
	w := newWorld(t)
	p, err := w.Spawn("player", geom.V(20, 20))
	require.NoError(t, err)
	fr := &frames{}
	run := pipeline(w, NewInputQueue(1), fr)

	require.True(t, w.MarkForDestruction(p.Handle()))
	run.Tick(time.Second)
	require.Len(t, fr.got[0].Drawables, 1, "still drawn in the tick it was marked")
	_, ok := w.Get(p.Handle())
	require.False(t, ok)

	run.Tick(time.Second)
	require.Empty(t, fr.got[1].Drawables)
}

func TestInputQueueDropsWhenFull(t *testing.T) {
	w := newWorld(t)
	q := NewInputQueue(2)
	require.True(t, q.Push(event.RawKey{Key: "w", Pressed: true}))
	require.True(t, q.Push(event.RawKey{Key: "w", Pressed: false}))
	require.False(t, q.Push(event.RawKey{Key: "a", Pressed: true}))
	require.Equal(t, uint64(1), q.Dropped())

	s := NewInputSystem(w, q, 1, zap.NewNop())
	s.Update(0)
	require.Equal(t, 1, q.Len(), "one event per tick")
	s.Update(0)
	require.Zero(t, q.Len())
}

type fakeStore struct {
	saves  [][]data.EntityRecord
	nexts  []uint64
	pruned int
	fail   bool
}

func (f *fakeStore) Save(_ context.Context, recs []data.EntityRecord, next uint64) (uuid.UUID, error) {
	if f.fail {
		return uuid.Nil, errors.New("database gone")
	}
	f.saves = append(f.saves, recs)
	f.nexts = append(f.nexts, next)
	return uuid.New(), nil
}

func (f *fakeStore) Prune(context.Context, int) (int64, error) {
	f.pruned++
	return 0, nil
}

type fakeJournal struct {
	entries   []persist.JournalEntry
	truncated []uuid.UUID
	fail      bool
}

func (f *fakeJournal) Write(_ context.Context, es []persist.JournalEntry) error {
	if f.fail {
		return errors.New("database gone")
	}
	f.entries = append(f.entries, es...)
	return nil
}

func (f *fakeJournal) Truncate(_ context.Context, id uuid.UUID) (int64, error) {
	f.truncated = append(f.truncated, id)
	return 0, nil
}

func TestPersistenceSavesEveryInterval(t *testing.T) {
	w := newWorld(t)
	_, err := w.Spawn("rock", geom.V(1, 1))
	require.NoError(t, err)

	store, journal := &fakeStore{}, &fakeJournal{}
	s := NewPersistenceSystem(w, store, journal, zap.NewNop(), 3, 2)
	dispatch := NewEventDispatchSystem(w.Bus())

	for i := 0; i < 7; i++ {
		dispatch.Update(0)
		s.Update(0)
	}
	require.Len(t, store.saves, 2)
	require.Equal(t, []uint64{2, 2}, store.nexts)
	require.Len(t, store.saves[0], 1)
	require.Equal(t, "rock", store.saves[0][0].Template)
	require.Equal(t, 2, store.pruned)
	require.Len(t, journal.truncated, 2)
	require.Equal(t, s.LastBatch(), journal.truncated[1])

	require.Equal(t, []persist.JournalEntry{{Kind: persist.JournalSpawn, Handle: 1, Template: "rock"}}, journal.entries)
}

func TestPersistenceJournalRetriesAndShutdownSave(t *testing.T) {
	w := newWorld(t)
	store, journal := &fakeStore{}, &fakeJournal{fail: true}
	s := NewPersistenceSystem(w, store, journal, zap.NewNop(), 0, 0)
	dispatch := NewEventDispatchSystem(w.Bus())

	r, err := w.Spawn("rock", geom.V(1, 1))
	require.NoError(t, err)
	w.MarkForDestruction(r.Handle())
	w.FlushDestroyQueue()

	dispatch.Update(0)
	s.Update(0)
	require.Empty(t, journal.entries)
	require.Empty(t, store.saves, "interval 0 disables periodic saves")

	journal.fail = false
	require.NoError(t, s.SaveNow())
	require.Equal(t, []persist.JournalEntry{
		{Kind: persist.JournalSpawn, Handle: 1, Template: "rock"},
		{Kind: persist.JournalDestroy, Handle: 1},
	}, journal.entries)
	require.Len(t, store.saves, 1)
	require.Empty(t, store.saves[0])
	require.Zero(t, store.pruned, "keep 0 never prunes")

	store.fail = true
	require.Error(t, s.SaveNow())
}

func TestReplayJournalAfterSnapshot(t *testing.T) {
	w := newWorld(t)
	for i := 0; i < 2; i++ {
		_, err := w.Spawn("rock", geom.V(1, 1))
		require.NoError(t, err)
	}
	core, logs := observer.New(zapcore.WarnLevel)

	spawned, destroyed := ReplayJournal(w, []persist.JournalEntry{
		{Kind: persist.JournalDestroy, Handle: 1},
		{Kind: persist.JournalSpawn, Handle: 5, Template: "player"},
		{Kind: persist.JournalSpawn, Handle: 2, Template: "rock"},
		{Kind: persist.JournalDestroy, Handle: 9},
		{Kind: persist.JournalSpawn, Handle: 6, Template: "gone"},
		{Kind: persist.JournalSpawn, Handle: 7, Template: "rock"},
		{Kind: persist.JournalDestroy, Handle: 7},
	}, zap.New(core))

	require.Equal(t, 2, spawned)
	require.Equal(t, 2, destroyed)
	require.Equal(t, 2, w.Len())
	_, ok := w.Get(1)
	require.False(t, ok)
	p, ok := w.Get(5)
	require.True(t, ok)
	require.Equal(t, "player", p.Template())
	_, ok = w.Get(7)
	require.False(t, ok)
	require.Equal(t, ecs.Handle(8), w.NextHandle(), "replayed handles are never reissued")
	require.Equal(t, 1, logs.FilterMessage("skip journaled spawn").Len())
}
