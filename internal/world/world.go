package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/data"
	"github.com/worldsim/worldsim/internal/geom"
)

var (
	ErrUnknownTemplate = errors.New("unknown template")

	ErrHandleInUse = errors.New("handle already in use")
)

// World tracks every live entity together with the registry and template
// table used to build them and the spatial index that files them.
// Single-goroutine access only (simulation loop).
type World struct {
	log       *zap.Logger
	registry  *ecs.Registry
	templates *data.TemplateTable
	tree      *WorldTree
	bus       *event.Bus
	handles   *ecs.HandleCounter

	objects map[ecs.Handle]*ecs.GameObject
	order   []*ecs.GameObject // spawn order; compacted on flush

	destroyQueue []ecs.Handle
	doomed       map[ecs.Handle]bool

	moved      map[ecs.Handle]geom.Vec2 // handle → position before the first move this tick
	movedOrder []ecs.Handle
}

// New creates an empty world covering bounds. capacity <= 0 uses
// ContentLimit.
func New(reg *ecs.Registry, templates *data.TemplateTable, bounds geom.Rect, capacity int, bus *event.Bus, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	if bus == nil {
		bus = event.NewBus()
	}
	return &World{
		log:       log,
		registry:  reg,
		templates: templates,
		tree:      NewWorldTree(bounds, capacity, log.Named("tree")),
		bus:       bus,
		handles:   ecs.NewHandleCounter(),
		objects:   make(map[ecs.Handle]*ecs.GameObject, 256),
		doomed:    make(map[ecs.Handle]bool),
		moved:     make(map[ecs.Handle]geom.Vec2),
	}
}

func (w *World) Registry() *ecs.Registry { return w.registry }
func (w *World) Templates() *data.TemplateTable { return w.templates }
func (w *World) Tree() *WorldTree { return w.tree }
func (w *World) Bus() *event.Bus { return w.bus }

// Len returns the number of live entities, including ones queued for
// destruction.
func (w *World) Len() int { return len(w.objects) }

// NextHandle is the handle the next spawn will get. Persist it to keep
// handles unique across runs.
func (w *World) NextHandle() ecs.Handle { return w.handles.Peek() }

// SetNextHandle restores a persisted counter. It never moves the counter
// backwards.
func (w *World) SetNextHandle(h ecs.Handle) {
	if h > 0 {
		w.handles.Advance(h - 1)
	}
}

// Spawn builds an entity from a template and places it at p.
func (w *World) Spawn(template string, at geom.Vec2) (*ecs.GameObject, error) {
	tpl, ok := w.templates.Get(template)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}
	infos, err := tpl.Apply(nil, nil)
	if err != nil {
		return nil, err
	}
	return w.build(w.handles.Next(), tpl, infos, &at)
}

// SpawnWith builds an entity from a template with extra overrides merged on
// top of the resolved component list. Overrides for components the template
// does not declare add those components.
func (w *World) SpawnWith(template string, overrides []ecs.ComponentInfo) (*ecs.GameObject, error) {
	tpl, ok := w.templates.Get(template)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}
	infos, err := tpl.Apply(overrides, nil)
	if err != nil {
		return nil, err
	}
	return w.build(w.handles.Next(), tpl, infos, nil)
}

// Restore rebuilds a persisted entity under its original handle and moves
// the handle counter past it.
func (w *World) Restore(rec data.EntityRecord) (*ecs.GameObject, error) {
	h := ecs.Handle(rec.Handle)
	if h.IsZero() {
		return nil, fmt.Errorf("restore %s: zero handle", rec.Template)
	}
	if _, ok := w.objects[h]; ok {
		return nil, fmt.Errorf("restore %s: %w: %d", rec.Template, ErrHandleInUse, h)
	}
	tpl, ok := w.templates.Get(rec.Template)
	if !ok {
		return nil, fmt.Errorf("restore %d: %w: %q", h, ErrUnknownTemplate, rec.Template)
	}
	if rec.Fingerprint != 0 && rec.Fingerprint != tpl.Fingerprint() {
		w.log.Warn("template changed since entity was saved",
			zap.Uint64("handle", rec.Handle), zap.String("template", rec.Template))
	}
	infos, err := tpl.Apply(rec.Overrides, rec.Removed)
	if err != nil {
		return nil, err
	}
	w.handles.Advance(h)
	return w.build(h, tpl, infos, nil)
}

func (w *World) build(h ecs.Handle, tpl *data.Resolved, infos []ecs.ComponentInfo, at *geom.Vec2) (*ecs.GameObject, error) {
	comps, err := w.registry.Build(infos)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", tpl.Name(), err)
	}
	o, err := ecs.NewGameObject(h, tpl.Name(), comps)
	if err != nil {
		return nil, err
	}
	if at != nil {
		// Not bound yet, so the move is not reported to the tree twice.
		o.PositionComponent().SetPosition(*at)
	}
	o.Bind(w)
	w.objects[h] = o
	w.order = append(w.order, o)
	w.tree.Add(o)
	event.Emit(w.bus, event.EntitySpawned{Handle: uint64(h), Template: tpl.Name()})
	return o, nil
}

// Get returns a live entity.
func (w *World) Get(h ecs.Handle) (*ecs.GameObject, bool) {
	o, ok := w.objects[h]
	return o, ok
}

// Each calls fn for every live entity in spawn order. Entities spawned by fn
// are not visited; entities destroyed by fn are skipped.
func (w *World) Each(fn func(*ecs.GameObject)) {
	for _, o := range w.order {
		if o.Destroyed() {
			continue
		}
		fn(o)
	}
}

// Tick distributes a Tick event to every live entity.
func (w *World) Tick(dt float64) {
	ev := event.Tick{DT: dt}
	w.Each(func(o *ecs.GameObject) { o.DistributeEvent(ev) })
}

// RouteInput hands a raw input event to every component that accepts raw
// input and returns how many took it.
func (w *World) RouteInput(raw any) int {
	n := 0
	w.Each(func(o *ecs.GameObject) {
		for _, c := range o.Components() {
			if r, ok := c.(ecs.InputReceiver); ok && r.ReceiveInput(raw) {
				n++
			}
		}
	})
	return n
}

// Nearby returns every entity within radius of p.
func (w *World) Nearby(p geom.Vec2, radius float64) []*ecs.GameObject {
	return w.tree.QueryRadius(p, radius)
}

// Within returns every entity inside r.
func (w *World) Within(r geom.Rect) []*ecs.GameObject {
	return w.tree.QueryRect(r)
}

// ObjectMoved implements ecs.Host. The tree is updated in RefileMoved.
func (w *World) ObjectMoved(o *ecs.GameObject, from geom.Vec2) {
	h := o.Handle()
	if _, ok := w.moved[h]; ok {
		return
	}
	w.moved[h] = from
	w.movedOrder = append(w.movedOrder, h)
}

// PendingMoves returns the number of entities moved since the last refile.
func (w *World) PendingMoves() int { return len(w.movedOrder) }

// RefileMoved re-files every entity that moved since the last call and
// returns how many changed leaves.
func (w *World) RefileMoved() int {
	n := 0
	for _, h := range w.movedOrder {
		o, ok := w.objects[h]
		if !ok {
			continue
		}
		if w.tree.Move(o) {
			n++
		}
	}
	clear(w.moved)
	w.movedOrder = w.movedOrder[:0]
	return n
}

// MarkForDestruction queues an entity for removal at the end of the tick.
func (w *World) MarkForDestruction(h ecs.Handle) bool {
	if _, ok := w.objects[h]; !ok || w.doomed[h] {
		return false
	}
	w.doomed[h] = true
	w.destroyQueue = append(w.destroyQueue, h)
	return true
}

// FlushDestroyQueue removes every queued entity from the tree, detaches its
// components and forgets it. It returns the number destroyed.
func (w *World) FlushDestroyQueue() int {
	if len(w.destroyQueue) == 0 {
		return 0
	}
	n := 0
	for _, h := range w.destroyQueue {
		o, ok := w.objects[h]
		if !ok {
			continue
		}
		w.tree.Remove(o)
		o.Bind(nil)
		o.Destroy()
		delete(w.objects, h)
		delete(w.moved, h)
		event.Emit(w.bus, event.EntityDestroyed{Handle: uint64(h)})
		n++
	}
	w.destroyQueue = w.destroyQueue[:0]
	clear(w.doomed)

	live := w.order[:0]
	for _, o := range w.order {
		if !o.Destroyed() {
			live = append(live, o)
		}
	}
	clear(w.order[len(live):])
	w.order = live
	return n
}

// Snapshot serializes every live entity relative to its template.
func (w *World) Snapshot() []data.EntityRecord {
	out := make([]data.EntityRecord, 0, len(w.objects))
	w.Each(func(o *ecs.GameObject) {
		tpl, ok := w.templates.Get(o.Template())
		if !ok {
			w.log.Warn("entity template vanished", zap.Uint64("handle", uint64(o.Handle())), zap.String("template", o.Template()))
			return
		}
		out = append(out, data.Serialize(o, tpl))
	})
	return out
}
