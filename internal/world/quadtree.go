package world

import (
	"math"

	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/geom"
)

// ContentLimit is the number of objects a leaf holds before it splits.
const ContentLimit = 1024

// maxDepth stops subdivision of degenerate (stacked) point sets.
const maxDepth = 32

// Child slots. Y grows upwards, so "top" is the half with y >= mid.Y.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Quad is one node of the WorldTree: a leaf holding objects, or an internal
// node with exactly four children that partition its rectangle.
type Quad struct {
	min, max, mid geom.Vec2
	// closed max edges belong to the node; only edges on the root's outer
	// boundary are closed, every other max edge belongs to the neighbour.
	closedX, closedY bool
	depth            int

	children *[4]*Quad
	contents []*ecs.GameObject
}

func newQuad(min, max geom.Vec2, closedX, closedY bool, depth int) *Quad {
	return &Quad{
		min:     min,
		max:     max,
		mid:     min.Mid(max),
		closedX: closedX,
		closedY: closedY,
		depth:   depth,
	}
}

func (q *Quad) Min() geom.Vec2 { return q.min }
func (q *Quad) Max() geom.Vec2 { return q.max }
func (q *Quad) Mid() geom.Vec2 { return q.mid }
func (q *Quad) Depth() int { return q.depth }
func (q *Quad) IsLeaf() bool { return q.children == nil }

func (q *Quad) Rect() geom.Rect { return geom.Rect{Min: q.min, Max: q.max} }

// reach is the part of the plane q answers for. Out-of-bounds objects are
// filed in the nearest edge leaf, so sides on the root boundary are open.
func (q *Quad) reach(root geom.Rect) geom.Rect {
	r := q.Rect()
	if r.Min.X <= root.Min.X {
		r.Min.X = math.Inf(-1)
	}
	if r.Min.Y <= root.Min.Y {
		r.Min.Y = math.Inf(-1)
	}
	if r.Max.X >= root.Max.X {
		r.Max.X = math.Inf(1)
	}
	if r.Max.Y >= root.Max.Y {
		r.Max.Y = math.Inf(1)
	}
	return r
}

// Children returns the four children in TopLeft, TopRight, BottomRight,
// BottomLeft order, or nil for a leaf.
func (q *Quad) Children() []*Quad {
	if q.children == nil {
		return nil
	}
	return q.children[:]
}

// Contents returns the objects filed in a leaf.
func (q *Quad) Contents() []*ecs.GameObject {
	return q.contents
}

// Contains reports whether p lies in this node's share of the plane. Min edges
// are inclusive; max edges only on the outer boundary of the tree.
func (q *Quad) Contains(p geom.Vec2) bool {
	if p.X < q.min.X || p.Y < q.min.Y {
		return false
	}
	if p.X > q.max.X || (p.X == q.max.X && !q.closedX) {
		return false
	}
	if p.Y > q.max.Y || (p.Y == q.max.Y && !q.closedY) {
		return false
	}
	return true
}

// slot picks the child for p; a point on the midline goes to the upper or
// right side.
func (q *Quad) slot(p geom.Vec2) int {
	right := p.X >= q.mid.X
	top := p.Y >= q.mid.Y
	switch {
	case top && !right:
		return TopLeft
	case top && right:
		return TopRight
	case !top && right:
		return BottomRight
	default:
		return BottomLeft
	}
}

func (q *Quad) childFor(p geom.Vec2) *Quad {
	return q.children[q.slot(p)]
}

func (q *Quad) makeChildren() {
	d := q.depth + 1
	q.children = &[4]*Quad{
		TopLeft:     newQuad(geom.V(q.min.X, q.mid.Y), geom.V(q.mid.X, q.max.Y), false, q.closedY, d),
		TopRight:    newQuad(q.mid, q.max, q.closedX, q.closedY, d),
		BottomRight: newQuad(geom.V(q.mid.X, q.min.Y), geom.V(q.max.X, q.mid.Y), q.closedX, false, d),
		BottomLeft:  newQuad(q.min, q.mid, false, false, d),
	}
}

func (q *Quad) remove(o *ecs.GameObject) bool {
	for i, x := range q.contents {
		if x == o {
			last := len(q.contents) - 1
			q.contents[i] = q.contents[last]
			q.contents[last] = nil
			q.contents = q.contents[:last]
			return true
		}
	}
	return false
}

// WorldTree is a region quad-tree over object positions. It only ever grows:
// leaves split when full and are never merged back, even when emptied.
// Single-goroutine access only (simulation loop).
type WorldTree struct {
	root   *Quad
	limit  int
	where  map[ecs.Handle]*Quad // leaf currently holding each object
	out    map[ecs.Handle]bool  // objects currently outside the bounds
	splits int
	log    *zap.Logger
}

// NewWorldTree creates a tree covering bounds. limit <= 0 uses ContentLimit.
func NewWorldTree(bounds geom.Rect, limit int, log *zap.Logger) *WorldTree {
	if limit <= 0 {
		limit = ContentLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorldTree{
		root:  newQuad(bounds.Min, bounds.Max, true, true, 0),
		limit: limit,
		where: make(map[ecs.Handle]*Quad, 256),
		out:   make(map[ecs.Handle]bool),
		log:   log,
	}
}

func (t *WorldTree) Root() *Quad { return t.root }
func (t *WorldTree) Bounds() geom.Rect { return t.root.Rect() }
func (t *WorldTree) Len() int { return len(t.where) }
func (t *WorldTree) Splits() int { return t.splits }

// GetLeafAt descends from the root to the leaf whose share of the plane holds
// p. Points outside the bounds land in the nearest edge leaf.
func (t *WorldTree) GetLeafAt(p geom.Vec2) *Quad {
	q := t.root
	for !q.IsLeaf() {
		q = q.childFor(p)
	}
	return q
}

// LeafOf returns the leaf an object is filed in.
func (t *WorldTree) LeafOf(h ecs.Handle) (*Quad, bool) {
	q, ok := t.where[h]
	return q, ok
}

// Add files o by its current position. An object outside the bounds is logged
// and filed anyway. Adding an object that is already filed re-files it.
func (t *WorldTree) Add(o *ecs.GameObject) {
	if _, ok := t.where[o.Handle()]; ok {
		t.Move(o)
		return
	}
	p := o.Position()
	t.checkBounds(o, p)
	t.insert(o, p)
}

// checkBounds logs o once each time it leaves the bounds, by Add or by Move.
func (t *WorldTree) checkBounds(o *ecs.GameObject, p geom.Vec2) {
	h := o.Handle()
	if t.root.Contains(p) {
		delete(t.out, h)
		return
	}
	if t.out[h] {
		return
	}
	t.out[h] = true
	t.log.Warn("object outside world bounds",
		zap.Uint64("handle", uint64(h)),
		zap.Float64("x", p.X), zap.Float64("y", p.Y))
}

func (t *WorldTree) insert(o *ecs.GameObject, p geom.Vec2) {
	leaf := t.GetLeafAt(p)
	if len(leaf.contents) >= t.limit && leaf.depth < maxDepth {
		t.split(leaf)
		leaf = leaf.childFor(p)
	}
	leaf.contents = append(leaf.contents, o)
	t.where[o.Handle()] = leaf
}

// split turns a full leaf into an internal node and redistributes its
// objects among the four new children.
func (t *WorldTree) split(q *Quad) {
	q.makeChildren()
	for _, o := range q.contents {
		c := q.childFor(o.Position())
		c.contents = append(c.contents, o)
		t.where[o.Handle()] = c
	}
	q.contents = nil
	t.splits++
	t.log.Debug("quad split",
		zap.Int("depth", q.depth),
		zap.Float64("min_x", q.min.X), zap.Float64("min_y", q.min.Y),
		zap.Float64("max_x", q.max.X), zap.Float64("max_y", q.max.Y))
}

// Remove takes o out of the tree. The emptied leaf stays.
func (t *WorldTree) Remove(o *ecs.GameObject) bool {
	leaf, ok := t.where[o.Handle()]
	if !ok {
		return false
	}
	delete(t.where, o.Handle())
	delete(t.out, o.Handle())
	return leaf.remove(o)
}

// Move re-files o when its position now falls in a different leaf. It
// reports whether the object changed leaves.
func (t *WorldTree) Move(o *ecs.GameObject) bool {
	leaf, ok := t.where[o.Handle()]
	if !ok {
		t.Add(o)
		return true
	}
	p := o.Position()
	t.checkBounds(o, p)
	if leaf.IsLeaf() && leaf.Contains(p) {
		return false
	}
	target := t.GetLeafAt(p)
	if target == leaf {
		return false
	}
	leaf.remove(o)
	delete(t.where, o.Handle())
	t.insert(o, p)
	return true
}

// QueryRect returns every object whose position lies inside r, including
// objects filed outside the bounds.
func (t *WorldTree) QueryRect(r geom.Rect) []*ecs.GameObject {
	var out []*ecs.GameObject
	bounds := t.root.Rect()
	t.visit(t.root, func(q *Quad) bool { return q.reach(bounds).Intersects(r) }, func(o *ecs.GameObject) {
		if r.Contains(o.Position()) {
			out = append(out, o)
		}
	})
	return out
}

// QueryRadius returns every object within radius of c.
func (t *WorldTree) QueryRadius(c geom.Vec2, radius float64) []*ecs.GameObject {
	var out []*ecs.GameObject
	r2 := radius * radius
	bounds := t.root.Rect()
	t.visit(t.root, func(q *Quad) bool { return q.reach(bounds).IntersectsCircle(c, radius) }, func(o *ecs.GameObject) {
		if o.Position().DistSq(c) <= r2 {
			out = append(out, o)
		}
	})
	return out
}

func (t *WorldTree) visit(q *Quad, enter func(*Quad) bool, fn func(*ecs.GameObject)) {
	if !enter(q) {
		return
	}
	if q.IsLeaf() {
		for _, o := range q.contents {
			fn(o)
		}
		return
	}
	for _, c := range q.children {
		t.visit(c, enter, fn)
	}
}

// Stats summarises the shape of the tree.
type Stats struct {
	Objects  int
	Leaves   int
	MaxDepth int
	Splits   int
}

func (t *WorldTree) Stats() Stats {
	s := Stats{Objects: len(t.where), Splits: t.splits}
	var walk func(q *Quad)
	walk = func(q *Quad) {
		if q.depth > s.MaxDepth {
			s.MaxDepth = q.depth
		}
		if q.IsLeaf() {
			s.Leaves++
			return
		}
		for _, c := range q.children {
			walk(c)
		}
	}
	walk(t.root)
	return s
}

// Depth is the depth of the deepest quad; a tree that never split is 0.
func (t *WorldTree) Depth() int { return t.Stats().MaxDepth }

func (t *WorldTree) LeafCount() int { return t.Stats().Leaves }
