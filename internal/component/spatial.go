package component

import (
	"errors"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
)

// Position is the mandatory world position of an entity.
type Position struct {
	ecs.Base
	p   geom.Vec2
	rev uint64
}

func NewPosition(name string) ecs.Component {
	return &Position{Base: ecs.NewBase(name)}
}

func (c *Position) Position() geom.Vec2 { return c.p }
func (c *Position) Revision() uint64 { return c.rev }

// SetPosition updates the position, tells the owner's world so the spatial
// index can re-file it, and raises Moved on the owner.
func (c *Position) SetPosition(p geom.Vec2) {
	if p.Equal(c.p) {
		return
	}
	from := c.p
	c.p = p
	c.rev++
	if o := c.Owner(); o != nil {
		o.NotifyMoved(from)
		o.DistributeEvent(event.Moved{From: from, To: p})
	}
}

// CanonicalFields splits a "x,y" shorthand into x and y. Explicit x or y
// keys in the same entry win over the shorthand.
func (c *Position) CanonicalFields(f ecs.Fields) ecs.Fields {
	v, ok := f[ecs.PrimaryField]
	if !ok {
		return f
	}
	p, err := v.Vec2(false)
	if err != nil {
		return f
	}
	out := f.Clone()
	delete(out, ecs.PrimaryField)
	if _, ok := out["x"]; !ok {
		out["x"] = ecs.Number(p.X)
	}
	if _, ok := out["y"]; !ok {
		out["y"] = ecs.Number(p.Y)
	}
	return out
}

func (c *Position) OverrideFields(f ecs.Fields) error {
	f = c.CanonicalFields(f)
	for _, k := range f.Keys() {
		switch k {
		case ecs.PrimaryField:
			p, err := f[k].Vec2(false)
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.p = p
		case "x", "y":
			v, err := f[k].Float()
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			if k == "x" {
				c.p.X = v
			} else {
				c.p.Y = v
			}
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *Position) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	tmpl = c.CanonicalFields(tmpl)
	base := geom.V(tmplFloat(tmpl, "x", 0), tmplFloat(tmpl, "y", 0))
	if c.p.Equal(base) {
		return nil, false
	}
	return ecs.Fields{ecs.PrimaryField: ecs.VecValue(c.p)}, true
}

// Rotation is an angle in degrees, counter-clockwise.
type Rotation struct {
	ecs.Base
	deg float64
	rev uint64
}

func NewRotation(name string) ecs.Component {
	return &Rotation{Base: ecs.NewBase(name)}
}

func (c *Rotation) Angle() float64 { return c.deg }
func (c *Rotation) Revision() uint64 { return c.rev }

func (c *Rotation) SetAngle(deg float64) {
	if deg == c.deg {
		return
	}
	c.deg = deg
	c.rev++
}

func (c *Rotation) OverrideFields(f ecs.Fields) error {
	for _, k := range f.Keys() {
		switch k {
		case ecs.PrimaryField:
			d, err := f[k].Float()
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.deg = d
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *Rotation) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	if c.deg == tmplFloat(tmpl, ecs.PrimaryField, 0) {
		return nil, false
	}
	return ecs.Fields{ecs.PrimaryField: ecs.Number(c.deg)}, true
}

// Scale is a per-axis scale factor; a single number means uniform scale.
type Scale struct {
	ecs.Base
	s   geom.Vec2
	rev uint64
}

func NewScale(name string) ecs.Component {
	return &Scale{Base: ecs.NewBase(name), s: geom.V(1, 1)}
}

func (c *Scale) Factor() geom.Vec2 { return c.s }
func (c *Scale) Revision() uint64 { return c.rev }

func (c *Scale) SetFactor(s geom.Vec2) {
	if s.Equal(c.s) {
		return
	}
	c.s = s
	c.rev++
}

func (c *Scale) OverrideFields(f ecs.Fields) error {
	for _, k := range f.Keys() {
		switch k {
		case ecs.PrimaryField:
			s, err := f[k].Vec2(true)
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.s = s
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *Scale) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	base := tmplVec(tmpl, ecs.PrimaryField, geom.V(1, 1), true)
	if c.s.Equal(base) {
		return nil, false
	}
	return ecs.Fields{ecs.PrimaryField: ecs.VecValue(c.s)}, true
}

// Transform caches the world matrix derived from the owner's position,
// rotation and scale. It is recomputed on read when any source revision
// changed, so it never depends on the order events reach components.
type Transform struct {
	ecs.Base
	origin geom.Vec2 // local pivot, subtracted before scaling

	cached     geom.Mat3
	src        sources
	valid      bool
	recomputes int
}

func NewTransform(name string) ecs.Component {
	return &Transform{Base: ecs.NewBase(name)}
}

func (c *Transform) OnAttach(o *ecs.GameObject) {
	c.Base.OnAttach(o)
	c.valid = false
}

func (c *Transform) Origin() geom.Vec2 { return c.origin }

// Recomputes counts how often the matrix was rebuilt.
func (c *Transform) Recomputes() int { return c.recomputes }

// World returns the world matrix of the owner.
func (c *Transform) World() geom.Mat3 {
	o := c.Owner()
	if o == nil {
		return geom.Identity()
	}
	src := sourcesOf(o)
	if c.valid && src == c.src {
		return c.cached
	}
	deg := 0.0
	if r := o.Rotation(); r != nil {
		deg = r.Angle()
	}
	s := geom.V(1, 1)
	if sc := o.Scale(); sc != nil {
		s = sc.Factor()
	}
	m := geom.TRS(o.Position(), deg, s)
	if !c.origin.IsZero() {
		m = m.Mul(geom.Mat3{1, 0, -c.origin.X, 0, 1, -c.origin.Y})
	}
	c.cached, c.src, c.valid = m, src, true
	c.recomputes++
	return m
}

// sources identifies the spatial components a cached matrix was built from
// and their revisions at that time.
type sources struct {
	pos, rot, scale ecs.Component
	revs            [3]uint64
}

func sourcesOf(o *ecs.GameObject) sources {
	s := sources{pos: o.PositionComponent(), rot: o.Rotation(), scale: o.Scale()}
	for i, c := range []ecs.Component{s.pos, s.rot, s.scale} {
		if r, ok := c.(ecs.Revisioned); ok {
			s.revs[i] = r.Revision()
		}
	}
	return s
}

func (c *Transform) OverrideFields(f ecs.Fields) error {
	for _, k := range f.Keys() {
		switch k {
		case "origin":
			p, err := f[k].Vec2(false)
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.origin = p
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *Transform) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	if c.origin.Equal(tmplVec(tmpl, "origin", geom.Vec2{}, false)) {
		return nil, false
	}
	return ecs.Fields{"origin": ecs.VecValue(c.origin)}, true
}

var errUnknownField = errors.New("unknown field")

// tmplVec decodes a template override, falling back to def when the template
// is silent or the value does not parse.
func tmplVec(tmpl ecs.Fields, key string, def geom.Vec2, uniform bool) geom.Vec2 {
	v, ok := tmpl[key]
	if !ok {
		return def
	}
	p, err := v.Vec2(uniform)
	if err != nil {
		return def
	}
	return p
}

func tmplFloat(tmpl ecs.Fields, key string, def float64) float64 {
	v, ok := tmpl[key]
	if !ok {
		return def
	}
	f, err := v.Float()
	if err != nil {
		return def
	}
	return f
}
