package component

import (
	"fmt"
	"strings"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
)

const defaultWASDSpeed = 100

var defaultWASDKeys = [4]string{"w", "a", "s", "d"}

// WASDMovement moves its owner while direction keys are held. Keys arrive as
// event.Key from a keyboard input component; movement happens on Tick.
type WASDMovement struct {
	ecs.Base
	speed float64   // units per second
	keys  [4]string // up, left, down, right
	held  map[string]bool
}

func NewWASDMovement(name string) ecs.Component {
	return &WASDMovement{
		Base:  ecs.NewBase(name),
		speed: defaultWASDSpeed,
		keys:  defaultWASDKeys,
		held:  make(map[string]bool, 4),
	}
}

func (c *WASDMovement) Speed() float64 { return c.speed }

// Direction returns the unit direction of the held keys.
func (c *WASDMovement) Direction() geom.Vec2 {
	var d geom.Vec2
	if c.held[c.keys[0]] {
		d.Y++
	}
	if c.held[c.keys[1]] {
		d.X--
	}
	if c.held[c.keys[2]] {
		d.Y--
	}
	if c.held[c.keys[3]] {
		d.X++
	}
	return d.Normalize()
}

func (c *WASDMovement) Handle(ev event.Event) {
	switch e := ev.(type) {
	case event.Key:
		c.held[e.Key] = e.Pressed
	case event.Tick:
		o := c.Owner()
		if o == nil || o.PositionComponent() == nil {
			return
		}
		d := c.Direction()
		if d.IsZero() {
			return
		}
		o.PositionComponent().SetPosition(o.Position().Add(d.Mul(c.speed * e.DT)))
	}
}

func (c *WASDMovement) OnDetach(o *ecs.GameObject) {
	clear(c.held)
	c.Base.OnDetach(o)
}

var wasdAliases = map[string]string{ecs.PrimaryField: "speed"}

func (c *WASDMovement) CanonicalFields(f ecs.Fields) ecs.Fields {
	return ecs.RenameFields(f, wasdAliases)
}

func (c *WASDMovement) OverrideFields(f ecs.Fields) error {
	f = c.CanonicalFields(f)
	for _, k := range f.Keys() {
		switch k {
		case "speed":
			v, err := f[k].Float()
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.speed = v
		case "keys":
			keys, err := parseWASDKeys(f[k].String())
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.keys = keys
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *WASDMovement) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	tmpl = c.CanonicalFields(tmpl)
	out := ecs.Fields{}
	if c.speed != tmplFloat(tmpl, "speed", defaultWASDSpeed) {
		out["speed"] = ecs.Number(c.speed)
	}
	baseKeys := defaultWASDKeys
	if v, ok := tmpl["keys"]; ok {
		if k, err := parseWASDKeys(v.String()); err == nil {
			baseKeys = k
		}
	}
	if c.keys != baseKeys {
		out["keys"] = ecs.String(strings.Join(c.keys[:], ","))
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func parseWASDKeys(s string) ([4]string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]string{}, fmt.Errorf("expected four keys \"up,left,down,right\", got %q", s)
	}
	var out [4]string
	for i, p := range parts {
		out[i] = strings.ToLower(strings.TrimSpace(p))
		if out[i] == "" {
			return [4]string{}, fmt.Errorf("empty key in %q", s)
		}
	}
	return out, nil
}

// Velocity drifts its owner by a constant amount per second.
type Velocity struct {
	ecs.Base
	v geom.Vec2
}

func NewVelocity(name string) ecs.Component {
	return &Velocity{Base: ecs.NewBase(name)}
}

func (c *Velocity) Value() geom.Vec2 { return c.v }

func (c *Velocity) Handle(ev event.Event) {
	t, ok := ev.(event.Tick)
	if !ok || c.v.IsZero() {
		return
	}
	if o := c.Owner(); o != nil && o.PositionComponent() != nil {
		o.PositionComponent().SetPosition(o.Position().Add(c.v.Mul(t.DT)))
	}
}

func (c *Velocity) OverrideFields(f ecs.Fields) error {
	for _, k := range f.Keys() {
		switch k {
		case ecs.PrimaryField:
			v, err := f[k].Vec2(false)
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.v = v
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *Velocity) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	if c.v.Equal(tmplVec(tmpl, ecs.PrimaryField, geom.Vec2{}, false)) {
		return nil, false
	}
	return ecs.Fields{ecs.PrimaryField: ecs.VecValue(c.v)}, true
}

// Spin turns its owner at a constant rate in degrees per second. Owners
// without a rotation component are left alone.
type Spin struct {
	ecs.Base
	rate float64
}

func NewSpin(name string) ecs.Component {
	return &Spin{Base: ecs.NewBase(name)}
}

func (c *Spin) Rate() float64 { return c.rate }

func (c *Spin) Handle(ev event.Event) {
	t, ok := ev.(event.Tick)
	if !ok || c.rate == 0 {
		return
	}
	o := c.Owner()
	if o == nil || o.Rotation() == nil {
		return
	}
	r := o.Rotation()
	r.SetAngle(normalizeDegrees(r.Angle() + c.rate*t.DT))
}

var spinAliases = map[string]string{ecs.PrimaryField: "rate"}

func (c *Spin) CanonicalFields(f ecs.Fields) ecs.Fields {
	return ecs.RenameFields(f, spinAliases)
}

func (c *Spin) OverrideFields(f ecs.Fields) error {
	f = c.CanonicalFields(f)
	for _, k := range f.Keys() {
		switch k {
		case "rate":
			v, err := f[k].Float()
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.rate = v
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *Spin) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	if c.rate == tmplFloat(c.CanonicalFields(tmpl), "rate", 0) {
		return nil, false
	}
	return ecs.Fields{"rate": ecs.Number(c.rate)}, true
}

func normalizeDegrees(d float64) float64 {
	for d >= 360 {
		d -= 360
	}
	for d < 0 {
		d += 360
	}
	return d
}
