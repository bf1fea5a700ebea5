package ecs

import (
	"fmt"
	"sort"

	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
)

// PrimaryField is the field a scalar template shorthand (`scale: "2,2"`)
// is stored under.
const PrimaryField = "value"

// Fields maps override field names to their raw values.
type Fields map[string]Value

// Clone returns a shallow copy; Values are immutable.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both maps hold the same keys and values.
func (f Fields) Equal(o Fields) bool {
	if len(f) != len(o) {
		return false
	}
	for k, v := range f {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Component is a unit of state or behaviour attached to a GameObject.
// At most one component with a given name exists per entity.
type Component interface {
	Name() string
	Handle(ev event.Event)
	OnAttach(owner *GameObject)
	OnDetach(owner *GameObject)
	// OverrideFields is applied once, right after construction.
	OverrideFields(fields Fields) error
	// SerializeOverrides returns the fields whose current state differs from
	// what tmpl (the template's overrides for this component, possibly nil)
	// would already produce. ok is false when nothing needs to be written.
	SerializeOverrides(tmpl Fields) (out Fields, ok bool)
}

// Canonicalizer is implemented by components that accept more than one key
// for the same field. CanonicalFields rewrites f so every field appears under
// one key only. It must not depend on the receiver's state and must leave
// values it cannot interpret under their original key.
type Canonicalizer interface {
	CanonicalFields(f Fields) Fields
}

// RenameFields moves alias keys onto their canonical key. A canonical key
// present in f wins over its aliases; among aliases the first in sorted
// order wins.
func RenameFields(f Fields, aliases map[string]string) Fields {
	if len(f) == 0 {
		return f
	}
	out := make(Fields, len(f))
	for _, k := range f.Keys() {
		canon, ok := aliases[k]
		if !ok {
			out[k] = f[k]
			continue
		}
		if _, set := f[canon]; set {
			continue
		}
		if _, set := out[canon]; set {
			continue
		}
		out[canon] = f[k]
	}
	return out
}

// Positioner is the mandatory position capability every entity carries.
type Positioner interface {
	Component
	Position() geom.Vec2
	SetPosition(p geom.Vec2)
}

// Rotator exposes an angle in degrees.
type Rotator interface {
	Component
	Angle() float64
	SetAngle(deg float64)
}

// Scaler exposes a per-axis scale factor.
type Scaler interface {
	Component
	Factor() geom.Vec2
	SetFactor(s geom.Vec2)
}

// Revisioned is implemented by components whose state other components derive
// from. The revision increases on every change.
type Revisioned interface {
	Revision() uint64
}

// InputReceiver is implemented by components that take raw input from the
// window layer. It reports whether the raw event was of interest.
type InputReceiver interface {
	ReceiveInput(raw any) bool
}

// Base carries the name and owner every component needs. Concrete components
// embed it and override the hooks they care about.
type Base struct {
	name  string
	owner *GameObject
}

func NewBase(name string) Base { return Base{name: name} }

func (b *Base) Name() string { return b.name }
func (b *Base) Owner() *GameObject { return b.owner }
func (b *Base) Handle(event.Event) {}
func (b *Base) OnAttach(o *GameObject) { b.owner = o }
func (b *Base) OnDetach(*GameObject) { b.owner = nil }

// OverrideFields rejects every field; components with fields override it.
func (b *Base) OverrideFields(fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	return FieldErr(b.name, fields.Keys()[0], fmt.Errorf("unknown field"))
}

func (b *Base) SerializeOverrides(Fields) (Fields, bool) { return nil, false }

// ComponentInfo is one component declaration inside a template.
type ComponentInfo struct {
	Name   string `json:"name" yaml:"name"`
	Fields Fields `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Merge overlays child onto c: parent fields first, then every child field
// replaces the parent value with the same key.
func (c ComponentInfo) Merge(child ComponentInfo) (ComponentInfo, error) {
	if c.Name != child.Name {
		return ComponentInfo{}, fmt.Errorf("%w: %q vs %q", ErrTemplateMerge, c.Name, child.Name)
	}
	out := ComponentInfo{Name: c.Name, Fields: make(Fields, len(c.Fields)+len(child.Fields))}
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	for k, v := range child.Fields {
		out.Fields[k] = v
	}
	return out, nil
}

func (c ComponentInfo) Clone() ComponentInfo {
	return ComponentInfo{Name: c.Name, Fields: c.Fields.Clone()}
}
