package ecs

import (
	"fmt"

	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
)

// Host is the world an object lives in. Position components report moves
// through it so the spatial index can re-file the object.
type Host interface {
	ObjectMoved(o *GameObject, from geom.Vec2)
}

// GameObject is a handle plus an ordered, name-unique set of components.
// Single-goroutine access only (simulation loop).
type GameObject struct {
	handle     Handle
	template   string
	components []Component
	byName     map[string]Component

	// fast paths; rotation and scale may be nil
	pos   Positioner
	rot   Rotator
	scale Scaler

	host      Host
	destroyed bool
}

// NewGameObject binds comps to a new object in the given order. The list must
// contain a position component and no duplicate names; on failure every
// component attached so far is detached again and nothing is returned.
func NewGameObject(h Handle, template string, comps []Component) (*GameObject, error) {
	o := &GameObject{
		handle:     h,
		template:   template,
		components: make([]Component, 0, len(comps)),
		byName:     make(map[string]Component, len(comps)),
	}
	for _, c := range comps {
		if !o.AddComponent(c) {
			o.Destroy()
			return nil, fmt.Errorf("%w: %q on entity %d", ErrDuplicateComponent, c.Name(), h)
		}
	}
	if o.pos == nil {
		o.Destroy()
		return nil, fmt.Errorf("%w: entity %d (%s)", ErrMissingPosition, h, template)
	}
	return o, nil
}

func (o *GameObject) Handle() Handle { return o.handle }
func (o *GameObject) Template() string { return o.template }
func (o *GameObject) Destroyed() bool { return o.destroyed }
func (o *GameObject) Len() int { return len(o.components) }
func (o *GameObject) PositionComponent() Positioner { return o.pos }

// Rotation returns the rotation component, or nil.
func (o *GameObject) Rotation() Rotator { return o.rot }

// Scale returns the scale component, or nil.
func (o *GameObject) Scale() Scaler { return o.scale }

// Position returns the current position, or the origin when the position
// component has been removed.
func (o *GameObject) Position() geom.Vec2 {
	if o.pos == nil {
		return geom.Vec2{}
	}
	return o.pos.Position()
}

// Bind attaches the object to a world.
func (o *GameObject) Bind(h Host) { o.host = h }

func (o *GameObject) Host() Host { return o.host }

// NotifyMoved is called by the position component after its value changed.
func (o *GameObject) NotifyMoved(from geom.Vec2) {
	if o.host != nil {
		o.host.ObjectMoved(o, from)
	}
}

// Components returns the attached components in insertion order.
func (o *GameObject) Components() []Component {
	return append([]Component(nil), o.components...)
}

// AddComponent attaches c. It returns false and changes nothing when a
// component with the same name is already attached.
func (o *GameObject) AddComponent(c Component) bool {
	name := c.Name()
	if _, ok := o.byName[name]; ok {
		return false
	}
	o.components = append(o.components, c)
	o.byName[name] = c
	if p, ok := c.(Positioner); ok && o.pos == nil {
		o.pos = p
	}
	if r, ok := c.(Rotator); ok && o.rot == nil {
		o.rot = r
	}
	if s, ok := c.(Scaler); ok && o.scale == nil {
		o.scale = s
	}
	c.OnAttach(o)
	return true
}

// GetComponent returns the component with the given name.
func (o *GameObject) GetComponent(name string) (Component, bool) {
	c, ok := o.byName[name]
	return c, ok
}

// HasComponent reports whether a component with that name is attached.
func (o *GameObject) HasComponent(name string) bool {
	_, ok := o.byName[name]
	return ok
}

// RemoveComponent detaches the named component.
func (o *GameObject) RemoveComponent(name string) bool {
	c, ok := o.byName[name]
	if !ok {
		return false
	}
	o.detach(c)
	return true
}

// RemoveInstance detaches c if it is the instance attached under its name.
func (o *GameObject) RemoveInstance(c Component) bool {
	cur, ok := o.byName[c.Name()]
	if !ok || cur != c {
		return false
	}
	o.detach(c)
	return true
}

func (o *GameObject) detach(c Component) {
	delete(o.byName, c.Name())
	// Copy instead of shifting in place so a distribution pass iterating the
	// old slice is not disturbed.
	next := make([]Component, 0, len(o.components))
	for _, x := range o.components {
		if x != c {
			next = append(next, x)
		}
	}
	o.components = next
	if Component(o.pos) == c {
		o.pos = nil
	}
	if Component(o.rot) == c {
		o.rot = nil
	}
	if Component(o.scale) == c {
		o.scale = nil
	}
	c.OnDetach(o)
}

// DistributeEvent hands ev to every attached component in insertion order.
// Nothing consumes the event; the component that raised it receives it too.
// A component detached by an earlier handler in the same pass is skipped, one
// attached during the pass first sees the next event. Handlers that call
// DistributeEvent themselves recurse.
func (o *GameObject) DistributeEvent(ev event.Event) {
	snapshot := o.components
	for _, c := range snapshot {
		if o.byName[c.Name()] != c {
			continue
		}
		c.Handle(ev)
	}
}

// Destroy detaches every component, last attached first.
func (o *GameObject) Destroy() {
	for i := len(o.components) - 1; i >= 0; i-- {
		o.detach(o.components[i])
	}
	o.destroyed = true
}
