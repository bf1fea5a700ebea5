package event

import "github.com/worldsim/worldsim/internal/geom"

// Event is anything that can be distributed to the components of an entity.
type Event interface {
	EventName() string
}

// Tick is raised once per simulation update for every live entity.
type Tick struct {
	DT float64 // seconds since the previous tick
}

// Moved is raised by a position component after its value changed.
type Moved struct {
	From, To geom.Vec2
}

// Key is a keyboard event re-raised by an input component on its owner.
type Key struct {
	Origin  string // name of the component that received it
	Key     string
	Pressed bool
}

// MouseButton is a mouse-button event re-raised by an input component.
type MouseButton struct {
	Origin  string
	Button  int
	Pressed bool
	At      geom.Vec2
}

// Scroll is a scroll-wheel event re-raised by an input component.
type Scroll struct {
	Origin string
	DX, DY float64
}

func (Tick) EventName() string { return "tick" }
func (Moved) EventName() string { return "moved" }
func (Key) EventName() string { return "key" }
func (MouseButton) EventName() string { return "mouse_button" }
func (Scroll) EventName() string { return "scroll" }

// Raw input as delivered by the window layer, before any component tags it.

type RawKey struct {
	Key     string
	Pressed bool
}

type RawMouseButton struct {
	Button  int
	Pressed bool
	At      geom.Vec2
}

type RawScroll struct {
	DX, DY float64
}

// World-level lifecycle notifications, published on the Bus and readable the
// tick after they were emitted.

type EntitySpawned struct {
	Handle   uint64
	Template string
}

type EntityDestroyed struct {
	Handle uint64
}
