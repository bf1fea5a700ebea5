package system

import (
	"time"

	"github.com/worldsim/worldsim/internal/component"
	"github.com/worldsim/worldsim/internal/core/ecs"
	coresys "github.com/worldsim/worldsim/internal/core/system"
	"github.com/worldsim/worldsim/internal/world"
)

// Drawable is one sprite ready to draw.
type Drawable struct {
	Handle ecs.Handle
	component.RenderData
}

// Frame is everything drawn in one tick, in spawn order.
type Frame struct {
	Seq       uint64
	Drawables []Drawable
}

// Renderer consumes frames. It must not keep Drawables past the call.
type Renderer interface {
	Draw(f Frame)
}

// RenderSystem collects the render data of every sprite and hands the frame
// to the renderer. Phase 4 (Output).
type RenderSystem struct {
	world    *world.World
	renderer Renderer
	seq      uint64
	buf      []Drawable
}

func NewRenderSystem(w *world.World, r Renderer) *RenderSystem {
	return &RenderSystem{world: w, renderer: r}
}

func (s *RenderSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *RenderSystem) Update(_ time.Duration) {
	s.buf = s.buf[:0]
	s.world.Each(func(o *ecs.GameObject) {
		for _, c := range o.Components() {
			if sp, ok := c.(*component.Sprite); ok {
				s.buf = append(s.buf, Drawable{Handle: o.Handle(), RenderData: sp.RenderData()})
			}
		}
	})
	s.seq++
	s.renderer.Draw(Frame{Seq: s.seq, Drawables: s.buf})
}
