package system

import (
	"time"

	coresys "github.com/worldsim/worldsim/internal/core/system"
	"github.com/worldsim/worldsim/internal/world"
)

// TickSystem distributes a Tick event to every live entity. Phase 2 (Update).
type TickSystem struct {
	world *world.World
	ticks uint64
}

func NewTickSystem(w *world.World) *TickSystem {
	return &TickSystem{world: w}
}

func (s *TickSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *TickSystem) Update(dt time.Duration) {
	s.ticks++
	s.world.Tick(dt.Seconds())
}

// Ticks returns how many ticks have run.
func (s *TickSystem) Ticks() uint64 { return s.ticks }
