package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/worldsim/worldsim/internal/core/system"
	"github.com/worldsim/worldsim/internal/world"
)

// SpatialSystem re-files the entities that moved this tick into the leaves
// that now contain them. Phase 3 (PostUpdate).
type SpatialSystem struct {
	world *world.World
	log   *zap.Logger
}

func NewSpatialSystem(w *world.World, log *zap.Logger) *SpatialSystem {
	return &SpatialSystem{world: w, log: log}
}

func (s *SpatialSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *SpatialSystem) Update(_ time.Duration) {
	if s.world.PendingMoves() == 0 {
		return
	}
	if n := s.world.RefileMoved(); n > 0 {
		s.log.Debug("entities re-filed", zap.Int("count", n))
	}
}
