package system

import (
	"strconv"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: route raw input to input components
	PhasePreUpdate               // 1: dispatch last tick's bus events
	PhaseUpdate                  // 2: distribute Tick to every entity
	PhasePostUpdate              // 3: re-file moved entities
	PhaseOutput                  // 4: collect render frames
	PhasePersist                 // 5: journal flush + snapshot save
	PhaseCleanup                 // 6: destroy queued entities
)

var phaseNames = [...]string{"input", "pre_update", "update", "post_update", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// System is the interface every world system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
