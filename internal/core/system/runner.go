package system

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems of the same
// phase run in registration order.
type Runner struct {
	systems []System
	sorted  bool

	log    *zap.Logger
	budget time.Duration // 0 disables overrun tracking

	ticks    uint64
	overruns uint64
	slowest  time.Duration
}

// NewRunner creates a runner. A tick that takes longer than budget is
// logged and counted as an overrun.
func NewRunner(log *zap.Logger, budget time.Duration) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		systems: make([]System, 0, 16),
		log:     log,
		budget:  budget,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Len returns the number of registered systems.
func (r *Runner) Len() int { return len(r.systems) }

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	r.ticks++
	if r.budget <= 0 {
		for _, s := range r.systems {
			s.Update(dt)
		}
		return
	}

	start := time.Now()
	var (
		worst     System
		worstTook time.Duration
	)
	for _, s := range r.systems {
		t0 := time.Now()
		s.Update(dt)
		if took := time.Since(t0); took > worstTook {
			worst, worstTook = s, took
		}
	}
	total := time.Since(start)
	if total > r.slowest {
		r.slowest = total
	}
	if total > r.budget {
		r.overruns++
		fields := []zap.Field{
			zap.Uint64("tick", r.ticks),
			zap.Duration("took", total),
			zap.Duration("budget", r.budget),
		}
		// worst stays nil with no systems or when every update read as 0ns.
		if worst != nil {
			fields = append(fields,
				zap.String("slowest_system", fmt.Sprintf("%T", worst)),
				zap.Stringer("phase", worst.Phase()),
				zap.Duration("system_took", worstTook))
		}
		r.log.Warn("tick over budget", fields...)
	}
}

// TickPhase runs only the systems of one phase, in registration order. It is
// neither counted as a tick nor timed against the budget.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// Stats reports how many ticks ran, how many went over budget and the
// slowest one seen.
func (r *Runner) Stats() (ticks, overruns uint64, slowest time.Duration) {
	return r.ticks, r.overruns, r.slowest
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
