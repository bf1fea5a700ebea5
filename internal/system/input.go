package system

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	coresys "github.com/worldsim/worldsim/internal/core/system"
	"github.com/worldsim/worldsim/internal/world"
)

// InputQueue carries raw input events from the window or feeder goroutine
// to the simulation goroutine. Push never blocks; events beyond the buffer
// are dropped and counted.
type InputQueue struct {
	ch      chan any
	dropped atomic.Uint64
}

func NewInputQueue(size int) *InputQueue {
	if size < 1 {
		size = 1
	}
	return &InputQueue{ch: make(chan any, size)}
}

// Push enqueues a raw input event (event.RawKey, event.RawMouseButton or
// event.RawScroll). Safe for concurrent use.
func (q *InputQueue) Push(raw any) bool {
	select {
	case q.ch <- raw:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Len returns the number of queued events.
func (q *InputQueue) Len() int { return len(q.ch) }

// Dropped returns how many events were lost to a full queue.
func (q *InputQueue) Dropped() uint64 { return q.dropped.Load() }

// InputSystem drains the input queue and routes each event to the input
// components of every live entity. Phase 0 (Input).
type InputSystem struct {
	world      *world.World
	queue      *InputQueue
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(w *world.World, queue *InputQueue, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{world: w, queue: queue, maxPerTick: maxPerTick, log: log}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	for i := 0; s.maxPerTick <= 0 || i < s.maxPerTick; i++ {
		select {
		case raw := <-s.queue.ch:
			if n := s.world.RouteInput(raw); n == 0 {
				s.log.Debug("input not taken", zap.Any("event", raw))
			}
		default:
			return
		}
	}
}
