package ecs

// Handle identifies a GameObject for the lifetime of one run. Handles are
// assigned in increasing order and never reused; zero is never assigned.
type Handle uint64

func (h Handle) IsZero() bool { return h == 0 }

// HandleCounter hands out handles. It is owned by a world context rather than
// being process-global; callers that need uniqueness across restarts persist
// Peek() and restore it with Advance().
type HandleCounter struct {
	next Handle
}

func NewHandleCounter() *HandleCounter {
	return &HandleCounter{next: 1}
}

// Next returns a fresh handle.
func (c *HandleCounter) Next() Handle {
	h := c.next
	c.next++
	return h
}

// Peek returns the handle the next call to Next will return.
func (c *HandleCounter) Peek() Handle {
	return c.next
}

// Advance moves the counter forward so that h is never handed out again.
// It never moves the counter backwards.
func (c *HandleCounter) Advance(h Handle) {
	if h >= c.next {
		c.next = h + 1
	}
}
