package mock

import (
	"sync"
	"time"
)

// Clock reports a settable time. After uses real timers so that deadlines and
// retry waits still elapse.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
