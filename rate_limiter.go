// rate_limiter.go
// ----------------
// This file defines the BackoffTracker, which remembers the backoff window the
// server asked for. It listens to the "backoff" signal emitted by the Engine and
// answers how long a client should hold off before sending more requests.
//
// Responsibilities:
// - Storing the latest backoff release time (absolute Unix ms).
// - Calculating the remaining delay relative to the injected clock.
// - Clearing itself when the server sends a response without a Backoff header.
package kintobridge

import (
	"sync"
	"time"

	"github.com/opengovern/kinto-bridge/internal"
)

type BackoffTracker struct {
	mu        sync.Mutex
	releaseAt int64
	clock     Clock
}

// NewBackoffTracker registers a tracker on events.
func NewBackoffTracker(events EventSink, clock Clock) *BackoffTracker {
	if clock == nil {
		clock = wallClock{}
	}
	t := &BackoffTracker{clock: clock}
	events.On(SignalBackoff, t.update)
	return t
}

func (t *BackoffTracker) update(payload any) {
	deadline, ok := payload.(int64)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseAt = deadline
}

// Backoff returns how long to wait before the server-requested backoff
// window closes, or 0 if none is in effect.
func (t *BackoffTracker) Backoff() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.releaseAt == 0 || !internal.IsInFuture(t.releaseAt, now) {
		return 0
	}
	return time.Duration(t.releaseAt-now.UnixMilli()) * time.Millisecond
}
