package kintobridge

import (
	"context"
	"time"
)

// Transport defines the interface all transports must implement. A transport
// sends exactly one request and reports what came back; classification,
// signals and retries belong to the Engine.
//
// Send must stop when ctx is cancelled. The engine cancels ctx when its
// deadline timer wins the race, but the remote side may still observe the
// request.
type Transport interface {
	Send(ctx context.Context, req *Request) (*RawResponse, error)
}

// Handler receives the payload of an emitted signal.
type Handler func(payload any)

// EventSink accepts named signals from the engine. Implementations must allow
// concurrent Emit calls from independent requests without external locking.
type EventSink interface {
	On(name string, handler Handler)
	Emit(name string, payload any)
}

// HistoryReader lists change events from a bucket's history log.
type HistoryReader interface {
	List(ctx context.Context, query HistoryQuery) (*HistoryPage, error)
}

// Clock abstracts the wall clock so deadline computations can be pinned in
// tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
