package kintobridge

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Signal names emitted by the Engine.
const (
	// SignalBackoff carries the absolute Unix-ms deadline of a server-requested
	// backoff, or 0 when no backoff is in effect.
	SignalBackoff = "backoff"

	// SignalRetryAfter carries the absolute Unix-ms deadline after which a
	// failed request may be retried.
	SignalRetryAfter = "retry-after"

	// SignalDeprecated carries the parsed Alert of a deprecation notice.
	SignalDeprecated = "deprecated"
)

// Alert is the JSON payload of the Alert response header.
type Alert struct {
	Code    string `json:"code"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Emitter is the default EventSink. Handlers are called synchronously, in
// registration order, once per Emit. Nothing is buffered: a signal emitted
// before a handler is registered is not replayed to it.
type Emitter struct {
	handlers *xsync.MapOf[string, []Handler]
}

var _ EventSink = (*Emitter)(nil)

func NewEmitter() *Emitter {
	return &Emitter{
		handlers: xsync.NewMapOf[string, []Handler](),
	}
}

// On registers handler for the named signal.
func (e *Emitter) On(name string, handler Handler) {
	if handler == nil {
		return
	}
	// Copy on write so that Emit can iterate a loaded slice without locking.
	e.handlers.Compute(name, func(old []Handler, _ bool) ([]Handler, bool) {
		next := make([]Handler, len(old), len(old)+1)
		copy(next, old)
		return append(next, handler), false
	})
}

// Emit delivers payload to every handler registered for name. A panicking
// handler does not stop delivery to the others; once all have run, the first
// panic is raised again so the caller can report it.
func (e *Emitter) Emit(name string, payload any) {
	handlers, ok := e.handlers.Load(name)
	if !ok {
		return
	}
	var first any
	for _, h := range handlers {
		if r := deliver(h, payload); r != nil && first == nil {
			first = r
		}
	}
	if first != nil {
		panic(first)
	}
}

func deliver(h Handler, payload any) (recovered any) {
	defer func() { recovered = recover() }()
	h(payload)
	return nil
}
