package mock

import (
	"sync"

	kintobridge "github.com/opengovern/kinto-bridge"
)

// Signal is one recorded emission.
type Signal struct {
	Name    string
	Payload any
}

// Recorder is an EventSink that records every emission before delivering it
// to registered handlers.
type Recorder struct {
	*kintobridge.Emitter

	mu      sync.Mutex
	signals []Signal
}

var _ kintobridge.EventSink = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{Emitter: kintobridge.NewEmitter()}
}

func (r *Recorder) Emit(name string, payload any) {
	r.mu.Lock()
	r.signals = append(r.signals, Signal{Name: name, Payload: payload})
	r.mu.Unlock()
	r.Emitter.Emit(name, payload)
}

// Signals returns every recorded emission, optionally filtered by name.
func (r *Recorder) Signals(names ...string) []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Signal
	for _, s := range r.signals {
		if len(names) == 0 || contains(names, s.Name) {
			out = append(out, s)
		}
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
