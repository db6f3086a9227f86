package kintobridge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/opengovern/kinto-bridge/internal"
)

// checkForBackoffHeader emits the backoff deadline. A missing or non-positive
// header still emits, with 0, so listeners learn that the backoff is over.
func (e *Engine) checkForBackoffHeader(header http.Header, logger hclog.Logger) {
	var deadline int64
	if seconds, ok := internal.ParseSeconds(header.Get("Backoff")); ok && seconds > 0 {
		deadline = internal.DeadlineMs(e.clock.Now(), seconds)
		logger.Debug("server requested backoff", "seconds", seconds)
	}
	e.emit(SignalBackoff, deadline, logger)
}

// checkForRetryAfterHeader emits the Retry-After deadline and returns it, or
// returns the zero time when the header is absent or not an integer.
func (e *Engine) checkForRetryAfterHeader(header http.Header, logger hclog.Logger) time.Time {
	seconds, ok := internal.ParseSeconds(header.Get("Retry-After"))
	if !ok {
		return time.Time{}
	}
	deadline := internal.DeadlineMs(e.clock.Now(), seconds)
	e.emit(SignalRetryAfter, deadline, logger)
	return time.UnixMilli(deadline)
}

// checkForDeprecationHeader logs the Alert header and emits it as a
// deprecation signal when it parses.
func (e *Engine) checkForDeprecationHeader(header http.Header, logger hclog.Logger) {
	raw := header.Get("Alert")
	if raw == "" {
		return
	}
	var alert Alert
	if err := json.Unmarshal([]byte(raw), &alert); err != nil {
		logger.Warn("Unable to parse Alert header message", "alert", raw)
		return
	}
	logger.Warn(alert.Message, "url", alert.URL)
	e.emit(SignalDeprecated, alert, logger)
}

// emit delivers a signal. A panicking handler is logged and swallowed: signals
// never change the outcome of a request.
func (e *Engine) emit(name string, payload any, logger hclog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("signal handler panicked", "signal", name, "panic", r)
		}
	}()
	observeSignal(name)
	e.events.Emit(name, payload)
}
