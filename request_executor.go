// request_executor.go
// --------------------
// This file defines the Engine, which issues one logical call against the server.
//
// Each attempt races the transport against the configured deadline, classifies the
// response, and processes the Backoff, Retry-After and Alert headers into signals.
// Failures with status 503 are retried while the retry budget lasts, waiting until
// the Retry-After deadline. Every other failure is returned immediately.
package kintobridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// MinRetryDelay is the shortest wait between two attempts, used when the
// server sent no Retry-After header or one already in the past.
const MinRetryDelay = 10 * time.Millisecond

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Defaults is the instance layer merged over DefaultRequestConfig.
	Defaults *ConfigOverride

	// Clock defaults to the wall clock.
	Clock Clock

	// Logger defaults to a null logger.
	Logger hclog.Logger
}

// Engine issues requests with deadline enforcement, response classification,
// header-driven signals and bounded retry. An Engine holds no per-call state,
// so concurrent calls are independent.
type Engine struct {
	transport Transport
	events    EventSink
	defaults  *ConfigOverride
	clock     Clock
	logger    hclog.Logger
}

func NewEngine(transport Transport, events EventSink, opts EngineOptions) (*Engine, error) {
	if events == nil {
		return nil, ErrMissingEventSink
	}
	if transport == nil {
		return nil, ErrMissingTransport
	}

	clock := opts.Clock
	if clock == nil {
		clock = wallClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Engine{
		transport: transport,
		events:    events,
		defaults:  opts.Defaults,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Request sends req and returns the classified response. override, when not
// nil, takes precedence over the engine defaults for this call only.
func (e *Engine) Request(ctx context.Context, req *Request, override *ConfigOverride) (*Response, error) {
	config := MergeConfig(DefaultRequestConfig(), e.defaults, override)
	if config.Retry < 0 {
		return nil, &ArgumentError{Argument: "retry", Reason: "must be a non-negative integer, got " + strconv.Itoa(config.Retry)}
	}
	if req == nil || req.Target == "" {
		return nil, &ArgumentError{Argument: "target", Reason: "a request target is required"}
	}

	prepared := req.clone()
	if prepared.Method == "" {
		prepared.Method = http.MethodGet
	}
	prepared.Headers = MergeHeaders(DefaultRequestHeaders(), prepared.Form != nil, req.Headers)
	prepared.Mode = config.Mode

	logger := e.logger.With("call_id", uuid.NewString(), "method", prepared.Method, "target", prepared.Target)
	requestsTotal.Inc()
	defer observeDuration(time.Now())

	policy := &retryAfterBackOff{clock: e.clock}
	schedule := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(config.Retry)), ctx)

	var (
		response *Response
		attempt  int
	)
	operation := func() error {
		attempt++
		attemptsTotal.Inc()
		logger.Debug("sending request", "attempt", attempt)

		resp, retryAt, err := e.attempt(ctx, prepared, config.Timeout, logger)
		policy.retryAt = retryAt
		if err == nil {
			response = resp
			return nil
		}
		if !isTransientOverload(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		retriesTotal.Inc()
		logger.Warn("server overloaded, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotifyWithTimer(operation, schedule, notify, &clockTimer{clock: e.clock}); err != nil {
		logger.Debug("request failed", "attempts", attempt, "error", err)
		return nil, err
	}
	if attempt > 1 {
		logger.Debug("request succeeded after retries", "attempts", attempt)
	}
	return response, nil
}

// attempt performs one network round trip. It returns the Retry-After
// deadline advertised by the response (zero when absent) along with the
// classified result.
func (e *Engine) attempt(ctx context.Context, req *Request, timeout time.Duration, logger hclog.Logger) (*Response, time.Time, error) {
	raw, err := e.timedSend(ctx, req, timeout)
	if err != nil {
		return nil, time.Time{}, err
	}
	observeStatus(raw.StatusCode)

	var (
		body     any
		parseErr error
	)
	if hasBody(raw.Header) {
		if err := json.Unmarshal(raw.Body, &body); err != nil {
			parseErr = &UnparseableResponseError{Status: raw.StatusCode, Body: string(raw.Body), Err: err}
		}
	}

	// Signals fire whatever the outcome of the attempt.
	e.checkForBackoffHeader(raw.Header, logger)
	retryAt := e.checkForRetryAfterHeader(raw.Header, logger)
	e.checkForDeprecationHeader(raw.Header, logger)

	if parseErr != nil {
		return nil, retryAt, parseErr
	}
	if raw.StatusCode >= 400 {
		return nil, retryAt, newServerResponseError(raw, body)
	}
	return &Response{Status: raw.StatusCode, JSON: body, Header: raw.Header}, retryAt, nil
}

type sendResult struct {
	raw *RawResponse
	err error
}

// timedSend races the transport against the deadline. The losing transport
// call is asked to stop through its context, but may still complete remotely.
func (e *Engine) timedSend(ctx context.Context, req *Request, timeout time.Duration) (*RawResponse, error) {
	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan sendResult, 1)
	go func() {
		raw, err := e.transport.Send(sendCtx, req)
		results <- sendResult{raw: raw, err: err}
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = e.clock.After(timeout)
	}

	select {
	case r := <-results:
		if r.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var te *TransportError
			if errors.As(r.err, &te) {
				return nil, r.err
			}
			return nil, &TransportError{Target: req.Target, Err: r.err}
		}
		if r.raw == nil {
			return nil, &TransportError{Target: req.Target, Err: errors.New("transport returned no response")}
		}
		return r.raw, nil
	case <-deadline:
		cancel()
		timeoutsTotal.Inc()
		return nil, &NetworkTimeoutError{Target: req.Target, Options: redactedOptions(req)}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// hasBody reports whether the response declares a non-empty body.
func hasBody(header http.Header) bool {
	length := header.Get("Content-Length")
	if length == "" {
		return false
	}
	n, err := strconv.ParseInt(length, 10, 64)
	return err != nil || n != 0
}

// retryAfterBackOff waits until the Retry-After deadline of the last attempt,
// never less than MinRetryDelay.
type retryAfterBackOff struct {
	clock   Clock
	retryAt time.Time
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	wait := b.retryAt.Sub(b.clock.Now())
	if b.retryAt.IsZero() || wait < MinRetryDelay {
		return MinRetryDelay
	}
	return wait
}

func (b *retryAfterBackOff) Reset() { b.retryAt = time.Time{} }
