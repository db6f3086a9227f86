package mock

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	kintobridge "github.com/opengovern/kinto-bridge"
)

// Reply is one scripted transport outcome.
type Reply struct {
	Response *kintobridge.RawResponse
	Err      error

	// Block makes Send wait until its context is cancelled.
	Block bool
}

// Transport replays scripted replies in order. Once the script is exhausted
// the last reply is repeated. It records every request it receives.
type Transport struct {
	mu       sync.Mutex
	replies  []Reply
	requests []*kintobridge.Request
}

var _ kintobridge.Transport = (*Transport)(nil)

func NewTransport(replies ...Reply) *Transport {
	return &Transport{replies: replies}
}

func (t *Transport) Send(ctx context.Context, req *kintobridge.Request) (*kintobridge.RawResponse, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	if len(t.replies) == 0 {
		t.mu.Unlock()
		return nil, fmt.Errorf("mock transport: no reply scripted for %s %s", req.Method, req.Target)
	}
	reply := t.replies[0]
	if len(t.replies) > 1 {
		t.replies = t.replies[1:]
	}
	t.mu.Unlock()

	if reply.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return reply.Response, reply.Err
}

// Requests returns the requests received so far.
func (t *Transport) Requests() []*kintobridge.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*kintobridge.Request, len(t.requests))
	copy(out, t.requests)
	return out
}

// Calls returns how many requests were received.
func (t *Transport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// JSON builds a reply with the given status and body. headers are key/value
// pairs. Content-Length is set from the body.
func JSON(status int, body string, headers ...string) Reply {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Set(headers[i], headers[i+1])
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return Reply{Response: &kintobridge.RawResponse{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Header:     h,
		Body:       []byte(body),
	}}
}

// Empty builds a reply without a body and without Content-Length.
func Empty(status int, headers ...string) Reply {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Set(headers[i], headers[i+1])
	}
	return Reply{Response: &kintobridge.RawResponse{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Header:     h,
	}}
}

// Overloaded is a 503 reply, optionally carrying a Retry-After value.
func Overloaded(retryAfter string) Reply {
	if retryAfter == "" {
		return JSON(http.StatusServiceUnavailable, `{"code":503,"errno":201,"error":"Service Unavailable"}`)
	}
	return JSON(http.StatusServiceUnavailable, `{"code":503,"errno":201,"error":"Service Unavailable"}`, "Retry-After", retryAfter)
}

// Blocked is a reply that never answers.
func Blocked() Reply { return Reply{Block: true} }

// Failed is a reply that fails at the transport level.
func Failed(err error) Reply { return Reply{Err: err} }
