// sdk.go
// ------
// The sdk.go file contains the Client, the main entry point of the SDK for users.
//
// Key functionalities include:
// - Initializing the SDK with NewClient()
// - Executing requests against the remote via Client.Execute()
// - Discovering server capabilities and gating operations on them
// - Reading the Total-Records and ETag headers
// - Computing collection snapshots from the history log
//
// The Client relies on an Engine for deadlines, signals and retries and on a
// BackoffTracker to remember server-requested backoff windows.
package kintobridge

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/opengovern/kinto-bridge/internal"
)

// ServerInfo is the document served at the root of the remote.
type ServerInfo struct {
	ProjectName    string         `mapstructure:"project_name" json:"project_name"`
	ProjectVersion string         `mapstructure:"project_version" json:"project_version"`
	HTTPAPIVersion string         `mapstructure:"http_api_version" json:"http_api_version"`
	URL            string         `mapstructure:"url" json:"url"`
	Settings       map[string]any `mapstructure:"settings" json:"settings,omitempty"`
	Capabilities   map[string]any `mapstructure:"capabilities" json:"capabilities"`
}

type Client struct {
	remote  string
	headers http.Header
	engine  *Engine
	events  EventSink
	backoff *BackoffTracker
	logger  hclog.Logger

	mu         sync.Mutex
	serverInfo *ServerInfo
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	events := cfg.Events
	if events == nil {
		events = NewEmitter()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	engine, err := NewEngine(cfg.Transport, events, EngineOptions{
		Defaults: cfg.overrides(),
		Clock:    cfg.Clock,
		Logger:   logger.Named("engine"),
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		remote:  strings.TrimRight(cfg.Remote, "/"),
		headers: cfg.Headers.Clone(),
		engine:  engine,
		events:  events,
		backoff: NewBackoffTracker(events, cfg.Clock),
		logger:  logger,
	}
	logger.Debug("client created", "remote", c.remote)
	return c, nil
}

// Events returns the sink the client's engine emits to.
func (c *Client) Events() EventSink { return c.events }

// Backoff returns the remaining server-requested backoff.
func (c *Client) Backoff() time.Duration { return c.backoff.Backoff() }

// Execute sends req through the engine. Targets starting with "/" are
// relative to the remote; client headers are overridden by request headers.
func (c *Client) Execute(ctx context.Context, req *Request, override *ConfigOverride) (*Response, error) {
	if req == nil {
		return nil, &ArgumentError{Argument: "request", Reason: "a request is required"}
	}
	prepared := req.clone()
	if strings.HasPrefix(prepared.Target, "/") {
		prepared.Target = c.remote + prepared.Target
	}
	prepared.Headers = MergeHeaders(c.headers, false, req.Headers)
	return c.engine.Request(ctx, prepared, override)
}

// ServerInfo fetches the server root document. The first successful answer
// is cached for the lifetime of the client.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	c.mu.Lock()
	cached := c.serverInfo
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	resp, err := c.Execute(ctx, &Request{Method: http.MethodGet, Target: "/"}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching server info: %w", err)
	}
	var info ServerInfo
	if err := mapstructure.Decode(resp.JSON, &info); err != nil {
		return nil, fmt.Errorf("decoding server info: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = &info
	c.mu.Unlock()
	return &info, nil
}

// checkCapability returns a CapabilityError if the server does not advertise
// the named capability.
func (c *Client) checkCapability(ctx context.Context, capability string) error {
	info, err := c.ServerInfo(ctx)
	if err != nil {
		return err
	}
	if _, ok := info.Capabilities[capability]; !ok {
		return &CapabilityError{Capability: capability}
	}
	return nil
}

// TotalRecords returns the Total-Records header of a HEAD request on path.
func (c *Client) TotalRecords(ctx context.Context, path string) (int, error) {
	resp, err := c.Execute(ctx, &Request{Method: http.MethodHead, Target: path}, nil)
	if err != nil {
		return 0, err
	}
	value := resp.Header.Get("Total-Records")
	total, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid Total-Records header %q: %w", value, err)
	}
	return total, nil
}

// LastModified returns the timestamp carried by the ETag of a HEAD request
// on path.
func (c *Client) LastModified(ctx context.Context, path string) (int64, error) {
	resp, err := c.Execute(ctx, &Request{Method: http.MethodHead, Target: path}, nil)
	if err != nil {
		return 0, err
	}
	value := resp.Header.Get("ETag")
	ts, ok := internal.ParseETag(value)
	if !ok {
		return 0, fmt.Errorf("invalid ETag header %q", value)
	}
	return ts, nil
}

// History returns a reader over the history log of bucket.
func (c *Client) History(bucket string) *HistoryLog {
	return &HistoryLog{client: c, bucket: bucket}
}

// Snapshot returns the records of bucket/collection as they were at revision
// at. It requires the history capability on the server.
func (c *Client) Snapshot(ctx context.Context, bucket, collection string, at int64) (*Snapshot, error) {
	if err := validateRevision(at); err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, &ArgumentError{Argument: "bucket", Reason: "a bucket name is required"}
	}
	if collection == "" {
		return nil, &ArgumentError{Argument: "collection", Reason: "a collection name is required"}
	}
	if err := c.checkCapability(ctx, "history"); err != nil {
		return nil, err
	}
	c.logger.Debug("computing snapshot", "bucket", bucket, "collection", collection, "at", at)
	return Reconstruct(ctx, c.History(bucket), collection, at)
}
