// config.go
// ----------
// This file defines the request configuration layers and the client configuration.
//
// A RequestConfig is resolved per call by MergeConfig from three layers:
// base defaults < instance defaults < per-call override. Override fields are
// pointers so that an explicit zero (for example Retry: 0) can shadow a
// non-zero instance default.
package kintobridge

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
)

// RequestConfig is the resolved configuration of one logical call.
type RequestConfig struct {
	Timeout time.Duration // Zero disables the deadline
	Retry   int           // Retries allowed on transient overload (503)
	Mode    RequestMode
}

// ConfigOverride overlays a RequestConfig. Nil fields inherit.
type ConfigOverride struct {
	Timeout *time.Duration
	Retry   *int
	Mode    *RequestMode
}

// DefaultRequestConfig returns the base layer: no deadline, no retries, cors.
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		Timeout: 0,
		Retry:   0,
		Mode:    ModeCORS,
	}
}

// MergeConfig applies layers to base from left to right, so later layers win.
func MergeConfig(base RequestConfig, layers ...*ConfigOverride) RequestConfig {
	merged := base
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if layer.Timeout != nil {
			merged.Timeout = *layer.Timeout
		}
		if layer.Retry != nil {
			merged.Retry = *layer.Retry
		}
		if layer.Mode != nil {
			merged.Mode = *layer.Mode
		}
	}
	return merged
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Remote is the server root, e.g. "https://kinto.example.com/v1".
	Remote string `json:"remote"`

	// Headers are sent with every request, under per-request headers.
	Headers http.Header `json:"headers"`

	Timeout time.Duration `json:"timeout"`
	Retry   int           `json:"retry"`
	Mode    RequestMode   `json:"mode"`

	Transport Transport `json:"transport"`

	// Events receives engine signals. A fresh Emitter is used when nil.
	Events EventSink    `json:"-"`
	Clock  Clock        `json:"-"`
	Logger hclog.Logger `json:"-"`
}

// Validate checks the configuration before a Client is built.
func (c *ClientConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Remote, validation.Required),
		validation.Field(&c.Transport, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Retry, validation.Min(0)),
	)
}

// overrides converts the client-level settings into the instance layer.
func (c *ClientConfig) overrides() *ConfigOverride {
	timeout, retry := c.Timeout, c.Retry
	o := &ConfigOverride{Timeout: &timeout, Retry: &retry}
	if c.Mode != "" {
		mode := c.Mode
		o.Mode = &mode
	}
	return o
}

// Duration, Int and Mode return pointers for building a ConfigOverride inline.
func Duration(d time.Duration) *time.Duration { return &d }

func Int(i int) *int { return &i }

func Mode(m RequestMode) *RequestMode { return &m }
