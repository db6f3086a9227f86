// http_transport.go
// ------------------
// This file implements the Transport boundary on top of net/http.
//
// Key Points:
// - Request headers are sent exactly as the Engine prepared them.
// - A multipart Form is encoded here; the boundary Content-Type is set by this transport.
// - The whole body is read, and Content-Length is rewritten to the number of bytes
//   read, so decompressed, chunked and HEAD responses are classified correctly.
// - An optional oauth2.TokenSource supplies the Authorization header.
// - Connectivity failures are returned as *kintobridge.TransportError.
package adapters

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	kintobridge "github.com/opengovern/kinto-bridge"
)

// HTTPTransport sends requests with an *http.Client.
type HTTPTransport struct {
	client *http.Client
}

var _ kintobridge.Transport = (*HTTPTransport)(nil)

// HTTPTransportConfig configures an HTTPTransport.
type HTTPTransportConfig struct {
	// Client is the underlying client. Defaults to a client with a pooled
	// transport. Its Timeout should stay zero: deadlines are enforced by the
	// Engine.
	Client *http.Client

	// TokenSource, when set, adds an OAuth2 bearer Authorization header to
	// every request.
	TokenSource oauth2.TokenSource
}

func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		}
	}

	if cfg.TokenSource != nil {
		base := client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *client
		wrapped.Transport = &oauth2.Transport{Source: cfg.TokenSource, Base: base}
		client = &wrapped
	}

	return &HTTPTransport{client: client}
}

// Send performs one HTTP round trip.
func (t *HTTPTransport) Send(ctx context.Context, req *kintobridge.Request) (*kintobridge.RawResponse, error) {
	body := bytes.NewReader(req.Body)
	contentType := ""
	if req.Form != nil {
		encoded, ct, err := encodeForm(req.Form)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
		contentType = ct
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.Target, body)
	if err != nil {
		return nil, err
	}
	for k, vals := range req.Headers {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &kintobridge.TransportError{Target: req.Target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &kintobridge.TransportError{Target: req.Target, Err: err}
	}

	headers := resp.Header.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Content-Length", strconv.Itoa(len(data)))

	return &kintobridge.RawResponse{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     headers,
		Body:       data,
	}, nil
}

// encodeForm writes form as multipart/form-data and returns the body along
// with its Content-Type, boundary included.
func encodeForm(form *kintobridge.FormData) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range form.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	for _, file := range form.Files {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
