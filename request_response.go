package kintobridge

import "net/http"

// RequestMode is the cross-origin mode carried with each request. Transports
// running outside a browser are free to ignore it.
type RequestMode string

const (
	ModeCORS       RequestMode = "cors"
	ModeNoCORS     RequestMode = "no-cors"
	ModeSameOrigin RequestMode = "same-origin"
)

// Request is a single logical call. Retries reuse it unchanged.
type Request struct {
	Method  string
	Target  string
	Headers http.Header
	Body    []byte
	// Form, when set, is sent as a multipart payload instead of Body.
	Form *FormData
	// Mode is set by the Engine from the resolved configuration; a value
	// set by the caller is overwritten. Use ConfigOverride.Mode per call.
	Mode RequestMode
}

// FormData is a multipart payload. The transport encodes it and supplies the
// boundary Content-Type.
type FormData struct {
	Fields map[string]string
	Files  []FormFile
}

type FormFile struct {
	Field    string
	Filename string
	Content  []byte
}

// RawResponse is what a Transport hands back before classification.
type RawResponse struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Body       []byte
}

// Response is a classified, successful response. JSON is nil when the server
// sent no body.
type Response struct {
	Status int
	JSON   any
	Header http.Header
}

// clone returns a copy of the request whose header map can be modified
// without touching the caller's.
func (r *Request) clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	return &c
}
