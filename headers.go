package kintobridge

import (
	"encoding/json"
	"net/http"
	"strings"
)

// obscuredAuthorization replaces Authorization values in error messages.
const obscuredAuthorization = "**** (suppressed)"

// DefaultRequestHeaders returns the headers every request starts from.
func DefaultRequestHeaders() http.Header {
	return http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
	}
}

// MergeHeaders overlays each layer onto base, comparing keys case-insensitively
// so that a later layer replaces every value of a key. When multipart is set
// the Content-Type is removed so the transport can supply its boundary.
func MergeHeaders(base http.Header, multipart bool, layers ...http.Header) http.Header {
	merged := make(http.Header, len(base))
	for k, vs := range base {
		merged[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	for _, layer := range layers {
		for k, vs := range layer {
			merged[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}
	}
	if multipart {
		merged.Del("Content-Type")
	}
	return merged
}

// redactedOptions serializes the request options for error messages: header
// keys are lower-cased and the Authorization value is obscured.
func redactedOptions(req *Request) string {
	headers := make(map[string]string, len(req.Headers))
	for k, vs := range req.Headers {
		key := strings.ToLower(k)
		if key == "authorization" {
			headers[key] = obscuredAuthorization
			continue
		}
		headers[key] = strings.Join(vs, ", ")
	}

	options := struct {
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers"`
		Mode    RequestMode       `json:"mode,omitempty"`
	}{
		Method:  req.Method,
		Headers: headers,
		Mode:    req.Mode,
	}

	encoded, err := json.Marshal(options)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
