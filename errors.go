package kintobridge

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingEventSink is returned by NewEngine when no EventSink is given.
	ErrMissingEventSink = errors.New("kintobridge: an EventSink is required")

	// ErrMissingTransport is returned by NewEngine when no Transport is given.
	ErrMissingTransport = errors.New("kintobridge: a Transport is required")

	// ErrSnapshotPagination is returned when paging forward from a Snapshot.
	ErrSnapshotPagination = errors.New("snapshots don't support pagination")

	// ErrNoNextPage is returned by HistoryPage.Next on the last page.
	ErrNoNextPage = errors.New("kintobridge: no next page")
)

// NetworkTimeoutError reports that the deadline won the race against the
// transport. Options holds the redacted request options as JSON.
type NetworkTimeoutError struct {
	Target  string
	Options string
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("Timeout while trying to access %s with %s", e.Target, e.Options)
}

// UnparseableResponseError reports a response body that is not valid JSON.
type UnparseableResponseError struct {
	Status int
	Body   string
	Err    error
}

func (e *UnparseableResponseError) Error() string {
	return fmt.Sprintf("Response from server unparseable (HTTP %d; %v): %s", e.Status, e.Err, e.Body)
}

func (e *UnparseableResponseError) Unwrap() error { return e.Err }

// ServerResponseError reports a response with status >= 400. Body holds the
// parsed JSON body when there was one.
type ServerResponseError struct {
	Status     int
	StatusText string
	Body       any
	Header     http.Header

	message string
}

func (e *ServerResponseError) Error() string { return e.message }

// TransportError reports a connectivity failure (DNS, refused connection).
// It is never retried by the engine.
type TransportError struct {
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network request to %s failed: %v", e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ArgumentError reports an invalid argument detected before any network call.
type ArgumentError struct {
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("Invalid argument %s: %s", e.Argument, e.Reason)
}

// IncompleteHistoryError reports that the history log does not go back to the
// creation of the collection, so no snapshot can be computed from it.
type IncompleteHistoryError struct {
	Collection string
}

func (e *IncompleteHistoryError) Error() string {
	return fmt.Sprintf("Computing a snapshot of %q is only possible when the full history for the collection is available. "+
		"Here, the history plugin seems to have been enabled after the creation of the collection.", e.Collection)
}

// CapabilityError reports that the server does not advertise a capability an
// operation depends on.
type CapabilityError struct {
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("this operation requires the %q capability to be enabled on the server", e.Capability)
}

// errorCodes maps Kinto errno values to their documented meaning.
var errorCodes = map[int]string{
	104: "Missing Authorization Token",
	105: "Invalid Authorization Token",
	106: "Request body was not valid JSON",
	107: "Invalid request parameter",
	108: "Missing request parameter",
	109: "Invalid posted data",
	110: "Invalid Token / id",
	111: "Missing Token / id",
	112: "Content-Length header was not provided",
	113: "Request body too large",
	114: "Resource was created, updated or deleted meanwhile",
	115: "Method not allowed on this end point (hint: server may be readonly)",
	116: "Requested version not available on this server",
	117: "Client has sent too many requests",
	121: "Resource access is forbidden for this user",
	122: "Another resource violates constraint",
	201: "Service Temporary unavailable due to high load",
	202: "Service deprecated",
	999: "Internal Server Error",
}

func newServerResponseError(raw *RawResponse, body any) *ServerResponseError {
	statusText := raw.StatusText
	var detail string

	if fields, ok := body.(map[string]any); ok {
		errorText, _ := fields["error"].(string)
		if errorText != "" {
			statusText = errorText
		}
		message, _ := fields["message"].(string)

		switch {
		case errorText != "" && firstDetail(fields) != "":
			detail = fmt.Sprintf("%s (%s)", errorCodes[107], firstDetail(fields))
		case errnoText(fields) != "":
			detail = errnoText(fields)
			if message != "" && message != detail {
				detail += fmt.Sprintf(" (%s)", message)
			}
		default:
			detail = message
		}
	}

	msg := fmt.Sprintf("HTTP %d %s", raw.StatusCode, statusText)
	if detail != "" {
		msg += ": " + detail
	}

	return &ServerResponseError{
		Status:     raw.StatusCode,
		StatusText: statusText,
		Body:       body,
		Header:     raw.Header,
		message:    msg,
	}
}

// firstDetail returns the description of the first entry in "details".
func firstDetail(fields map[string]any) string {
	details, ok := fields["details"].([]any)
	if !ok || len(details) == 0 {
		return ""
	}
	first, ok := details[0].(map[string]any)
	if !ok {
		return ""
	}
	description, _ := first["description"].(string)
	return description
}

func errnoText(fields map[string]any) string {
	errno, ok := fields["errno"].(float64)
	if !ok {
		return ""
	}
	return errorCodes[int(errno)]
}

// IsTimeout reports whether err is a NetworkTimeoutError.
func IsTimeout(err error) bool {
	var te *NetworkTimeoutError
	return errors.As(err, &te)
}

// IsServerError reports whether err is a ServerResponseError with the given
// status. A status of 0 matches any server error.
func IsServerError(err error, status int) bool {
	var se *ServerResponseError
	if !errors.As(err, &se) {
		return false
	}
	return status == 0 || se.Status == status
}

// isTransientOverload reports whether err may be retried: the server answered
// 503, whether or not its body could be parsed.
func isTransientOverload(err error) bool {
	var se *ServerResponseError
	if errors.As(err, &se) {
		return se.Status == http.StatusServiceUnavailable
	}
	var ue *UnparseableResponseError
	if errors.As(err, &ue) {
		return ue.Status == http.StatusServiceUnavailable
	}
	return false
}
