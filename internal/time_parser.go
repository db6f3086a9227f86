// internal/time_parser.go
// ------------------------
// This internal package provides helpers for turning wire-level header values into
// timestamps. Header values are integer seconds (Backoff, Retry-After) or quoted
// millisecond timestamps (ETag); deadlines are absolute Unix milliseconds.
//
// Functions:
// - ParseSeconds: Parse an integer-seconds header value.
// - DeadlineMs: Convert a seconds delay into an absolute ms deadline relative to now.
// - IsInFuture: Check if a given timestamp (ms) is after now.
// - ParseETag: Parse a quoted ETag value into a timestamp.
package internal

import (
	"strconv"
	"strings"
	"time"
)

// ParseSeconds parses an integer-seconds header value such as "30".
// Values that are empty or not integers report ok=false.
func ParseSeconds(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return sec, true
}

// DeadlineMs returns now + seconds*1000, in Unix milliseconds.
func DeadlineMs(now time.Time, seconds int64) int64 {
	return now.UnixMilli() + seconds*1000
}

// IsInFuture checks if a timestamp (in ms) is after now.
func IsInFuture(ms int64, now time.Time) bool {
	return ms > now.UnixMilli()
}

// ParseETag parses an ETag like `"1700000000000"` into its timestamp.
func ParseETag(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "W/")
	s = strings.Trim(s, `"`)
	if s == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
