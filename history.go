package kintobridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
)

// Record is a stored object as returned by the server.
type Record map[string]any

// ID returns the record id, or "" when absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// LastModified returns the record's last_modified timestamp, or 0.
func (r Record) LastModified() int64 {
	switch v := r["last_modified"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Actions recorded in the history log.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ChangeEvent is one entry of the history log.
type ChangeEvent struct {
	ID           string       `mapstructure:"id"`
	Action       string       `mapstructure:"action"`
	URI          string       `mapstructure:"uri"`
	ResourceName string       `mapstructure:"resource_name"`
	CollectionID string       `mapstructure:"collection_id"`
	LastModified int64        `mapstructure:"last_modified"`
	UserID       string       `mapstructure:"user_id"`
	Target       ChangeTarget `mapstructure:"target"`
}

// ChangeTarget is the state of the changed object recorded with the event.
type ChangeTarget struct {
	Data        Record              `mapstructure:"data"`
	Permissions map[string][]string `mapstructure:"permissions"`
}

// RecordID returns the id of the changed object.
func (ev ChangeEvent) RecordID() string { return ev.Target.Data.ID() }

// Revision returns the timestamp of the changed object, which orders the log.
// Entries whose target carries no timestamp fall back to the event's own.
func (ev ChangeEvent) Revision() int64 {
	if rev := ev.Target.Data.LastModified(); rev != 0 {
		return rev
	}
	return ev.LastModified
}

// HistoryQuery selects history entries. Pages bounds how many pages List
// fetches before returning; 0 drains every page.
type HistoryQuery struct {
	Filters map[string]string
	Sort    string
	Limit   int
	Pages   int
}

// HistoryPage is the result of a List call. When HasNextPage is set, Next
// continues from where List stopped, with the same paging policy.
type HistoryPage struct {
	Data        []ChangeEvent
	HasNextPage bool

	next func(ctx context.Context) (*HistoryPage, error)
}

// NewHistoryPage builds a page for HistoryReader implementations. A nil next
// marks the last page.
func NewHistoryPage(data []ChangeEvent, next func(ctx context.Context) (*HistoryPage, error)) *HistoryPage {
	return &HistoryPage{Data: data, HasNextPage: next != nil, next: next}
}

// Next fetches the following page.
func (p *HistoryPage) Next(ctx context.Context) (*HistoryPage, error) {
	if !p.HasNextPage || p.next == nil {
		return nil, ErrNoNextPage
	}
	return p.next(ctx)
}

// HistoryLog reads the history of one bucket through a Client.
type HistoryLog struct {
	client *Client
	bucket string
}

var _ HistoryReader = (*HistoryLog)(nil)

// List fetches history pages sequentially, following the Next-Page header.
func (l *HistoryLog) List(ctx context.Context, query HistoryQuery) (*HistoryPage, error) {
	if l.bucket == "" {
		return nil, &ArgumentError{Argument: "bucket", Reason: "a bucket name is required"}
	}

	params := url.Values{}
	for k, v := range query.Filters {
		params.Set(k, v)
	}
	if query.Sort != "" {
		params.Set("_sort", query.Sort)
	}
	if query.Limit > 0 {
		params.Set("_limit", strconv.Itoa(query.Limit))
	}

	target := fmt.Sprintf("/buckets/%s/history", url.PathEscape(l.bucket))
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return l.fetch(ctx, target, query.Pages)
}

func (l *HistoryLog) fetch(ctx context.Context, target string, pages int) (*HistoryPage, error) {
	var events []ChangeEvent
	next := target
	for fetched := 0; next != "" && (pages <= 0 || fetched < pages); fetched++ {
		resp, err := l.client.Execute(ctx, &Request{Method: http.MethodGet, Target: next}, nil)
		if err != nil {
			return nil, fmt.Errorf("listing history of bucket %q: %w", l.bucket, err)
		}
		batch, err := decodeChangeEvents(resp.JSON)
		if err != nil {
			return nil, fmt.Errorf("decoding history of bucket %q: %w", l.bucket, err)
		}
		events = append(events, batch...)
		next = resp.Header.Get("Next-Page")
	}

	if next == "" {
		return NewHistoryPage(events, nil), nil
	}
	return NewHistoryPage(events, func(ctx context.Context) (*HistoryPage, error) {
		return l.fetch(ctx, next, pages)
	}), nil
}

// decodeChangeEvents decodes the "data" list of a history response. Every
// malformed entry is reported, not only the first.
func decodeChangeEvents(body any) ([]ChangeEvent, error) {
	fields, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected history response of type %T", body)
	}
	entries, ok := fields["data"].([]any)
	if !ok {
		return nil, fmt.Errorf("history response has no data list")
	}

	events := make([]ChangeEvent, 0, len(entries))
	var result *multierror.Error
	for i, entry := range entries {
		var ev ChangeEvent
		if err := mapstructure.Decode(entry, &ev); err != nil {
			result = multierror.Append(result, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return events, nil
}
