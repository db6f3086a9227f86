package mock

import (
	"context"
	"sort"
	"strconv"
	"sync"

	kintobridge "github.com/opengovern/kinto-bridge"
)

// History is an in-memory HistoryReader. It understands the filters used for
// snapshots: resource_name, collection_id, action and
// max_target.data.last_modified. Results are served PageSize entries per page
// (all at once when zero); a query Limit takes precedence over PageSize.
type History struct {
	Events   []kintobridge.ChangeEvent
	PageSize int
	Err      error

	mu      sync.Mutex
	queries []kintobridge.HistoryQuery
}

var _ kintobridge.HistoryReader = (*History)(nil)

func (h *History) List(ctx context.Context, query kintobridge.HistoryQuery) (*kintobridge.HistoryPage, error) {
	h.mu.Lock()
	h.queries = append(h.queries, query)
	h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}

	matched := h.filter(query)
	size := h.PageSize
	if query.Limit > 0 {
		size = query.Limit
	}
	if size <= 0 {
		size = len(matched) + 1
	}
	return page(matched, size, query.Pages), nil
}

// Queries returns the queries received so far.
func (h *History) Queries() []kintobridge.HistoryQuery {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]kintobridge.HistoryQuery, len(h.queries))
	copy(out, h.queries)
	return out
}

func (h *History) filter(query kintobridge.HistoryQuery) []kintobridge.ChangeEvent {
	var out []kintobridge.ChangeEvent
	for _, ev := range h.Events {
		if v, ok := query.Filters["resource_name"]; ok && ev.ResourceName != v {
			continue
		}
		if v, ok := query.Filters["collection_id"]; ok && ev.CollectionID != v {
			continue
		}
		if v, ok := query.Filters["action"]; ok && ev.Action != v {
			continue
		}
		if v, ok := query.Filters["max_target.data.last_modified"]; ok {
			bound, err := strconv.ParseInt(v, 10, 64)
			if err == nil && ev.Revision() > bound {
				continue
			}
		}
		out = append(out, ev)
	}
	if query.Sort == "-target.data.last_modified" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Revision() > out[j].Revision() })
	}
	return out
}

// page serves events size at a time, aggregating up to pages pages (all when
// zero) into each returned HistoryPage.
func page(events []kintobridge.ChangeEvent, size, pages int) *kintobridge.HistoryPage {
	var data []kintobridge.ChangeEvent
	rest := events
	for fetched := 0; len(rest) > 0 && (pages <= 0 || fetched < pages); fetched++ {
		n := size
		if n > len(rest) {
			n = len(rest)
		}
		data = append(data, rest[:n]...)
		rest = rest[n:]
	}
	if len(rest) == 0 {
		return kintobridge.NewHistoryPage(data, nil)
	}
	remaining := rest
	return kintobridge.NewHistoryPage(data, func(context.Context) (*kintobridge.HistoryPage, error) {
		return page(remaining, size, pages), nil
	})
}
