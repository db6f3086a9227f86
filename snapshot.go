package kintobridge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// Snapshot is the record set of a collection as it was at a past revision.
// It is a single, final page.
type Snapshot struct {
	Data         []Record
	LastModified int64
	TotalRecords int
	HasNextPage  bool
}

// Next always fails: a snapshot is computed in one piece.
func (s *Snapshot) Next(context.Context) (*Snapshot, error) {
	return nil, ErrSnapshotPagination
}

func validateRevision(at int64) error {
	if at <= 0 {
		return &ArgumentError{Argument: "at", Reason: "expected a positive integer, got " + strconv.FormatInt(at, 10)}
	}
	return nil
}

// Reconstruct computes the records of collection at revision at by replaying
// its history. It refuses to answer when the history does not include the
// creation of the collection, since earlier changes would then be missing.
func Reconstruct(ctx context.Context, reader HistoryReader, collection string, at int64) (*Snapshot, error) {
	if err := validateRevision(at); err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, &ArgumentError{Argument: "collection", Reason: "a collection name is required"}
	}

	creation, err := reader.List(ctx, HistoryQuery{
		Filters: map[string]string{
			"resource_name": "collection",
			"collection_id": collection,
			"action":        ActionCreate,
		},
		Limit: 1,
		Pages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("checking history of collection %q: %w", collection, err)
	}
	if len(creation.Data) == 0 {
		return nil, &IncompleteHistoryError{Collection: collection}
	}

	page, err := reader.List(ctx, HistoryQuery{
		Filters: map[string]string{
			"resource_name":                 "record",
			"collection_id":                 collection,
			"max_target.data.last_modified": strconv.FormatInt(at, 10),
		},
		Sort: "-target.data.last_modified",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching history of collection %q: %w", collection, err)
	}
	changes := page.Data
	for page.HasNextPage {
		if page, err = page.Next(ctx); err != nil {
			return nil, fmt.Errorf("fetching history of collection %q: %w", collection, err)
		}
		changes = append(changes, page.Data...)
	}

	records := Replay(changes, at)
	return &Snapshot{
		Data:         records,
		LastModified: at,
		TotalRecords: len(records),
		HasNextPage:  false,
	}, nil
}

// Replay folds change events into the records alive at revision at. Walking
// from newest to oldest, the first event seen for an id decides its state:
// create and update keep the recorded data, delete drops the id. Events newer
// than at are ignored. The result is sorted by last_modified, newest first.
func Replay(events []ChangeEvent, at int64) []Record {
	ordered := make([]ChangeEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Revision() > ordered[j].Revision()
	})

	seen := make(map[string]struct{}, len(ordered))
	records := []Record{}
	for _, ev := range ordered {
		if ev.Revision() > at {
			continue
		}
		id := ev.RecordID()
		if id == "" {
			continue
		}
		if _, done := seen[id]; done {
			continue
		}

		switch ev.Action {
		case ActionDelete:
			seen[id] = struct{}{}
		case ActionCreate, ActionUpdate:
			seen[id] = struct{}{}
			records = append(records, ev.Target.Data)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastModified() > records[j].LastModified()
	})
	return records
}
