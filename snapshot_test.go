package kintobridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kintobridge "github.com/opengovern/kinto-bridge"
	"github.com/opengovern/kinto-bridge/mock"
)

func collectionCreated(collection string, rev int64) kintobridge.ChangeEvent {
	return kintobridge.ChangeEvent{
		Action:       kintobridge.ActionCreate,
		ResourceName: "collection",
		CollectionID: collection,
		Target: kintobridge.ChangeTarget{
			Data: kintobridge.Record{"id": collection, "last_modified": rev},
		},
	}
}

func recordChanged(action, id string, rev int64, fields ...any) kintobridge.ChangeEvent {
	data := kintobridge.Record{"id": id, "last_modified": rev}
	for i := 0; i+1 < len(fields); i += 2 {
		data[fields[i].(string)] = fields[i+1]
	}
	if action == kintobridge.ActionDelete {
		data["deleted"] = true
	}
	return kintobridge.ChangeEvent{
		Action:       action,
		ResourceName: "record",
		CollectionID: "articles",
		Target:       kintobridge.ChangeTarget{Data: data},
	}
}

func articlesHistory() []kintobridge.ChangeEvent {
	return []kintobridge.ChangeEvent{
		collectionCreated("articles", 1),
		recordChanged(kintobridge.ActionCreate, "A", 5, "title", "v1"),
		recordChanged(kintobridge.ActionUpdate, "A", 8, "title", "v2"),
		recordChanged(kintobridge.ActionDelete, "A", 10),
	}
}

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name     string
		at       int64
		expected []kintobridge.Record
	}{
		{
			name:     "before deletion",
			at:       9,
			expected: []kintobridge.Record{{"id": "A", "last_modified": int64(8), "title": "v2"}},
		},
		{
			name:     "at first revision",
			at:       5,
			expected: []kintobridge.Record{{"id": "A", "last_modified": int64(5), "title": "v1"}},
		},
		{
			name:     "after deletion",
			at:       11,
			expected: []kintobridge.Record{},
		},
		{
			name:     "before creation",
			at:       2,
			expected: []kintobridge.Record{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &mock.History{Events: articlesHistory()}

			snapshot, err := kintobridge.Reconstruct(context.Background(), history, "articles", tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, snapshot.Data)
			assert.Equal(t, tt.at, snapshot.LastModified)
			assert.Equal(t, len(tt.expected), snapshot.TotalRecords)
			assert.False(t, snapshot.HasNextPage)
		})
	}
}

func TestReconstruct_Queries(t *testing.T) {
	history := &mock.History{Events: articlesHistory()}

	_, err := kintobridge.Reconstruct(context.Background(), history, "articles", 9)
	require.NoError(t, err)

	queries := history.Queries()
	require.Len(t, queries, 2)
	assert.Equal(t, kintobridge.HistoryQuery{
		Filters: map[string]string{
			"resource_name": "collection",
			"collection_id": "articles",
			"action":        "create",
		},
		Limit: 1,
		Pages: 1,
	}, queries[0])
	assert.Equal(t, kintobridge.HistoryQuery{
		Filters: map[string]string{
			"resource_name":                 "record",
			"collection_id":                 "articles",
			"max_target.data.last_modified": "9",
		},
		Sort: "-target.data.last_modified",
	}, queries[1])
}

func TestReconstruct_IncompleteHistory(t *testing.T) {
	history := &mock.History{Events: articlesHistory()[1:]}

	_, err := kintobridge.Reconstruct(context.Background(), history, "articles", 9)
	var incomplete *kintobridge.IncompleteHistoryError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "articles", incomplete.Collection)
	assert.Contains(t, err.Error(), "only possible when the full history for the collection is available")
	assert.Len(t, history.Queries(), 1)
}

func TestReconstruct_InvalidArguments(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		at         int64
		argument   string
	}{
		{"zero revision", "articles", 0, "at"},
		{"negative revision", "articles", -3, "at"},
		{"missing collection", "", 9, "collection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &mock.History{Events: articlesHistory()}

			_, err := kintobridge.Reconstruct(context.Background(), history, tt.collection, tt.at)
			var argErr *kintobridge.ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.argument, argErr.Argument)
			assert.Empty(t, history.Queries())
		})
	}
}

// chunkedReader serves each List result size events per page, regardless of
// the query paging policy.
type chunkedReader struct {
	*mock.History
	size int
}

func (r chunkedReader) List(ctx context.Context, query kintobridge.HistoryQuery) (*kintobridge.HistoryPage, error) {
	page, err := r.History.List(ctx, query)
	if err != nil {
		return nil, err
	}
	return chunk(page.Data, r.size), nil
}

func chunk(data []kintobridge.ChangeEvent, size int) *kintobridge.HistoryPage {
	if len(data) <= size {
		return kintobridge.NewHistoryPage(data, nil)
	}
	rest := data[size:]
	return kintobridge.NewHistoryPage(data[:size], func(context.Context) (*kintobridge.HistoryPage, error) {
		return chunk(rest, size), nil
	})
}

func TestReconstruct_DrainsPages(t *testing.T) {
	events := []kintobridge.ChangeEvent{collectionCreated("articles", 1)}
	for i := int64(1); i <= 7; i++ {
		events = append(events, recordChanged(kintobridge.ActionCreate, string(rune('a'+i)), 10+i))
	}
	reader := chunkedReader{History: &mock.History{Events: events}, size: 2}

	snapshot, err := kintobridge.Reconstruct(context.Background(), reader, "articles", 100)
	require.NoError(t, err)
	require.Len(t, snapshot.Data, 7)
	assert.Equal(t, int64(17), snapshot.Data[0].LastModified())
	assert.Equal(t, int64(11), snapshot.Data[6].LastModified())
}

func TestReconstruct_ReaderError(t *testing.T) {
	boom := errors.New("history unavailable")
	history := &mock.History{Err: boom}

	_, err := kintobridge.Reconstruct(context.Background(), history, "articles", 9)
	assert.ErrorIs(t, err, boom)
}

func TestSnapshot_Next(t *testing.T) {
	history := &mock.History{Events: articlesHistory()}
	snapshot, err := kintobridge.Reconstruct(context.Background(), history, "articles", 9)
	require.NoError(t, err)

	next, err := snapshot.Next(context.Background())
	assert.Nil(t, next)
	assert.ErrorIs(t, err, kintobridge.ErrSnapshotPagination)
	assert.EqualError(t, err, "snapshots don't support pagination")
}

func TestReplay(t *testing.T) {
	t.Run("unordered input", func(t *testing.T) {
		events := []kintobridge.ChangeEvent{
			recordChanged(kintobridge.ActionCreate, "A", 5, "title", "v1"),
			recordChanged(kintobridge.ActionUpdate, "A", 8, "title", "v2"),
			recordChanged(kintobridge.ActionCreate, "B", 6),
		}

		records := kintobridge.Replay(events, 9)
		require.Len(t, records, 2)
		assert.Equal(t, "A", records[0].ID())
		assert.Equal(t, "v2", records[0]["title"])
		assert.Equal(t, "B", records[1].ID())
	})

	t.Run("ignores events after revision", func(t *testing.T) {
		events := []kintobridge.ChangeEvent{
			recordChanged(kintobridge.ActionCreate, "A", 12),
			recordChanged(kintobridge.ActionCreate, "B", 6),
		}

		records := kintobridge.Replay(events, 9)
		require.Len(t, records, 1)
		assert.Equal(t, "B", records[0].ID())
	})

	t.Run("recreated after delete", func(t *testing.T) {
		events := []kintobridge.ChangeEvent{
			recordChanged(kintobridge.ActionCreate, "A", 3, "title", "second"),
			recordChanged(kintobridge.ActionDelete, "A", 2),
			recordChanged(kintobridge.ActionCreate, "A", 1, "title", "first"),
		}

		records := kintobridge.Replay(events, 3)
		require.Len(t, records, 1)
		assert.Equal(t, "second", records[0]["title"])

		assert.Empty(t, kintobridge.Replay(events, 2))

		records = kintobridge.Replay(events, 1)
		require.Len(t, records, 1)
		assert.Equal(t, "first", records[0]["title"])
	})

	t.Run("idempotent", func(t *testing.T) {
		events := articlesHistory()[1:]
		first := kintobridge.Replay(events, 9)
		second := kintobridge.Replay(events, 9)
		assert.Equal(t, first, second)
		assert.Equal(t, int64(5), events[0].Revision(), "input must not be reordered")
	})

	t.Run("empty", func(t *testing.T) {
		records := kintobridge.Replay(nil, 9)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})
}
