package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func entry(url string, ordinal int, vector ...float32) *core.IndexEntry {
	return &core.IndexEntry{
		ID:     core.ChunkID(url, ordinal),
		Vector: vector,
		Payload: core.Payload{
			URL:     url,
			Title:   "Title " + url,
			Heading: core.NoHeading,
			Text:    fmt.Sprintf("chunk %d of %s", ordinal, url),
			Ordinal: ordinal,
		},
	}
}

func TestIndex_SearchEmpty(t *testing.T) {
	ix := newTestStores(t).Index
	ctx := context.Background()

	results, err := ix.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndex_SearchOrdering(t *testing.T) {
	ix := newTestStores(t).Index
	ctx := context.Background()
	require.NoError(t, ix.EnsureCollection(ctx, 2))

	require.NoError(t, ix.Upsert(ctx,
		entry("https://d/a", 0, 1, 0),
		entry("https://d/b", 0, 0.8, 0.6),
		entry("https://d/c", 0, 0, 1),
		entry("https://d/d", 0, 2, 0), // same direction as a, inserted later
	))

	results, err := ix.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "https://d/a", results[0].Payload.URL, "tie broken by insertion order")
	assert.Equal(t, "https://d/d", results[1].Payload.URL)
	assert.Equal(t, "https://d/b", results[2].Payload.URL)
	assert.Equal(t, "https://d/c", results[3].Payload.URL)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.8, results[2].Score, 1e-6)

	top, err := ix.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	ix := newTestStores(t).Index
	ctx := context.Background()

	require.NoError(t, ix.Upsert(ctx, entry("https://d/a", 0, 1, 0), entry("https://d/b", 0, 1, 0)))

	replaced := entry("https://d/a", 0, 1, 0)
	replaced.Payload.Text = "updated"
	require.NoError(t, ix.Upsert(ctx, replaced))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := ix.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, "https://d/a", results[0].Payload.URL, "replacement keeps its original position")
	assert.Equal(t, "updated", results[0].Payload.Text)
}

func TestIndex_Validation(t *testing.T) {
	ix := newTestStores(t).Index
	ctx := context.Background()

	err := ix.Upsert(ctx, &core.IndexEntry{ID: 1, Payload: core.Payload{URL: "u"}})
	assert.ErrorIs(t, err, core.ErrInvalidEntry)

	_, err = ix.Search(ctx, []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = ix.Search(ctx, nil, 3)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	require.NoError(t, ix.EnsureCollection(ctx, 2))
	require.NoError(t, ix.EnsureCollection(ctx, 2))
	assert.ErrorIs(t, ix.EnsureCollection(ctx, 3), storage.ErrDimensionMismatch)
	assert.ErrorIs(t, ix.Upsert(ctx, entry("https://d/a", 0, 1, 0, 0)), storage.ErrDimensionMismatch)
}

func TestIndex_DeleteAndReset(t *testing.T) {
	ix := newTestStores(t).Index
	ctx := context.Background()
	require.NoError(t, ix.EnsureCollection(ctx, 2))

	a, b := entry("https://d/a", 0, 1, 0), entry("https://d/b", 0, 0, 1)
	require.NoError(t, ix.Upsert(ctx, a, b))

	require.NoError(t, ix.Delete(ctx, a.ID, core.ID(12345)))
	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, ix.Reset(ctx))
	n, err = ix.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// dimension is forgotten as well
	require.NoError(t, ix.EnsureCollection(ctx, 3))
}

func TestIndex_Scan(t *testing.T) {
	ix := newTestStores(t).Index
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, ix.Upsert(ctx, entry("https://d/a", i, 1, float32(i))))
	}

	var sizes []int
	seen := map[core.ID]bool{}
	err := ix.Scan(ctx, 2, func(batch []*core.IndexEntry) error {
		sizes = append(sizes, len(batch))
		for _, e := range batch {
			seen[e.ID] = true
			// writing while scanning must not conflict
			if err := ix.Upsert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Len(t, seen, 5)

	stop := errors.New("stop")
	err = ix.Scan(ctx, 2, func([]*core.IndexEntry) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestIndex_ClosedBackendIsUnavailable(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, stores.Close())

	_, err = stores.Index.Search(ctx, []float32{1}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)

	var ierr *core.IndexUnavailableError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "search", ierr.Op)
}
