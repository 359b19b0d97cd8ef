package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/courserag/pkg/store"
)

func TestMemoryCollection_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCollection("test", 2)

	err := c.Upsert(ctx, []store.Record{
		{ID: "a", Content: "east", Metadata: map[string]any{"course_title": "X", "lesson_number": 1}, Embedding: []float32{1, 0}},
		{ID: "b", Content: "north", Metadata: map[string]any{"course_title": "X", "lesson_number": 2}, Embedding: []float32{0, 1}},
		{ID: "c", Content: "north-east", Metadata: map[string]any{"course_title": "Y"}, Embedding: []float32{1, 1}},
	})
	require.NoError(t, err)

	hits, err := c.Query(ctx, []float32{1, 0.1}, nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}

	hits, err = c.Query(ctx, []float32{1, 0}, map[string]any{"course_title": "X", "lesson_number": 2}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	hits, err = c.Query(ctx, []float32{1, 0}, map[string]any{"lesson_number": float64(1)}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)

	hits, err = c.Query(ctx, []float32{1, 0}, nil, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemoryCollection_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCollection("test", 2)

	require.NoError(t, c.Upsert(ctx, []store.Record{{ID: "a", Content: "old", Embedding: []float32{1, 0}}}))
	require.NoError(t, c.Upsert(ctx, []store.Record{{ID: "a", Content: "new", Embedding: []float32{0, 1}}}))

	records, err := c.Get(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].Content)

	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryCollection_Validation(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCollection("test", 3)

	assert.Error(t, c.Upsert(ctx, []store.Record{{ID: "", Embedding: []float32{1, 2, 3}}}))
	assert.Error(t, c.Upsert(ctx, []store.Record{
		{ID: "ok", Embedding: []float32{1, 2, 3}},
		{ID: "short", Embedding: []float32{1}},
	}))

	n, err := c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n, "a failed batch stores nothing")
}

func TestMemoryCollection_IDsCountClear(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCollection("test", 1)

	require.NoError(t, c.Upsert(ctx, []store.Record{
		{ID: "b", Metadata: map[string]any{"k": "v"}, Embedding: []float32{1}},
		{ID: "a", Metadata: map[string]any{"k": "w"}, Embedding: []float32{1}},
	}))

	ids, err := c.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	n, err := c.Count(ctx, map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Clear(ctx))
	ids, err = c.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryCollection_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCollection("test", 2)
	require.NoError(t, c.Upsert(ctx, []store.Record{{ID: "a", Embedding: []float32{1, 0}}}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := c.Query(ctx, []float32{1, 0}, nil, 5)
			assert.NoError(t, err)
			assert.Len(t, hits, 1)
		}()
	}
	wg.Wait()
}
