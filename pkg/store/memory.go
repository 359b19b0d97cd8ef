package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryCollection is an in-process collection using brute-force cosine
// distance. Searches may run concurrently; writers are serialized.
type MemoryCollection struct {
	mu        sync.RWMutex
	name      string
	dimension int
	records   map[string]Record
}

func NewMemoryCollection(name string, dimension int) *MemoryCollection {
	return &MemoryCollection{
		name:      name,
		dimension: dimension,
		records:   make(map[string]Record),
	}
}

func (c *MemoryCollection) Upsert(ctx context.Context, records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return errors.New("record id is required")
		}
		if c.dimension > 0 && len(r.Embedding) != c.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, r := range records {
		c.records[r.ID] = copyRecord(r)
	}
	return nil
}

func (c *MemoryCollection) Query(ctx context.Context, embedding []float32, where map[string]any, limit int) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := make([]Hit, 0, len(c.records))
	for _, r := range c.records {
		if !matches(r.Metadata, where) {
			continue
		}
		hits = append(hits, Hit{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: copyMetadata(r.Metadata),
			Distance: cosineDistance(embedding, r.Embedding),
		})
	}

	// Ties are broken by id so results are stable across calls.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (c *MemoryCollection) Get(ctx context.Context, ids []string) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := c.records[id]; ok {
			records = append(records, copyRecord(r))
		}
	}
	return records, nil
}

func (c *MemoryCollection) IDs(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *MemoryCollection) Count(ctx context.Context, where map[string]any) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, r := range c.records {
		if matches(r.Metadata, where) {
			n++
		}
	}
	return n, nil
}

func (c *MemoryCollection) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]Record)
	return nil
}

func (c *MemoryCollection) Close() {}

func copyRecord(r Record) Record {
	embedding := make([]float32, len(r.Embedding))
	copy(embedding, r.Embedding)
	return Record{
		ID:        r.ID,
		Content:   r.Content,
		Metadata:  copyMetadata(r.Metadata),
		Embedding: embedding,
	}
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
