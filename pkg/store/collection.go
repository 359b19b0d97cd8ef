package store

import (
	"context"
	"fmt"
	"math"
)

// Record is one entry of a collection.
type Record struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// Hit is a query match. Distance is the cosine distance to the query, so
// smaller is more similar.
type Hit struct {
	ID       string
	Content  string
	Metadata map[string]any
	Distance float64
}

// Collection is a named set of embedded records. Upsert is last-write-wins
// by id. Query returns hits in non-decreasing distance order; where is an
// equality filter over metadata keys.
type Collection interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, embedding []float32, where map[string]any, limit int) ([]Hit, error)
	Get(ctx context.Context, ids []string) ([]Record, error)
	IDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context, where map[string]any) (int, error)
	Clear(ctx context.Context) error
	Close()
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// matches reports whether metadata satisfies every key of where. Values are
// compared by their printed form so that 1, int64(1) and float64(1) agree.
func matches(metadata, where map[string]any) bool {
	for key, want := range where {
		got, ok := metadata[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
