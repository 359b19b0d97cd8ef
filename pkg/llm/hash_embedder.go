package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic bag-of-words embedder. Each lower-cased
// word is hashed into one of Dimension buckets and the vector is
// L2-normalized, so texts sharing words are close in cosine distance. It
// needs no model server and is used for offline runs and tests.
type HashEmbedder struct {
	Dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{Dimension: dimension}
}

func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.Dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.Dimension)]++
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
