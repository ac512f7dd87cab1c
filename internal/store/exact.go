package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/localrag/localrag/internal/errors"
)

// ExactVectorIndex scores every stored vector against the query.
// Exact cosine ranking over in-memory vectors; the default backend,
// fast enough well past 100k chunks.
type ExactVectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	dims    int
	closed  bool
}

var _ VectorIndex = (*ExactVectorIndex)(nil)

// NewExactVectorIndex creates an empty exact-scan index.
func NewExactVectorIndex() *ExactVectorIndex {
	return &ExactVectorIndex{vectors: make(map[string][]float32)}
}

// Add inserts or replaces vectors.
func (x *ExactVectorIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return errors.Newf(errors.ErrCodeInvalidInput,
			"got %d ids for %d vectors", len(ids), len(vectors))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "vector index is closed")
	}
	for i, id := range ids {
		vec := vectors[i]
		if x.dims == 0 {
			x.dims = len(vec)
		} else if len(vec) != x.dims {
			return errors.Newf(errors.ErrCodeInvalidInput,
				"vector %q has dimension %d, index expects %d", id, len(vec), x.dims)
		}
		x.vectors[id] = vec
	}
	return nil
}

// Delete removes vectors by ID.
func (x *ExactVectorIndex) Delete(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "vector index is closed")
	}
	for _, id := range ids {
		delete(x.vectors, id)
	}
	return nil
}

// Search scans all vectors and returns the k most similar.
func (x *ExactVectorIndex) Search(_ context.Context, query []float32, k int) ([]VectorHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, errors.Newf(errors.ErrCodeStoreFailure, "vector index is closed")
	}
	if len(x.vectors) == 0 || k <= 0 {
		return []VectorHit{}, nil
	}
	if x.dims != 0 && len(query) != x.dims {
		return nil, errors.Newf(errors.ErrCodeInvalidInput,
			"query has dimension %d, index expects %d", len(query), x.dims)
	}

	hits := make([]VectorHit, 0, len(x.vectors))
	for id, vec := range x.vectors {
		path, index, err := ParseChunkID(id)
		if err != nil {
			continue
		}
		hits = append(hits, VectorHit{
			Path:       path,
			Index:      index,
			Similarity: cosineSimilarity(query, vec),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Path != hits[j].Path {
			return hits[i].Path < hits[j].Path
		}
		return hits[i].Index < hits[j].Index
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of indexed vectors.
func (x *ExactVectorIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Close releases the vector map.
func (x *ExactVectorIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.vectors = nil
	return nil
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
