package store

import (
	"context"
	"sync"

	"github.com/coder/hnsw"

	"github.com/localrag/localrag/internal/errors"
)

// HNSWVectorIndex is an approximate nearest-neighbor backend built on
// coder/hnsw. Trades exact recall for sublinear search on large
// corpora; enable via store.vector_backend: hnsw.
type HNSWVectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dims    int
	closed  bool
}

var _ VectorIndex = (*HNSWVectorIndex)(nil)

// NewHNSWVectorIndex creates an empty HNSW index with cosine distance.
func NewHNSWVectorIndex() *HNSWVectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &HNSWVectorIndex{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts or replaces vectors. Replacement uses lazy deletion:
// the old graph node stays but its key mapping is dropped, so it can
// never surface in results. coder/hnsw misbehaves when the last node
// is removed, hence no true deletes.
func (h *HNSWVectorIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return errors.Newf(errors.ErrCodeInvalidInput,
			"got %d ids for %d vectors", len(ids), len(vectors))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "vector index is closed")
	}
	for i, id := range ids {
		vec := vectors[i]
		if h.dims == 0 {
			h.dims = len(vec)
		} else if len(vec) != h.dims {
			return errors.Newf(errors.ErrCodeInvalidInput,
				"vector %q has dimension %d, index expects %d", id, len(vec), h.dims)
		}

		if oldKey, exists := h.idMap[id]; exists {
			delete(h.keyMap, oldKey)
		}
		key := h.nextKey
		h.nextKey++
		h.graph.Add(hnsw.MakeNode(key, vec))
		h.idMap[id] = key
		h.keyMap[key] = id
	}
	return nil
}

// Delete removes vectors by ID (lazy: mappings only).
func (h *HNSWVectorIndex) Delete(_ context.Context, ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "vector index is closed")
	}
	for _, id := range ids {
		if key, exists := h.idMap[id]; exists {
			delete(h.keyMap, key)
			delete(h.idMap, id)
		}
	}
	return nil
}

// Search returns up to k approximate nearest neighbors.
func (h *HNSWVectorIndex) Search(_ context.Context, query []float32, k int) ([]VectorHit, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, errors.Newf(errors.ErrCodeStoreFailure, "vector index is closed")
	}
	if len(h.idMap) == 0 || k <= 0 {
		return []VectorHit{}, nil
	}
	if h.dims != 0 && len(query) != h.dims {
		return nil, errors.Newf(errors.ErrCodeInvalidInput,
			"query has dimension %d, index expects %d", len(query), h.dims)
	}

	// Over-fetch to compensate for lazily deleted nodes in the graph.
	fetch := k + (h.graph.Len() - len(h.idMap))
	nodes := h.graph.Search(query, fetch)

	hits := make([]VectorHit, 0, k)
	for _, node := range nodes {
		id, ok := h.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		path, index, err := ParseChunkID(id)
		if err != nil {
			continue
		}
		hits = append(hits, VectorHit{
			Path:       path,
			Index:      index,
			Similarity: cosineSimilarity(query, node.Value),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Count returns the number of live vectors.
func (h *HNSWVectorIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idMap)
}

// Close releases the graph.
func (h *HNSWVectorIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.graph = nil
	h.idMap = nil
	h.keyMap = nil
	return nil
}
