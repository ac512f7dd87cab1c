// Package search serves queries over an indexed corpus: hybrid,
// vector-only, and full-text, plus file and chunk lookups.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/localrag/localrag/internal/embed"
	"github.com/localrag/localrag/internal/errors"
	"github.com/localrag/localrag/internal/store"
)

const (
	// DefaultVectorWeight scales semantic similarity in the hybrid score.
	DefaultVectorWeight = 0.7
	// DefaultTextWeight scales lexical rank in the hybrid score.
	DefaultTextWeight = 0.3
	// DefaultLimit is the result count when the caller does not set one.
	DefaultLimit = 10

	// candidateFloor is the minimum number of candidates fetched from
	// each index before merging, so offset paging and the union of two
	// hit lists stay stable even for small limits.
	candidateFloor = 50
)

// Result is one scored chunk.
type Result struct {
	// Path is the watch-root-relative file path.
	Path string `json:"path"`
	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int `json:"chunkIndex"`
	// Score is the rank value results are sorted by. For hybrid search
	// it combines both components; for the single-mode searches it is
	// that mode's score.
	Score float64 `json:"score"`
	// VectorSimilarity is the semantic component (0 when not computed).
	VectorSimilarity float64 `json:"vectorSimilarity,omitempty"`
	// LexicalRank is the full-text component (0 when not computed).
	LexicalRank float64 `json:"lexicalRank,omitempty"`
	// Content is the chunk text.
	Content string `json:"content"`
}

// Options configures an Engine.
type Options struct {
	VectorWeight float64
	TextWeight   float64
	Logger       *slog.Logger
}

// Engine answers queries against one corpus.
type Engine struct {
	store        *store.Store
	embedder     embed.Embedder
	vectorWeight float64
	textWeight   float64
	logger       *slog.Logger
}

// New creates a search engine. Zero weights fall back to the defaults;
// an explicit zero weight is expressed by setting the other to 1.
func New(s *store.Store, e embed.Embedder, opts Options) *Engine {
	if opts.VectorWeight == 0 && opts.TextWeight == 0 {
		opts.VectorWeight = DefaultVectorWeight
		opts.TextWeight = DefaultTextWeight
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		store:        s,
		embedder:     e,
		vectorWeight: opts.VectorWeight,
		textWeight:   opts.TextWeight,
		logger:       opts.Logger,
	}
}

// Weights returns the configured hybrid weights, for callers that
// override only one of them.
func (e *Engine) Weights() (vectorWeight, textWeight float64) {
	return e.vectorWeight, e.textWeight
}

// Hybrid runs semantic and full-text search and merges them into one
// ranking: score = vectorWeight*similarity + textWeight*lexicalRank.
// A chunk found by only one index contributes 0 for the other
// component. Ties break by ascending path, then chunk index.
func (e *Engine) Hybrid(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	return e.HybridWith(ctx, query, e.vectorWeight, e.textWeight, limit, offset)
}

// HybridWith is Hybrid with explicit per-call weights, for callers that
// override the configured defaults.
func (e *Engine) HybridWith(ctx context.Context, query string, vectorWeight, textWeight float64, limit, offset int) ([]Result, error) {
	if vectorWeight < 0 || textWeight < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput,
			"weights must be non-negative, got vector=%v text=%v", vectorWeight, textWeight)
	}
	limit, offset, err := normalizePage(query, limit, offset)
	if err != nil {
		return nil, err
	}
	fetch := candidateCount(limit, offset)

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	vecHits, err := e.store.SearchVector(ctx, queryVec, fetch)
	if err != nil {
		return nil, err
	}
	lexHits, err := e.store.SearchLexical(ctx, query, fetch)
	if err != nil {
		return nil, err
	}

	results := mergeHits(vecHits, lexHits, vectorWeight, textWeight)
	e.logger.Debug("hybrid search merged",
		"vector_hits", len(vecHits), "lexical_hits", len(lexHits), "merged", len(results))
	return e.fillContent(ctx, page(results, limit, offset))
}

// mergeHits unions vector and lexical hits into one sorted ranking.
// A chunk appearing in only one list scores 0 for the other component.
func mergeHits(vecHits []store.VectorHit, lexHits []store.LexicalHit, vectorWeight, textWeight float64) []Result {
	merged := make(map[string]*Result)
	for _, h := range vecHits {
		id := store.ChunkID(h.Path, h.Index)
		merged[id] = &Result{Path: h.Path, ChunkIndex: h.Index, VectorSimilarity: h.Similarity}
	}
	for _, h := range lexHits {
		id := store.ChunkID(h.Path, h.Index)
		r, ok := merged[id]
		if !ok {
			r = &Result{Path: h.Path, ChunkIndex: h.Index}
			merged[id] = r
		}
		r.LexicalRank = h.Rank
	}

	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		r.Score = vectorWeight*r.VectorSimilarity + textWeight*r.LexicalRank
		results = append(results, *r)
	}
	sortResults(results)
	return results
}

// Vector runs semantic-only search.
func (e *Engine) Vector(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	limit, offset, err := normalizePage(query, limit, offset)
	if err != nil {
		return nil, err
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.SearchVector(ctx, queryVec, candidateCount(limit, offset))
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Path:             h.Path,
			ChunkIndex:       h.Index,
			Score:            h.Similarity,
			VectorSimilarity: h.Similarity,
		}
	}
	sortResults(results)
	return e.fillContent(ctx, page(results, limit, offset))
}

// Text runs full-text-only search.
func (e *Engine) Text(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	limit, offset, err := normalizePage(query, limit, offset)
	if err != nil {
		return nil, err
	}

	hits, err := e.store.SearchLexical(ctx, query, candidateCount(limit, offset))
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Path:        h.Path,
			ChunkIndex:  h.Index,
			Score:       h.Rank,
			LexicalRank: h.Rank,
		}
	}
	sortResults(results)
	return e.fillContent(ctx, page(results, limit, offset))
}

// ListFiles returns indexed documents whose path starts with prefix,
// ordered by path. Empty prefix lists the whole corpus.
func (e *Engine) ListFiles(ctx context.Context, prefix string) ([]store.Document, error) {
	return e.store.ListDocuments(ctx, prefix)
}

// GetFile returns one document's metadata and its chunks in order.
func (e *Engine) GetFile(ctx context.Context, path string) (*store.Document, []store.Chunk, error) {
	if path == "" {
		return nil, nil, errors.Newf(errors.ErrCodeInvalidInput, "path must not be empty")
	}
	doc, err := e.store.Document(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := e.store.Chunks(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return doc, chunks, nil
}

// GetChunk returns one chunk.
func (e *Engine) GetChunk(ctx context.Context, path string, index int) (*store.Chunk, error) {
	if path == "" {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "path must not be empty")
	}
	if index < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "chunk index must be non-negative, got %d", index)
	}
	return e.store.Chunk(ctx, path, index)
}

// normalizePage validates the query and applies paging defaults.
func normalizePage(query string, limit, offset int) (int, int, error) {
	if strings.TrimSpace(query) == "" {
		return 0, 0, errors.Newf(errors.ErrCodeInvalidInput, "query must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		return 0, 0, errors.Newf(errors.ErrCodeInvalidInput, "offset must be non-negative, got %d", offset)
	}
	return limit, offset, nil
}

func candidateCount(limit, offset int) int {
	n := limit + offset
	if n < candidateFloor {
		return candidateFloor
	}
	return n
}

// sortResults orders by score descending, then path and chunk index
// ascending so equal scores rank deterministically.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
}

// page applies offset and limit after sorting.
func page(results []Result, limit, offset int) []Result {
	if offset >= len(results) {
		return []Result{}
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// fillContent loads chunk text for the final page only.
func (e *Engine) fillContent(ctx context.Context, results []Result) ([]Result, error) {
	for i := range results {
		c, err := e.store.Chunk(ctx, results[i].Path, results[i].ChunkIndex)
		if err != nil {
			if errors.IsNotFound(err) {
				// Chunk replaced between search and fetch; serve the
				// hit without content rather than failing the query.
				continue
			}
			return nil, err
		}
		results[i].Content = c.Content
	}
	return results, nil
}
