package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrag/localrag/internal/embed"
	"github.com/localrag/localrag/internal/errors"
	"github.com/localrag/localrag/internal/store"
)

func TestMergeHits_WeightedCombination(t *testing.T) {
	// doc-a is found only by vector search with similarity 0.9;
	// doc-b is found by both, with similarity 0.2 and lexical rank 5.
	vecHits := []store.VectorHit{
		{Path: "doc-a.txt", Index: 0, Similarity: 0.9},
		{Path: "doc-b.txt", Index: 0, Similarity: 0.2},
	}
	lexHits := []store.LexicalHit{
		{Path: "doc-b.txt", Index: 0, Rank: 5},
	}

	results := mergeHits(vecHits, lexHits, 0.7, 0.3)
	require.Len(t, results, 2)

	// 0.7*0.2 + 0.3*5 = 1.64 beats 0.7*0.9 + 0.3*0 = 0.63.
	assert.Equal(t, "doc-b.txt", results[0].Path)
	assert.InDelta(t, 1.64, results[0].Score, 1e-9)
	assert.Equal(t, "doc-a.txt", results[1].Path)
	assert.InDelta(t, 0.63, results[1].Score, 1e-9)
}

func TestMergeHits_TieBreaksByPathThenIndex(t *testing.T) {
	vecHits := []store.VectorHit{
		{Path: "b.txt", Index: 0, Similarity: 0.5},
		{Path: "a.txt", Index: 2, Similarity: 0.5},
		{Path: "a.txt", Index: 1, Similarity: 0.5},
	}
	results := mergeHits(vecHits, nil, 1, 0)
	require.Len(t, results, 3)
	assert.Equal(t, "a.txt", results[0].Path)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Equal(t, "a.txt", results[1].Path)
	assert.Equal(t, 2, results[1].ChunkIndex)
	assert.Equal(t, "b.txt", results[2].Path)
}

func TestMergeHits_ScoreMonotonicInVectorWeight(t *testing.T) {
	// For a chunk whose similarity exceeds its lexical rank, raising the
	// vector weight never lowers the score.
	vecHits := []store.VectorHit{{Path: "x", Index: 0, Similarity: 0.8}}
	lexHits := []store.LexicalHit{{Path: "x", Index: 0, Rank: 0.2}}

	prev := -1.0
	for _, vw := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		score := mergeHits(vecHits, lexHits, vw, 0.3)[0].Score
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
}

func TestMergeHits_HigherComponentNeverLowersScore(t *testing.T) {
	base := mergeHits([]store.VectorHit{{Path: "x", Index: 0, Similarity: 0.4}}, nil, 0.7, 0.3)
	boosted := mergeHits([]store.VectorHit{{Path: "x", Index: 0, Similarity: 0.4}},
		[]store.LexicalHit{{Path: "x", Index: 0, Rank: 0.1}}, 0.7, 0.3)
	assert.Greater(t, boosted[0].Score, base[0].Score)
}

func TestPage_OffsetAndLimit(t *testing.T) {
	results := []Result{{Path: "a"}, {Path: "b"}, {Path: "c"}, {Path: "d"}}

	assert.Len(t, page(results, 2, 0), 2)
	assert.Equal(t, "c", page(results, 2, 2)[0].Path)
	assert.Len(t, page(results, 10, 2), 2)
	assert.Empty(t, page(results, 5, 99))
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *store.Store, embed.Embedder) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	embedder := embed.NewStaticEmbedder()
	return New(s, embedder, opts), s, embedder
}

func indexDoc(t *testing.T, s *store.Store, embedder embed.Embedder, path string, contents ...string) {
	t.Helper()
	ctx := context.Background()
	chunks := make([]store.Chunk, len(contents))
	for i, content := range contents {
		vec, err := embedder.Embed(ctx, content)
		require.NoError(t, err)
		chunks[i] = store.Chunk{Path: path, Index: i, Content: content, Embedding: vec}
	}
	doc := store.Document{Path: path, ContentHash: "h-" + path, IndexedAt: time.Now()}
	require.NoError(t, s.ReplaceDocument(ctx, doc, chunks))
}

func TestEngine_HybridFindsLexicalAndSemanticMatches(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	ctx := context.Background()

	indexDoc(t, s, embedder, "kafka.md", "message broker partitions and consumer groups")
	indexDoc(t, s, embedder, "recipes.md", "slow cooked lamb with rosemary")

	results, err := engine.Hybrid(ctx, "consumer groups", 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "kafka.md", results[0].Path)
	assert.NotEmpty(t, results[0].Content)
	assert.Greater(t, results[0].LexicalRank, 0.0)
}

func TestEngine_VectorOnly(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	ctx := context.Background()

	indexDoc(t, s, embedder, "a.md", "alpha beta gamma")
	indexDoc(t, s, embedder, "b.md", "one two three")

	results, err := engine.Vector(ctx, "alpha beta", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.md", results[0].Path)
	assert.Zero(t, results[0].LexicalRank)
}

func TestEngine_TextOnly(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	ctx := context.Background()

	indexDoc(t, s, embedder, "notes.md", "the zanzibar authorization model")

	results, err := engine.Text(ctx, "zanzibar", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].VectorSimilarity)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestEngine_EmptyQueryRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	for _, query := range []string{"", "   "} {
		_, err := engine.Hybrid(ctx, query, 10, 0)
		require.Error(t, err)
		var coded *errors.Error
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, errors.ErrCodeInvalidInput, coded.Code)
	}
}

func TestEngine_NegativeOffsetRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, Options{})
	_, err := engine.Hybrid(context.Background(), "q", 10, -1)
	assert.Error(t, err)
}

func TestEngine_OffsetPastEndIsEmpty(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	indexDoc(t, s, embedder, "only.md", "single document")

	results, err := engine.Hybrid(context.Background(), "single", 10, 100)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_GetFile(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	ctx := context.Background()

	indexDoc(t, s, embedder, "multi.md", "first chunk", "second chunk")

	doc, chunks, err := engine.GetFile(ctx, "multi.md")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.ChunkCount)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first chunk", chunks[0].Content)
	assert.Equal(t, "second chunk", chunks[1].Content)

	_, _, err = engine.GetFile(ctx, "missing.md")
	assert.True(t, errors.IsNotFound(err))
}

func TestEngine_GetChunk(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	ctx := context.Background()

	indexDoc(t, s, embedder, "c.md", "only chunk")

	c, err := engine.GetChunk(ctx, "c.md", 0)
	require.NoError(t, err)
	assert.Equal(t, "only chunk", c.Content)

	_, err = engine.GetChunk(ctx, "c.md", 7)
	assert.True(t, errors.IsNotFound(err))

	_, err = engine.GetChunk(ctx, "c.md", -1)
	require.Error(t, err)
	assert.False(t, errors.IsNotFound(err))
}

func TestEngine_ListFiles(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	indexDoc(t, s, embedder, "z.md", "zzz")
	indexDoc(t, s, embedder, "a.md", "aaa")

	docs, err := engine.ListFiles(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].Path)
	assert.Equal(t, "z.md", docs[1].Path)
}

func TestEngine_ListFilesPrefix(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	indexDoc(t, s, embedder, "docs/a.md", "aaa")
	indexDoc(t, s, embedder, "docs/b.md", "bbb")
	indexDoc(t, s, embedder, "src/main.go", "package main")

	docs, err := engine.ListFiles(context.Background(), "docs/")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "docs/a.md", docs[0].Path)

	// Prefix metacharacters match literally, not as wildcards.
	docs, err = engine.ListFiles(context.Background(), "%")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEngine_WeightsExposeConfiguredDefaults(t *testing.T) {
	engine, _, _ := newTestEngine(t, Options{})
	vw, tw := engine.Weights()
	assert.Equal(t, DefaultVectorWeight, vw)
	assert.Equal(t, DefaultTextWeight, tw)

	engine, _, _ = newTestEngine(t, Options{VectorWeight: 0.9, TextWeight: 0.1})
	vw, tw = engine.Weights()
	assert.Equal(t, 0.9, vw)
	assert.Equal(t, 0.1, tw)
}

func TestEngine_HybridWithOverridesWeights(t *testing.T) {
	engine, s, embedder := newTestEngine(t, Options{})
	ctx := context.Background()

	indexDoc(t, s, embedder, "notes.md", "the zanzibar authorization model")

	// Text weight zero: a keyword-only match still appears via its
	// vector component, but carries no lexical contribution.
	results, err := engine.HybridWith(ctx, "zanzibar", 1, 0, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.InDelta(t, results[0].VectorSimilarity, results[0].Score, 1e-9)

	_, err = engine.HybridWith(ctx, "zanzibar", -0.5, 0.3, 10, 0)
	assert.Error(t, err)
}
