package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrag/localrag/internal/embed"
	"github.com/localrag/localrag/internal/search"
	"github.com/localrag/localrag/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store, embed.Embedder) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	embedder := embed.NewStaticEmbedder()
	engine := search.New(s, embedder, search.Options{})
	return New(engine, nil), s, embedder
}

func indexDoc(t *testing.T, s *store.Store, embedder embed.Embedder, path string, contents ...string) {
	t.Helper()
	ctx := context.Background()
	chunks := make([]store.Chunk, len(contents))
	var size int64
	for i, content := range contents {
		vec, err := embedder.Embed(ctx, content)
		require.NoError(t, err)
		chunks[i] = store.Chunk{Path: path, Index: i, Content: content, Embedding: vec}
		size += int64(len(content))
	}
	doc := store.Document{
		Path:        path,
		ContentHash: "h-" + path,
		Content:     strings.Join(contents, " "),
		Size:        size,
		IndexedAt:   time.Now(),
	}
	require.NoError(t, s.ReplaceDocument(ctx, doc, chunks))
}

func TestSearchHybridHandler(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "brokers.md", "kafka partitions and consumer groups")
	indexDoc(t, s, embedder, "dinner.md", "roast chicken with thyme")

	_, output, err := srv.handleSearchHybrid(context.Background(), nil, HybridSearchInput{Query: "consumer groups"})
	require.NoError(t, err)
	require.NotEmpty(t, output.Results)
	assert.Equal(t, "brokers.md", output.Results[0].Path)
	assert.NotEmpty(t, output.Results[0].Content)
	assert.Greater(t, output.Results[0].Score, 0.0)
}

func TestSearchHandlers_EmptyQueryRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.handleSearchHybrid(ctx, nil, HybridSearchInput{})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.handleSearchVector(ctx, nil, SearchInput{})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.handleSearchText(ctx, nil, SearchInput{})
	requireMCPCode(t, err, ErrCodeInvalidParams)
}

func TestSearchVectorHandler_OmitsLexicalRank(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "a.md", "alpha beta gamma")

	_, output, err := srv.handleSearchVector(context.Background(), nil, SearchInput{Query: "alpha"})
	require.NoError(t, err)
	require.NotEmpty(t, output.Results)
	assert.Zero(t, output.Results[0].LexicalRank)
}

func TestSearchTextHandler_RespectsLimit(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "one.md", "shared token here")
	indexDoc(t, s, embedder, "two.md", "shared token there")

	_, output, err := srv.handleSearchText(context.Background(), nil, SearchInput{Query: "shared", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, output.Results, 1)
}

func TestSearchHybridHandler_WeightOverride(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "notes.md", "the zanzibar authorization model")

	// All weight on the vector component: the score equals the
	// similarity, with no lexical contribution.
	vw, tw := 1.0, 0.0
	_, output, err := srv.handleSearchHybrid(context.Background(), nil, HybridSearchInput{
		Query:        "zanzibar",
		VectorWeight: &vw,
		TextWeight:   &tw,
	})
	require.NoError(t, err)
	require.NotEmpty(t, output.Results)
	assert.InDelta(t, output.Results[0].VectorSimilarity, output.Results[0].Score, 1e-9)
}

func TestSearchHybridHandler_PartialWeightKeepsOtherDefault(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "notes.md", "the zanzibar authorization model")

	// Only the vector weight is overridden; the text weight keeps its
	// configured default instead of collapsing to zero.
	vw := 1.0
	_, output, err := srv.handleSearchHybrid(context.Background(), nil, HybridSearchInput{
		Query:        "zanzibar",
		VectorWeight: &vw,
	})
	require.NoError(t, err)
	require.NotEmpty(t, output.Results)

	r := output.Results[0]
	assert.Greater(t, r.LexicalRank, 0.0)
	assert.InDelta(t, vw*r.VectorSimilarity+search.DefaultTextWeight*r.LexicalRank, r.Score, 1e-9)
}

func TestListFilesHandler(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "z.md", "zzz")
	indexDoc(t, s, embedder, "a.md", "aaa")

	_, output, err := srv.handleListFiles(context.Background(), nil, ListFilesInput{})
	require.NoError(t, err)
	require.Len(t, output.Files, 2)
	assert.Equal(t, "a.md", output.Files[0].Path)
	assert.Equal(t, 1, output.Files[0].ChunkCount)
	assert.NotEmpty(t, output.Files[0].IndexedAt)
}

func TestListFilesHandler_PrefixFilter(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "docs/guide.md", "guide")
	indexDoc(t, s, embedder, "src/main.go", "package main")

	_, output, err := srv.handleListFiles(context.Background(), nil, ListFilesInput{Path: "docs/"})
	require.NoError(t, err)
	require.Len(t, output.Files, 1)
	assert.Equal(t, "docs/guide.md", output.Files[0].Path)
}

func TestGetFileHandler(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "multi.md", "first chunk", "second chunk")

	_, output, err := srv.handleGetFile(context.Background(), nil, GetFileInput{Path: "multi.md"})
	require.NoError(t, err)
	assert.Equal(t, "multi.md", output.File.Path)
	assert.Equal(t, "first chunk second chunk", output.Content)
	require.Len(t, output.Chunks, 2)
	assert.Equal(t, "first chunk", output.Chunks[0].Content)
	assert.Equal(t, 1, output.Chunks[1].Index)
}

func TestGetFileHandler_SingleChunk(t *testing.T) {
	srv, s, embedder := newTestServer(t)
	indexDoc(t, s, embedder, "multi.md", "first chunk", "second chunk")

	idx := 1
	_, output, err := srv.handleGetFile(context.Background(), nil, GetFileInput{Path: "multi.md", ChunkIndex: &idx})
	require.NoError(t, err)
	require.Len(t, output.Chunks, 1)
	assert.Equal(t, "second chunk", output.Chunks[0].Content)

	missing := 9
	_, _, err = srv.handleGetFile(context.Background(), nil, GetFileInput{Path: "multi.md", ChunkIndex: &missing})
	requireMCPCode(t, err, ErrCodeFileNotFound)
}

func TestGetFileHandler_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	_, _, err := srv.handleGetFile(context.Background(), nil, GetFileInput{Path: "missing.md"})
	requireMCPCode(t, err, ErrCodeFileNotFound)

	_, _, err = srv.handleGetFile(context.Background(), nil, GetFileInput{})
	requireMCPCode(t, err, ErrCodeInvalidParams)
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}
