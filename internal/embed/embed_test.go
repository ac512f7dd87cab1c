package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	v1, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, StaticDimensions)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, _ := e.Embed(ctx, "the quick brown fox")
	b, _ := e.Embed(ctx, "the quick brown dog")
	c, _ := e.Embed(ctx, "unrelated spreadsheet formulas")

	assert.Greater(t, dot(a, b), dot(a, c))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestCachedEmbedder_AvoidsRecompute(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "repeated text")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "repeated text")
	require.NoError(t, err)

	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_BatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)
	inner.calls.Store(0)

	vecs, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, StaticDimensions)
	}
	// Only the two misses hit the inner embedder, in one batch call.
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, []string{"beta", "gamma"}, inner.lastBatch)
}

// countingEmbedder counts calls to the inner embedder.
type countingEmbedder struct {
	inner     Embedder
	calls     atomic.Int64
	lastBatch []string
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.lastBatch = texts
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *countingEmbedder) Available(ctx context.Context) bool { return true }
func (c *countingEmbedder) Close() error                       { return nil }

func TestOllamaEmbedder_Batch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Input.([]any)
		resp := ollamaEmbedResponse{Model: req.Model}
		for range inputs {
			resp.Embeddings = append(resp.Embeddings, []float64{3, 4})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Model:           "test-model",
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	// 3-4-5 triangle normalized to unit length.
	assert.InDelta(t, 0.6, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.8, vecs[0][1], 1e-6)
}

func TestOllamaEmbedder_RetriesTransientFailure(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusInternalServerError)
			return
		}
		resp := ollamaEmbedResponse{Embeddings: [][]float64{{1, 0}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		SkipHealthCheck: true,
		Retry:           RetryConfig{MaxRetries: 2, InitialDelay: 1, MaxDelay: 1, Multiplier: 2},
	})
	require.NoError(t, err)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, int64(2), hits.Load())
}

func TestOllamaEmbedder_Unavailable(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://127.0.0.1:1",
		SkipHealthCheck: true,
		Retry:           RetryConfig{MaxRetries: 0, InitialDelay: 1, MaxDelay: 1, Multiplier: 2},
	})
	require.NoError(t, err)
	defer e.Close()

	assert.False(t, e.Available(context.Background()))
	_, err = e.Embed(context.Background(), "no server")
	assert.Error(t, err)
}

func TestOllamaEmbedder_BatchTooLarge(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://127.0.0.1:1",
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	texts := make([]string, MaxBatchSize+1)
	_, err = e.EmbedBatch(context.Background(), texts)
	assert.Error(t, err)
}
