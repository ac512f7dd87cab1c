package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"hash/fnv"
	"strings"
	"unicode"
)

// StaticEmbedder produces deterministic embeddings without any model.
// Each token is hashed into a stable pseudo-random direction and the
// token directions are summed, so texts sharing vocabulary land near
// each other. Quality is far below a real model; it exists for offline
// operation and for tests that need stable vectors.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with StaticDimensions.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: StaticDimensions}
}

// Embed generates a deterministic embedding for text.
func (s *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)
	for _, token := range tokenize(text) {
		addTokenDirection(vec, token)
	}
	return normalizeVector(vec), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (s *StaticEmbedder) Dimensions() int                { return s.dims }
func (s *StaticEmbedder) ModelName() string              { return "static" }
func (s *StaticEmbedder) Available(context.Context) bool { return true }
func (s *StaticEmbedder) Close() error                   { return nil }

// addTokenDirection accumulates a stable pseudo-random unit direction
// for the token into vec. SHA-256 of the token seeds the direction so
// the same token always contributes the same components.
func addTokenDirection(vec []float32, token string) {
	seed := sha256.Sum256([]byte(token))
	h := fnv.New64a()
	for i := range vec {
		h.Reset()
		_, _ = h.Write(seed[:])
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], uint32(i))
		_, _ = h.Write(idx[:])
		// Map the 64-bit hash into [-1, 1).
		vec[i] += float32(int64(h.Sum64())) / float32(1<<63)
	}
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
