// Package store persists indexed documents and serves vector and
// lexical lookups over their chunks.
//
// Durable state lives in a per-corpus SQLite database. The vector and
// lexical indexes are separate components rebuilt or updated alongside
// it; the Store facade keeps them consistent under one lock.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Document is one indexed file.
type Document struct {
	// Path is the watch-root-relative file path, the document key.
	Path string
	// ContentHash is the hex SHA-256 digest of the raw file bytes.
	ContentHash string
	// Content is the extracted plain text the chunk set was derived from.
	Content string
	// Size is the file size in bytes at indexing time.
	Size int64
	// ChunkCount is the number of chunks the document was split into.
	ChunkCount int
	// IndexedAt is when the document was last (re)indexed.
	IndexedAt time.Time
}

// Chunk is one contiguous segment of a document's extracted text.
type Chunk struct {
	Path    string
	Index   int
	Content string
	// Embedding is the chunk's vector, unit-normalized.
	Embedding []float32
}

// ChunkID returns the stable identifier used by the vector and lexical
// indexes for one chunk. NUL separates path from index because NUL can
// never appear in a file path.
func ChunkID(path string, index int) string {
	return path + "\x00" + strconv.Itoa(index)
}

// ParseChunkID splits a chunk identifier back into path and index.
func ParseChunkID(id string) (path string, index int, err error) {
	i := strings.LastIndexByte(id, '\x00')
	if i < 0 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	index, err = strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	return id[:i], index, nil
}

// VectorHit is one nearest-neighbor match.
type VectorHit struct {
	Path  string
	Index int
	// Similarity is cosine similarity in [-1, 1]; higher is closer.
	Similarity float64
}

// LexicalHit is one full-text match.
type LexicalHit struct {
	Path  string
	Index int
	// Rank is a non-negative relevance score; higher is better.
	Rank float64
}

// VectorIndex finds chunks by embedding similarity.
type VectorIndex interface {
	// Add inserts or replaces vectors. Vectors must share one dimension.
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Delete removes vectors by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ids []string) error
	// Search returns up to k nearest chunks to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)
	// Count returns the number of indexed vectors.
	Count() int
	// Close releases resources.
	Close() error
}

// LexicalIndex finds chunks by full-text relevance.
type LexicalIndex interface {
	// Index adds or replaces chunk text.
	Index(ctx context.Context, chunks []Chunk) error
	// DeletePath removes every chunk of a document.
	DeletePath(ctx context.Context, path string) error
	// Search returns up to k best-ranked chunks for the query.
	Search(ctx context.Context, query string, k int) ([]LexicalHit, error)
	// Close releases resources.
	Close() error
}

// txLexicalIndex is implemented by lexical backends that live in the
// corpus database and can join the store's write transaction, so
// lexical rows commit or roll back together with the document rows.
type txLexicalIndex interface {
	// IndexTx adds or replaces chunk text inside tx.
	IndexTx(ctx context.Context, tx *sql.Tx, chunks []Chunk) error
	// DeletePathTx removes every chunk of a document inside tx.
	DeletePathTx(ctx context.Context, tx *sql.Tx, path string) error
}
