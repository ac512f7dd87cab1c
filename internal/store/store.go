package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/localrag/localrag/internal/errors"
)

// Options configures a Store.
type Options struct {
	// Dir is the corpus data directory. Empty means fully in-memory,
	// used by tests; no corpus lock is taken then.
	Dir string
	// LexicalBackend is "fts5" (default) or "bleve".
	LexicalBackend string
	// VectorBackend is "exact" (default) or "hnsw".
	VectorBackend string
	// EmbeddingModel is recorded in corpus metadata. Opening an existing
	// corpus with a different model fails, since its vectors would be
	// incompatible.
	EmbeddingModel string
}

// Store is the per-corpus persistence facade. It owns the SQLite
// database plus the derived vector and lexical indexes, and serializes
// writes so a reader can never observe a document half-replaced.
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	vector  VectorIndex
	lexical LexicalIndex
	lock    *corpusLock
	closed  bool
}

// Open opens or creates the corpus store described by opts.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var lock *corpusLock
	dbPath := ":memory:"
	if opts.Dir != "" {
		var err error
		lock, err = acquireCorpusLock(opts.Dir)
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(opts.Dir, "index.db")
	}

	db, err := openDB(dbPath)
	if err != nil {
		if lock != nil {
			_ = lock.release()
		}
		return nil, err
	}

	s := &Store{db: db, lock: lock}
	cleanup := func() {
		_ = db.Close()
		if lock != nil {
			_ = lock.release()
		}
	}

	if err := s.checkModel(opts.EmbeddingModel); err != nil {
		cleanup()
		return nil, err
	}

	switch opts.LexicalBackend {
	case "bleve":
		blevePath := ""
		if opts.Dir != "" {
			blevePath = filepath.Join(opts.Dir, "bleve")
		}
		s.lexical, err = NewBleveLexicalIndex(blevePath)
		if err != nil {
			cleanup()
			return nil, err
		}
	default:
		s.lexical = NewFTS5LexicalIndex(db)
	}

	switch opts.VectorBackend {
	case "hnsw":
		s.vector = NewHNSWVectorIndex()
	default:
		s.vector = NewExactVectorIndex()
	}

	if err := s.loadVectors(ctx); err != nil {
		_ = s.lexical.Close()
		_ = s.vector.Close()
		cleanup()
		return nil, err
	}
	return s, nil
}

// checkModel records the embedding model on first open and rejects
// later opens with a different model.
func (s *Store) checkModel(model string) error {
	if model == "" {
		return nil
	}
	existing, err := getMeta(s.db, "embedding_model")
	if err != nil {
		return err
	}
	if existing == "" {
		return setMeta(s.db, "embedding_model", model)
	}
	if existing != model {
		return errors.Newf(errors.ErrCodeStoreFailure,
			"corpus was indexed with model %q but %q is configured; delete the corpus directory to reindex",
			existing, model)
	}
	return nil
}

// loadVectors rebuilds the in-memory vector index from stored chunks.
func (s *Store) loadVectors(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT path, chunk_index, embedding FROM chunks`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	defer rows.Close()

	var ids []string
	var vecs [][]float32
	for rows.Next() {
		var path string
		var index int
		var blob []byte
		if err := rows.Scan(&path, &index, &blob); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailure,
				fmt.Errorf("chunk %s#%d: %w", path, index, err))
		}
		ids = append(ids, ChunkID(path, index))
		vecs = append(vecs, vec)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	if len(ids) == 0 {
		return nil
	}
	return s.vector.Add(ctx, ids, vecs)
}

// ReplaceDocument atomically replaces a document and all of its chunks.
// The previous chunk set is removed entirely, so shrinking documents
// leave no stale tail chunks behind.
func (s *Store) ReplaceDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "store is closed")
	}

	oldIDs, err := s.chunkIDsLocked(ctx, doc.Path)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, doc.Path); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (path, content_hash, content, size, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Path, doc.ContentHash, doc.Content, doc.Size, len(chunks), doc.IndexedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (path, chunk_index, content, embedding)
			VALUES (?, ?, ?, ?)`,
			c.Path, c.Index, c.Content, encodeVector(c.Embedding),
		); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
	}
	// A lexical backend living in the same database joins the
	// transaction, so a crash cannot commit new chunk rows while the
	// old FTS rows survive. An external backend (bleve) is updated
	// after commit, still under the write lock.
	txLex, joined := s.lexical.(txLexicalIndex)
	if joined {
		if err := txLex.DeletePathTx(ctx, tx, doc.Path); err != nil {
			return err
		}
		if err := txLex.IndexTx(ctx, tx, chunks); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}

	if !joined {
		if err := s.lexical.DeletePath(ctx, doc.Path); err != nil {
			return err
		}
		if err := s.lexical.Index(ctx, chunks); err != nil {
			return err
		}
	}
	if err := s.vector.Delete(ctx, oldIDs); err != nil {
		return err
	}
	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = ChunkID(c.Path, c.Index)
		vecs[i] = c.Embedding
	}
	return s.vector.Add(ctx, ids, vecs)
}

// DeleteDocument removes a document and its chunks. Deleting a path
// that was never indexed is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "store is closed")
	}

	oldIDs, err := s.chunkIDsLocked(ctx, path)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	txLex, joined := s.lexical.(txLexicalIndex)
	if joined {
		if err := txLex.DeletePathTx(ctx, tx, path); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}

	if !joined {
		if err := s.lexical.DeletePath(ctx, path); err != nil {
			return err
		}
	}
	return s.vector.Delete(ctx, oldIDs)
}

// chunkIDsLocked lists the stored chunk IDs for a path. Caller holds mu.
func (s *Store) chunkIDsLocked(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index FROM chunks WHERE path = ?`, path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var index int
		if err := rows.Scan(&index); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
		ids = append(ids, ChunkID(path, index))
	}
	return ids, rows.Err()
}

// Document returns one document's metadata.
func (s *Store) Document(ctx context.Context, path string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := Document{Path: path}
	var indexedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT content_hash, content, size, chunk_count, indexed_at
		FROM documents WHERE path = ?`, path,
	).Scan(&doc.ContentHash, &doc.Content, &doc.Size, &doc.ChunkCount, &indexedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("document " + path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	doc.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexedAt)
	return &doc, nil
}

// DocumentHash returns the stored content hash for path, with ok=false
// when the document is not indexed. Drives change-detection dedup.
func (s *Store) DocumentHash(ctx context.Context, path string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM documents WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return hash, true, nil
}

// ListDocuments returns documents whose path starts with prefix,
// ordered by path. An empty prefix lists everything.
func (s *Store) ListDocuments(ctx context.Context, prefix string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// substr comparison instead of LIKE, so prefix metacharacters need
	// no escaping.
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, content_hash, size, chunk_count, indexed_at
		FROM documents
		WHERE substr(path, 1, length(?1)) = ?1
		ORDER BY path`, prefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var indexedAt string
		if err := rows.Scan(&doc.Path, &doc.ContentHash, &doc.Size, &doc.ChunkCount, &indexedAt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
		doc.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexedAt)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Chunk returns one chunk with content but without its embedding.
func (s *Store) Chunk(ctx context.Context, path string, index int) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Chunk{Path: path, Index: index}
	err := s.db.QueryRowContext(ctx, `
		SELECT content FROM chunks WHERE path = ? AND chunk_index = ?`,
		path, index,
	).Scan(&c.Content)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrCodeChunkNotFound,
			"chunk %s#%d not found", path, index)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return &c, nil
}

// Chunks returns all chunks of a document in index order, without
// embeddings.
func (s *Store) Chunks(ctx context.Context, path string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, content FROM chunks
		WHERE path = ? ORDER BY chunk_index`, path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c := Chunk{Path: path}
		if err := rows.Scan(&c.Index, &c.Content); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchVector returns the k chunks nearest to the query embedding.
func (s *Store) SearchVector(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vector.Search(ctx, query, k)
}

// SearchLexical returns the k best full-text matches for the query.
func (s *Store) SearchLexical(ctx context.Context, query string, k int) ([]LexicalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lexical.Search(ctx, query, k)
}

// Counts returns the number of documents and chunks.
func (s *Store) Counts(ctx context.Context) (docs, chunks int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&docs); err != nil {
		return 0, 0, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return docs, chunks, nil
}

// Close closes the indexes, the database, and releases the corpus lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.lexical.Close(); err != nil {
		firstErr = err
	}
	if err := s.vector.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.lock != nil {
		if err := s.lock.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
