package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/localrag/localrag/internal/errors"
)

// FTS5LexicalIndex implements LexicalIndex on the corpus database's
// chunk_fts virtual table. The default lexical backend.
type FTS5LexicalIndex struct {
	mu sync.RWMutex
	db *sql.DB
}

var (
	_ LexicalIndex   = (*FTS5LexicalIndex)(nil)
	_ txLexicalIndex = (*FTS5LexicalIndex)(nil)
)

// NewFTS5LexicalIndex wraps the corpus database. The chunk_fts table is
// created by the store schema.
func NewFTS5LexicalIndex(db *sql.DB) *FTS5LexicalIndex {
	return &FTS5LexicalIndex{db: db}
}

// Index adds or replaces chunk text. FTS5 virtual tables have no
// REPLACE, so existing rows are deleted first.
func (f *FTS5LexicalIndex) Index(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := f.IndexTx(ctx, tx, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return nil
}

// IndexTx adds or replaces chunk text inside the caller's transaction,
// so the FTS rows commit or roll back together with the chunk rows.
func (f *FTS5LexicalIndex) IndexTx(ctx context.Context, tx *sql.Tx, chunks []Chunk) error {
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunk_fts WHERE path = ? AND chunk_index = ?`,
			c.Path, c.Index); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_fts (path, chunk_index, content) VALUES (?, ?, ?)`,
			c.Path, c.Index, c.Content); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
	}
	return nil
}

// DeletePath removes every chunk of a document.
func (f *FTS5LexicalIndex) DeletePath(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.db.ExecContext(ctx,
		`DELETE FROM chunk_fts WHERE path = ?`, path); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return nil
}

// DeletePathTx removes every chunk of a document inside the caller's
// transaction.
func (f *FTS5LexicalIndex) DeletePathTx(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_fts WHERE path = ?`, path); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return nil
}

// Search ranks chunks with FTS5's bm25(). FTS5 returns negative scores
// where lower is better; the result is negated and clamped so Rank is
// non-negative with higher meaning better.
func (f *FTS5LexicalIndex) Search(ctx context.Context, query string, k int) ([]LexicalHit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return []LexicalHit{}, nil
	}

	rows, err := f.db.QueryContext(ctx, `
		SELECT path, chunk_index, bm25(chunk_fts) AS score
		FROM chunk_fts
		WHERE content MATCH ?
		ORDER BY score
		LIMIT ?
	`, matchExpr(query), k)
	if err != nil {
		// FTS5 rejects queries it cannot parse; treat as no matches.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []LexicalHit{}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, fmt.Errorf("fts search: %w", err))
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var hit LexicalHit
		var score float64
		if err := rows.Scan(&hit.Path, &hit.Index, &score); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
		hit.Rank = -score
		if hit.Rank < 0 {
			hit.Rank = 0
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return hits, nil
}

// Close is a no-op; the store owns the database handle.
func (f *FTS5LexicalIndex) Close() error { return nil }

// matchExpr quotes each query term so FTS5 operators in user input
// (AND, OR, *, ") cannot break the MATCH expression.
func matchExpr(query string) string {
	fields := strings.Fields(query)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
