package store

import (
	"context"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	blevemapping "github.com/blevesearch/bleve/v2/mapping"

	"github.com/localrag/localrag/internal/errors"
)

// BleveLexicalIndex implements LexicalIndex on a bleve index.
// Alternative backend for corpora that need bleve's analyzers; enable
// via store.lexical_backend: bleve.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// bleveChunkDoc is the document shape stored in bleve. Path is indexed
// as a single keyword term so whole-document deletes can find every
// chunk with an exact term query.
type bleveChunkDoc struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewBleveLexicalIndex opens or creates a bleve index at path.
// Empty path creates an in-memory index.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	mapping := bleve.NewIndexMapping()

	pathField := blevemapping.NewKeywordFieldMapping()
	contentField := blevemapping.NewTextFieldMapping()
	docMapping := blevemapping.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("path", pathField)
	docMapping.AddFieldMappingsAt("content", contentField)
	mapping.DefaultMapping = docMapping

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return &BleveLexicalIndex{index: idx}, nil
}

// Index adds or replaces chunk text.
func (b *BleveLexicalIndex) Index(_ context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "lexical index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(ChunkID(c.Path, c.Index), bleveChunkDoc{Path: c.Path, Content: c.Content}); err != nil {
			return errors.Wrap(errors.ErrCodeStoreFailure, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return nil
}

// DeletePath removes every chunk of a document. Bleve has no prefix
// delete, so matching chunk IDs are collected with an exact term query
// on the keyword-mapped path field first.
func (b *BleveLexicalIndex) DeletePath(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Newf(errors.ErrCodeStoreFailure, "lexical index is closed")
	}

	query := bleve.NewTermQuery(path)
	query.SetField("path")
	req := bleve.NewSearchRequest(query)
	req.Size = 10000

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}

	batch := b.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailure, err)
	}
	return nil
}

// Search returns the k best-ranked chunks for the query.
func (b *BleveLexicalIndex) Search(ctx context.Context, query string, k int) ([]LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errors.Newf(errors.ErrCodeStoreFailure, "lexical index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []LexicalHit{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")
	req := bleve.NewSearchRequest(matchQuery)
	req.Size = k

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailure, err)
	}

	hits := make([]LexicalHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		path, index, err := ParseChunkID(hit.ID)
		if err != nil {
			continue
		}
		hits = append(hits, LexicalHit{Path: path, Index: index, Rank: hit.Score})
	}
	return hits, nil
}

// Close closes the underlying bleve index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
