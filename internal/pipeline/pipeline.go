// Package pipeline turns filesystem change events into index updates:
// read, dedup by content hash, extract, chunk, embed, store.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localrag/localrag/internal/chunk"
	"github.com/localrag/localrag/internal/corpus"
	"github.com/localrag/localrag/internal/embed"
	"github.com/localrag/localrag/internal/errors"
	"github.com/localrag/localrag/internal/extract"
	"github.com/localrag/localrag/internal/queue"
	"github.com/localrag/localrag/internal/store"
)

// Pipeline processes change events for one corpus.
type Pipeline struct {
	store     *store.Store
	embedder  embed.Embedder
	extractor *extract.Extractor
	logger    *slog.Logger

	chunkSize    int
	chunkOverlap int
	batchSize    int
}

// Config configures a Pipeline.
type Config struct {
	Store    *store.Store
	Embedder embed.Embedder
	Logger   *slog.Logger

	// ChunkSize and ChunkOverlap control the text splitter.
	ChunkSize    int
	ChunkOverlap int
	// BatchSize caps how many chunks are embedded per request.
	BatchSize int
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = chunk.DefaultOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embed.DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		store:        cfg.Store,
		embedder:     cfg.Embedder,
		extractor:    extract.New(),
		logger:       cfg.Logger,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		batchSize:    cfg.BatchSize,
	}
}

// HandleEvent processes one change event. It satisfies queue.Handler.
func (p *Pipeline) HandleEvent(ctx context.Context, ev queue.Event) error {
	switch ev.Kind {
	case queue.KindUnlink:
		return p.remove(ctx, ev.RelativePath)
	case queue.KindAdd, queue.KindChange:
		return p.index(ctx, ev)
	default:
		return errors.Newf(errors.ErrCodeInvalidInput, "unknown event kind %q", ev.Kind)
	}
}

// remove deletes a document from the index. Removing an unindexed path
// is a no-op, which makes unlink events idempotent.
func (p *Pipeline) remove(ctx context.Context, relPath string) error {
	if err := p.store.DeleteDocument(ctx, relPath); err != nil {
		return err
	}
	p.logger.Info("document removed", "path", relPath)
	return nil
}

// index reads, dedups, extracts, chunks, embeds, and stores one file.
func (p *Pipeline) index(ctx context.Context, ev queue.Event) error {
	raw, err := os.ReadFile(ev.AbsolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			// File vanished between the event and processing; treat as
			// an unlink so the index follows the filesystem.
			return p.remove(ctx, ev.RelativePath)
		}
		return errors.Wrap(errors.ErrCodeFileUnread, err)
	}

	contentHash := corpus.HashBytes(raw)
	stored, indexed, err := p.store.DocumentHash(ctx, ev.RelativePath)
	if err != nil {
		return err
	}
	if indexed && stored == contentHash {
		p.logger.Debug("document unchanged, skipping", "path", ev.RelativePath)
		return nil
	}

	text, err := p.extractor.Extract(ev.RelativePath, raw)
	if err != nil {
		if errors.Is(err, extract.ErrNoContent) {
			// Binary media is not indexed. If an earlier text version
			// was, drop it so the index never serves stale content.
			if indexed {
				return p.remove(ctx, ev.RelativePath)
			}
			p.logger.Debug("no indexable content", "path", ev.RelativePath)
			return nil
		}
		return err
	}

	segments := chunk.Split(text, p.chunkSize, p.chunkOverlap)
	embeddings, err := p.embedAll(ctx, segments)
	if err != nil {
		return err
	}

	chunks := make([]store.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = store.Chunk{
			Path:      ev.RelativePath,
			Index:     i,
			Content:   seg,
			Embedding: embeddings[i],
		}
	}
	doc := store.Document{
		Path:        ev.RelativePath,
		ContentHash: contentHash,
		Content:     text,
		Size:        int64(len(raw)),
		ChunkCount:  len(chunks),
		IndexedAt:   time.Now(),
	}
	if err := p.store.ReplaceDocument(ctx, doc, chunks); err != nil {
		return err
	}
	p.logger.Info("document indexed",
		"path", ev.RelativePath,
		"chunks", len(chunks),
		"bytes", len(raw))
	return nil
}

// embedAll embeds segments in parallel batches. Results keep segment
// order regardless of batch completion order.
func (p *Pipeline) embedAll(ctx context.Context, segments []string) ([][]float32, error) {
	embeddings := make([][]float32, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(segments); start += p.batchSize {
		end := start + p.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := p.embedder.EmbedBatch(gctx, segments[start:end])
			if err != nil {
				return err
			}
			copy(embeddings[start:], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}
