package embed

import (
	"context"
	"time"

	"github.com/localrag/localrag/internal/config"
	"github.com/localrag/localrag/internal/errors"
)

// FromConfig builds the configured embedder wrapped in an LRU cache.
func FromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "static":
		inner = NewStaticEmbedder()
	case "ollama", "":
		var err error
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    DefaultTimeout,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.ErrCodeConfigInvalid,
			"unknown embeddings provider %q", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// WaitAvailable polls the embedder until it is ready or the context ends.
func WaitAvailable(ctx context.Context, e Embedder, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if e.Available(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCodeEmbedUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}
