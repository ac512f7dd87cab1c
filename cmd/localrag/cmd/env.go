package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/localrag/localrag/internal/config"
	"github.com/localrag/localrag/internal/corpus"
	"github.com/localrag/localrag/internal/embed"
	"github.com/localrag/localrag/internal/search"
	"github.com/localrag/localrag/internal/store"
)

// envOptions controls how the one-shot commands open the corpus.
type envOptions struct {
	// offline swaps the configured embedding provider for static vectors.
	offline bool
	// needEmbedder is set by commands that embed a query. Commands that
	// only read the index skip the provider (and its model check)
	// entirely.
	needEmbedder bool
}

// cliEnv is the opened stack shared by the one-shot commands
// (search, list, get, status).
type cliEnv struct {
	cfg      *config.Config
	root     string
	corpusID string
	store    *store.Store
	embedder embed.Embedder
	engine   *search.Engine
}

// openEnv loads config for the current directory and opens its corpus.
// Fails if the corpus has never been indexed or a server currently
// holds its lock.
func openEnv(ctx context.Context, opts envOptions) (*cliEnv, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if opts.offline {
		cfg.Embeddings.Provider = "static"
	}

	corpusID := corpus.ID(root)
	corpusDir := cfg.CorpusDir(corpusID)
	if _, err := os.Stat(filepath.Join(corpusDir, "index.db")); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found for %s. Run 'localrag' here first", root)
	}

	var embedder embed.Embedder
	model := ""
	if opts.needEmbedder {
		embedder, err = embed.FromConfig(ctx, cfg.Embeddings)
		if err != nil {
			return nil, err
		}
		model = embedder.ModelName()
	} else {
		// Index-only access; the static embedder is never called.
		embedder = embed.NewStaticEmbedder()
	}

	st, err := store.Open(ctx, store.Options{
		Dir:            corpusDir,
		LexicalBackend: cfg.Store.LexicalBackend,
		VectorBackend:  cfg.Store.VectorBackend,
		EmbeddingModel: model,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	return &cliEnv{
		cfg:      cfg,
		root:     root,
		corpusID: corpusID,
		store:    st,
		embedder: embedder,
		engine: search.New(st, embedder, search.Options{
			VectorWeight: cfg.Search.VectorWeight,
			TextWeight:   cfg.Search.TextWeight,
		}),
	}, nil
}

func (e *cliEnv) close() {
	_ = e.store.Close()
	_ = e.embedder.Close()
}
