package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/localrag/localrag/internal/config"
	"github.com/localrag/localrag/internal/corpus"
	"github.com/localrag/localrag/internal/embed"
	"github.com/localrag/localrag/internal/mcp"
	"github.com/localrag/localrag/internal/pipeline"
	"github.com/localrag/localrag/internal/queue"
	"github.com/localrag/localrag/internal/reconcile"
	"github.com/localrag/localrag/internal/search"
	"github.com/localrag/localrag/internal/store"
	"github.com/localrag/localrag/internal/watcher"
)

type serveOptions struct {
	offline bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Watch a directory and serve its search index over MCP stdio",
		Long: `Start watching a directory and serve MCP over stdio.

The index is updated live as files are created, modified, and deleted.
All diagnostics go to the log file; stdout carries only MCP traffic.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (no Ollama required)")

	return cmd
}

// runServe wires the full stack: store, embedder, pipeline, queue,
// watcher, reconciler, search engine, and the MCP server.
func runServe(ctx context.Context, root string, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if opts.offline {
		cfg.Embeddings.Provider = "static"
	}

	logger := slog.Default()
	corpusID := corpus.ID(root)
	logger.Info("starting", "root", root, "corpus_id", corpusID,
		"provider", cfg.Embeddings.Provider,
		"lexical_backend", cfg.Store.LexicalBackend,
		"vector_backend", cfg.Store.VectorBackend)

	embedder, err := embed.FromConfig(ctx, cfg.Embeddings)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	st, err := store.Open(ctx, store.Options{
		Dir:            cfg.CorpusDir(corpusID),
		LexicalBackend: cfg.Store.LexicalBackend,
		VectorBackend:  cfg.Store.VectorBackend,
		EmbeddingModel: embedder.ModelName(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	pipe := pipeline.New(pipeline.Config{
		Store:        st,
		Embedder:     embedder,
		Logger:       logger,
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		BatchSize:    cfg.Embeddings.BatchSize,
	})
	q := queue.New(pipe.HandleEvent, logger)

	// Remove index entries for files deleted while the server was down,
	// before the initial scan enqueues the survivors.
	stale, err := reconcile.New(st, q, root, corpusID, logger).Run(ctx)
	if err != nil {
		return err
	}
	if stale > 0 {
		logger.Info("reconciled stale documents", "count", stale)
	}

	w, err := watcher.New(q, watcher.Options{
		Root:       root,
		CorpusID:   corpusID,
		IgnoreDirs: cfg.Watch.Ignore,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Start(); err != nil {
		return err
	}

	engine := search.New(st, embedder, search.Options{
		VectorWeight: cfg.Search.VectorWeight,
		TextWeight:   cfg.Search.TextWeight,
		Logger:       logger,
	})
	srv := mcp.New(engine, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.Run(gctx) })
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		// When the MCP client disconnects, shut the whole server down.
		defer stop()
		return srv.Run(gctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
