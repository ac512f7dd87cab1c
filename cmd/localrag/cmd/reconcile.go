package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/localrag/localrag/internal/pipeline"
	"github.com/localrag/localrag/internal/queue"
	"github.com/localrag/localrag/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove index entries for files deleted while no server was running",
		Long: `Compare the index for the current directory against the filesystem
and remove entries whose source file no longer exists.

The server does this automatically at startup; this command is for
cleaning up an index without starting one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer env.close()

			pipe := pipeline.New(pipeline.Config{
				Store:    env.store,
				Embedder: env.embedder,
			})
			q := queue.New(pipe.HandleEvent, nil)

			qctx, cancel := context.WithCancel(ctx)
			defer cancel()
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = q.Run(qctx)
			}()

			stale, err := reconcile.New(env.store, q, env.root, env.corpusID, nil).Run(ctx)
			if err != nil {
				return err
			}

			// Let the worker drain the unlink events before shutting down.
			for q.Len() > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(10 * time.Millisecond):
				}
			}
			cancel()
			<-done

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale file(s) from the index\n", stale)
			return nil
		},
	}
}
