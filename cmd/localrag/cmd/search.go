package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localrag/localrag/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit        int
	offset       int
	mode         string // "hybrid", "vector", "text"
	format       string // "text", "json"
	offline      bool
	vectorWeight float64
	textWeight   float64
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index from the command line",
		Long: `Search the index for the current directory's corpus.

Examples:
  localrag search "retry with backoff"
  localrag search "ErrCorpusLocked" --mode text --limit 5
  localrag search "connection pooling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of ranked results to skip")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Search mode: hybrid, vector, text")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (no Ollama required)")
	cmd.Flags().Float64Var(&opts.vectorWeight, "vector-weight", 0, "Hybrid weight of the semantic component (unset = configured default)")
	cmd.Flags().Float64Var(&opts.textWeight, "text-weight", 0, "Hybrid weight of the full-text component (unset = configured default)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	env, err := openEnv(ctx, envOptions{
		offline:      opts.offline,
		needEmbedder: opts.mode != "text",
	})
	if err != nil {
		return err
	}
	defer env.close()

	var results []search.Result
	switch opts.mode {
	case "hybrid":
		// A flag left unset keeps its configured weight, so passing only
		// one flag never zeroes the other component.
		if cmd.Flags().Changed("vector-weight") || cmd.Flags().Changed("text-weight") {
			vw, tw := env.engine.Weights()
			if cmd.Flags().Changed("vector-weight") {
				vw = opts.vectorWeight
			}
			if cmd.Flags().Changed("text-weight") {
				tw = opts.textWeight
			}
			results, err = env.engine.HybridWith(ctx, query, vw, tw, opts.limit, opts.offset)
		} else {
			results, err = env.engine.Hybrid(ctx, query, opts.limit, opts.offset)
		}
	case "vector":
		results, err = env.engine.Vector(ctx, query, opts.limit, opts.offset)
	case "text":
		results, err = env.engine.Text(ctx, query, opts.limit, opts.offset)
	default:
		return fmt.Errorf("unknown mode %q: want hybrid, vector, or text", opts.mode)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s#%d  score=%.4f\n", i+1, r.Path, r.ChunkIndex, r.Score)
		fmt.Fprintf(out, "   %s\n", snippet(r.Content, 160))
	}
	return nil
}

// snippet trims chunk content to one display line.
func snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > max {
		content = content[:max] + "..."
	}
	return content
}
