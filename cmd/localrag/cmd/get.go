package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var (
		format     string
		chunkIndex int
	)

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Show an indexed file's chunks",
		Long: `Show one indexed file's metadata and chunk contents.

The path is relative to the watch root, as printed by 'localrag list'.
Use --chunk to print a single chunk instead of the whole file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer env.close()

			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("chunk") {
				c, err := env.engine.GetChunk(ctx, args[0], chunkIndex)
				if err != nil {
					return err
				}
				if format == "json" {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(c)
				}
				fmt.Fprintln(out, c.Content)
				return nil
			}

			doc, chunks, err := env.engine.GetFile(ctx, args[0])
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Document any `json:"document"`
					Chunks   any `json:"chunks"`
				}{doc, chunks})
			}

			fmt.Fprintf(out, "%s  (%d chunks, %d bytes, indexed %s)\n\n",
				doc.Path, doc.ChunkCount, doc.Size, doc.IndexedAt.Format("2006-01-02 15:04:05"))
			for _, c := range chunks {
				fmt.Fprintf(out, "--- chunk %d ---\n%s\n", c.Index, c.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().IntVar(&chunkIndex, "chunk", 0, "Print only this chunk index")

	return cmd
}
