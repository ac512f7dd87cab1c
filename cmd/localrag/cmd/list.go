package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		format string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer env.close()

			docs, err := env.engine.ListFiles(ctx, prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			}

			if len(docs) == 0 {
				fmt.Fprintln(out, "No files indexed")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tCHUNKS\tSIZE\tINDEXED")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
					d.Path, d.ChunkCount, d.Size, d.IndexedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Only list files whose path starts with this prefix")

	return cmd
}
