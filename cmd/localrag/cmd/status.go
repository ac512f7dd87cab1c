package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// statusInfo is the JSON shape of 'localrag status'.
type statusInfo struct {
	Root           string `json:"root"`
	CorpusID       string `json:"corpus_id"`
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	LexicalBackend string `json:"lexical_backend"`
	VectorBackend  string `json:"vector_backend"`
	Provider       string `json:"embedding_provider"`
	Model          string `json:"embedding_model"`
}

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status for the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, envOptions{})
			if err != nil {
				return err
			}
			defer env.close()

			docs, chunks, err := env.store.Counts(ctx)
			if err != nil {
				return err
			}

			info := statusInfo{
				Root:           env.root,
				CorpusID:       env.corpusID,
				Documents:      docs,
				Chunks:         chunks,
				LexicalBackend: env.cfg.Store.LexicalBackend,
				VectorBackend:  env.cfg.Store.VectorBackend,
				Provider:       env.cfg.Embeddings.Provider,
				Model:          env.cfg.Embeddings.Model,
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(out, "Root:       %s\n", info.Root)
			fmt.Fprintf(out, "Corpus:     %s\n", info.CorpusID)
			fmt.Fprintf(out, "Documents:  %d\n", info.Documents)
			fmt.Fprintf(out, "Chunks:     %d\n", info.Chunks)
			fmt.Fprintf(out, "Lexical:    %s\n", info.LexicalBackend)
			fmt.Fprintf(out, "Vector:     %s\n", info.VectorBackend)
			fmt.Fprintf(out, "Embeddings: %s (%s)\n", info.Provider, info.Model)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
