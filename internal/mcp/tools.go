package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/localrag/localrag/internal/search"
	"github.com/localrag/localrag/internal/store"
)

// SearchInput defines the input schema for the single-signal search tools.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query to execute"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Offset int    `json:"offset,omitempty" jsonschema:"number of ranked results to skip, for paging"`
}

// HybridSearchInput defines the input schema for the hybrid search tool.
// Weights are pointers so an explicit zero is distinguishable from
// unset; each weight left unset falls back to the configured default.
type HybridSearchInput struct {
	Query        string   `json:"query" jsonschema:"the search query to execute"`
	VectorWeight *float64 `json:"vector_weight,omitempty" jsonschema:"weight of the semantic similarity component, default 0.7"`
	TextWeight   *float64 `json:"text_weight,omitempty" jsonschema:"weight of the full-text rank component, default 0.3"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Offset       int      `json:"offset,omitempty" jsonschema:"number of ranked results to skip, for paging"`
}

// SearchResultOutput is one scored chunk in a search response.
type SearchResultOutput struct {
	Path             string  `json:"path"`
	ChunkIndex       int     `json:"chunk_index"`
	Score            float64 `json:"score"`
	VectorSimilarity float64 `json:"vector_similarity,omitempty"`
	LexicalRank      float64 `json:"lexical_rank,omitempty"`
	Content          string  `json:"content"`
}

// SearchOutput defines the output schema shared by the search tools.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
}

// ListFilesInput defines the input schema for the list-files tool.
type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema:"only list files whose relative path starts with this prefix"`
}

// FileInfoOutput is one indexed document's metadata.
type FileInfoOutput struct {
	Path       string `json:"path"`
	ChunkCount int    `json:"chunk_count"`
	SizeBytes  int64  `json:"size_bytes"`
	IndexedAt  string `json:"indexed_at"`
}

// ListFilesOutput defines the output schema for the list-files tool.
type ListFilesOutput struct {
	Files []FileInfoOutput `json:"files"`
}

// GetFileInput defines the input schema for the get-file tool.
type GetFileInput struct {
	Path string `json:"path" jsonschema:"watch-root-relative path of the indexed file"`
	// ChunkIndex is a pointer so that chunk 0 and "whole file" are
	// distinguishable.
	ChunkIndex *int `json:"chunk_index,omitempty" jsonschema:"return only this chunk instead of the whole file"`
}

// ChunkOutput is one chunk of a fetched file.
type ChunkOutput struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// GetFileOutput defines the output schema for the get-file tool.
type GetFileOutput struct {
	File FileInfoOutput `json:"file"`
	// Content is the full extracted document text; empty when a single
	// chunk was requested.
	Content string        `json:"content,omitempty"`
	Chunks  []ChunkOutput `json:"chunks"`
}

func (s *Server) handleSearchHybrid(ctx context.Context, _ *mcp.CallToolRequest, input HybridSearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	mode := s.engine.Hybrid
	if input.VectorWeight != nil || input.TextWeight != nil {
		// A weight left unset keeps its configured default, so setting
		// only one never zeroes the other.
		vw, tw := s.engine.Weights()
		if input.VectorWeight != nil {
			vw = *input.VectorWeight
		}
		if input.TextWeight != nil {
			tw = *input.TextWeight
		}
		mode = func(ctx context.Context, query string, limit, offset int) ([]search.Result, error) {
			return s.engine.HybridWith(ctx, query, vw, tw, limit, offset)
		}
	}
	return s.runSearch(ctx, SearchInput{
		Query:  input.Query,
		Limit:  input.Limit,
		Offset: input.Offset,
	}, mode)
}

func (s *Server) handleSearchVector(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	return s.runSearch(ctx, input, s.engine.Vector)
}

func (s *Server) handleSearchText(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	return s.runSearch(ctx, input, s.engine.Text)
}

// runSearch is the shared body of the three search handlers; mode is one
// of the engine's search methods.
func (s *Server) runSearch(
	ctx context.Context,
	input SearchInput,
	mode func(context.Context, string, int, int) ([]search.Result, error),
) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	results, err := mode(ctx, input.Query, input.Limit, input.Offset)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		output.Results = append(output.Results, SearchResultOutput{
			Path:             r.Path,
			ChunkIndex:       r.ChunkIndex,
			Score:            r.Score,
			VectorSimilarity: r.VectorSimilarity,
			LexicalRank:      r.LexicalRank,
			Content:          r.Content,
		})
	}
	return nil, output, nil
}

func (s *Server) handleListFiles(ctx context.Context, _ *mcp.CallToolRequest, input ListFilesInput) (
	*mcp.CallToolResult,
	ListFilesOutput,
	error,
) {
	docs, err := s.engine.ListFiles(ctx, input.Path)
	if err != nil {
		return nil, ListFilesOutput{}, MapError(err)
	}

	output := ListFilesOutput{Files: make([]FileInfoOutput, 0, len(docs))}
	for _, d := range docs {
		output.Files = append(output.Files, toFileInfoOutput(d))
	}
	return nil, output, nil
}

func (s *Server) handleGetFile(ctx context.Context, _ *mcp.CallToolRequest, input GetFileInput) (
	*mcp.CallToolResult,
	GetFileOutput,
	error,
) {
	if input.Path == "" {
		return nil, GetFileOutput{}, NewInvalidParamsError("path parameter is required")
	}

	doc, chunks, err := s.engine.GetFile(ctx, input.Path)
	if err != nil {
		return nil, GetFileOutput{}, MapError(err)
	}

	if input.ChunkIndex != nil {
		c, err := s.engine.GetChunk(ctx, input.Path, *input.ChunkIndex)
		if err != nil {
			return nil, GetFileOutput{}, MapError(err)
		}
		return nil, GetFileOutput{
			File:   toFileInfoOutput(*doc),
			Chunks: []ChunkOutput{{Index: c.Index, Content: c.Content}},
		}, nil
	}

	output := GetFileOutput{
		File:    toFileInfoOutput(*doc),
		Content: doc.Content,
		Chunks:  make([]ChunkOutput, 0, len(chunks)),
	}
	for _, c := range chunks {
		output.Chunks = append(output.Chunks, ChunkOutput{Index: c.Index, Content: c.Content})
	}
	return nil, output, nil
}

func toFileInfoOutput(d store.Document) FileInfoOutput {
	return FileInfoOutput{
		Path:       d.Path,
		ChunkCount: d.ChunkCount,
		SizeBytes:  d.Size,
		IndexedAt:  d.IndexedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
