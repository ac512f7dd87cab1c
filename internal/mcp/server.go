// Package mcp exposes the search index to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/localrag/localrag/internal/search"
	"github.com/localrag/localrag/pkg/version"
)

// Server wires the search engine into an MCP server with five tools:
// list-files, get-file, and the three search variants.
type Server struct {
	engine *search.Engine
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates the MCP server and registers its tools.
func New(engine *search.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		logger: logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "localrag",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list-files",
		Description: "List every file in the watched directory index with its chunk count and indexing time.",
	}, s.handleListFiles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get-file",
		Description: "Fetch one indexed file's metadata and full chunk contents by its relative path.",
	}, s.handleGetFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search-files-vector",
		Description: "Semantic search over file chunks using embedding similarity. Finds content by meaning even when the words differ.",
	}, s.handleSearchVector)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search-files-full-text",
		Description: "Keyword search over file chunks using full-text BM25 ranking. Best for exact terms, names, and identifiers.",
	}, s.handleSearchText)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search-files-hybrid",
		Description: "Combined semantic and keyword search. The default choice: ranks chunks by a weighted blend of embedding similarity and full-text relevance.",
	}, s.handleSearchHybrid)

	s.logger.Info("MCP tools registered", "count", 5)
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting", "transport", "stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped", "error", err)
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
