package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/mgrep/internal/indexer"
	"github.com/dshills/mgrep/internal/lifecycle"
	"github.com/dshills/mgrep/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "mgrep"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Deps are the components the tools call into. The indexer and searcher
// must share one embedder so queries and chunks live in the same space.
type Deps struct {
	Indexer   *indexer.Indexer
	Searcher  *searcher.Searcher
	Lifecycle *lifecycle.Manager
	UserID    string // used when a request omits user_id
	Logger    *slog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	indexer     *indexer.Indexer
	searcher    *searcher.Searcher
	lifecycle   *lifecycle.Manager
	defaultUser string
	logger      *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Indexer == nil || deps.Searcher == nil || deps.Lifecycle == nil {
		return nil, errors.New("mcp server needs an indexer, a searcher and a lifecycle manager")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:         mcpServer,
		indexer:     deps.Indexer,
		searcher:    deps.Searcher,
		lifecycle:   deps.Lifecycle,
		defaultUser: deps.UserID,
		logger:      deps.Logger.With("component", "mcp"),
	}

	s.registerTools()

	return s, nil
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes.
// Stdout carries protocol traffic only; logs go wherever the logger writes.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", "name", ServerName, "version", ServerVersion)
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexContentTool(), s.handleIndexContent)
	s.mcp.AddTool(indexFileTool(), s.handleIndexFile)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(cleanTool(), s.handleClean)
	s.mcp.AddTool(statusTool(), s.handleStatus)
}
