package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/lexcite/internal/indexer"
	"github.com/dshills/lexcite/internal/validate"
)

const (
	// ServerName is the MCP server name
	ServerName = "lexcite"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	indexer   *indexer.Indexer
	validator *validate.Validator
}

// NewServer creates a new MCP server instance. Handles are owned by the
// caller and must outlive Serve.
func NewServer(idx *indexer.Indexer, v *validate.Validator) *Server {
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		indexer:   idx,
		validator: v,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(s.mcp) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(runPipelineTool(), s.handleRunPipeline)
	s.mcp.AddTool(pipelineStatusTool(), s.handlePipelineStatus)
	s.mcp.AddTool(validateDatasetTool(), s.handleValidateDataset)
}
