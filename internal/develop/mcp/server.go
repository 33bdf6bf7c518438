// Package mcp implements the Model Context Protocol server.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rsned/kc-development-server/internal/develop/engine"
)

const (
	serverName    = "kc-development"
	serverVersion = "0.2.0"
)

// Server exposes the engine as MCP tools.
type Server struct {
	engine    *engine.Engine
	logger    *slog.Logger
	mcpServer *mcp.Server
}

// NewServer creates a new MCP server with every tool registered.
func NewServer(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	s := &Server{
		engine:    eng,
		logger:    logger,
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves MCP over an arbitrary transport.
func (s *Server) RunTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("MCP server starting", "name", serverName, "version", serverVersion)
	return s.mcpServer.Run(ctx, transport)
}
