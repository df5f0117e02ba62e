package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/urmzd/linkhub/pkg/house"
	"github.com/urmzd/linkhub/pkg/jobs"
	"github.com/urmzd/linkhub/pkg/schema"
)

// JobHistory reads finished job runs of the served house.
type JobHistory interface {
	Get(ctx context.Context, id string) (jobs.Result, error)
}

// Server wraps the MCP server with the house's linking and job operations
type Server struct {
	mcpServer *server.MCPServer
	house     *house.House
	validator *schema.Validator
	history   JobHistory
}

// NewServer creates a new MCP server. history may be nil.
func NewServer(h *house.House, validator *schema.Validator, history JobHistory) *Server {
	s := &Server{
		house:     h,
		validator: validator,
		history:   history,
	}

	s.mcpServer = server.NewMCPServer(
		"linkhub",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
