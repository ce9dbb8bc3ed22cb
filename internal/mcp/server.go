// Package mcp exposes the diagnosis assistant to AI agents as Model Context
// Protocol tools.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/llm"
	"github.com/autogenius/autogenius/internal/recommend"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Diagnoser answers a conversation about a vehicle.
type Diagnoser interface {
	Diagnose(ctx context.Context, vehicle catalog.Vehicle, history []llm.Message) string
}

// Recommender searches the product catalog.
type Recommender interface {
	Recommend(ctx context.Context, query string, topK int) ([]recommend.Product, error)
}

// Server wraps an MCP server with the diagnosis tools.
type Server struct {
	diagnoser   Diagnoser
	recommender Recommender
	mcp         *server.MCPServer
}

// NewServer creates an MCP server. A nil recommender disables product
// search results.
func NewServer(diagnoser Diagnoser, recommender Recommender) *Server {
	s := &Server{
		diagnoser:   diagnoser,
		recommender: recommender,
	}

	s.mcp = server.NewMCPServer(
		"autogenius",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(diagnoseVehicleTool, s.handleDiagnoseVehicle)
	s.mcp.AddTool(recommendProductsTool, s.handleRecommendProducts)
	s.mcp.AddTool(listVehiclesTool, s.handleListVehicles)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
