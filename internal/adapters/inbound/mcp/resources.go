package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const routesURI = "keeper://routes"

// registerResources registers all keeper MCP resources on the given server.
func registerResources(s *server.MCPServer, h *handlers) {
	s.AddResource(
		mcplib.NewResource(
			routesURI,
			"Route Table",
			mcplib.WithResourceDescription("Current model route table, provider catalog and agent overrides"),
			mcplib.WithMIMEType("application/json"),
		),
		h.handleRoutesResource,
	)
}

func (h *handlers) handleRoutesResource(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(h.router.Table(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling route table: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      routesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
