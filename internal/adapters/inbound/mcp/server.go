package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/bootstrap"
)

// NewKeeperMCPServer creates an MCP server with every keeper tool and
// resource registered against the project at projectPath.
func NewKeeperMCPServer(projectPath string, logger *zap.Logger) (*server.MCPServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := bootstrap.LoadConfig(projectPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	s := server.NewMCPServer(
		"keeper",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	h := &handlers{
		projectPath: projectPath,
		cfg:         cfg,
		scanner:     bootstrap.NewScanService(cfg, logger),
		router:      bootstrap.NewRouter(cfg.Router, nil, logger),
		logger:      logger,
	}
	registerTools(s, h)
	registerResources(s, h)

	return s, nil
}
