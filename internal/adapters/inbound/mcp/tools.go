package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/application"
	"github.com/openkraft/keeper/internal/bootstrap"
	"github.com/openkraft/keeper/internal/domain"
)

type handlers struct {
	projectPath string
	cfg         domain.ProjectConfig
	scanner     *application.ScanService
	router      *application.RouterService
	logger      *zap.Logger
}

// registerTools registers all keeper MCP tools on the given server.
func registerTools(s *server.MCPServer, h *handlers) {
	// 1. keeper_scan
	s.AddTool(
		mcplib.NewTool("keeper_scan",
			mcplib.WithDescription("Scan the project without modifying it. Returns metrics, auto-fixable and approval-required issues, and the health score as JSON"),
		),
		h.handleScan,
	)

	// 2. keeper_score
	s.AddTool(
		mcplib.NewTool("keeper_score",
			mcplib.WithDescription("Returns the project's health score (0-100) and letter grade"),
		),
		h.handleScore,
	)

	// 3. keeper_classify
	s.AddTool(
		mcplib.NewTool("keeper_classify",
			mcplib.WithDescription("Classify a task into a complexity tier and return its token and time budget"),
			mcplib.WithString("task",
				mcplib.Required(),
				mcplib.Description("Task or prompt text to classify"),
			),
		),
		h.handleClassify,
	)

	// 4. keeper_route
	s.AddTool(
		mcplib.NewTool("keeper_route",
			mcplib.WithDescription("Choose a provider and model for a task, preferring local inference"),
			mcplib.WithString("task",
				mcplib.Required(),
				mcplib.Description("Task or prompt text to route"),
			),
			mcplib.WithString("agent", mcplib.Description("Calling agent name; enables per-agent overrides")),
			mcplib.WithString("model", mcplib.Description("Preferred model, honored verbatim")),
			mcplib.WithString("provider", mcplib.Description("Provider of the preferred model")),
		),
		h.handleRoute,
	)

	// 5. keeper_history
	s.AddTool(
		mcplib.NewTool("keeper_history",
			mcplib.WithDescription("List recent maintenance runs, newest first"),
			mcplib.WithNumber("limit", mcplib.Description("Maximum runs to return (default 10)")),
		),
		h.handleHistory,
	)
}

func (h *handlers) summarize(ctx context.Context) application.ScanSummary {
	return h.scanner.Summarize(ctx, h.projectPath, h.cfg.EffectiveMinCoverage())
}

func (h *handlers) handleScan(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(h.summarize(ctx))
}

func (h *handlers) handleScore(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s := h.summarize(ctx)
	return jsonResult(map[string]any{"score": s.Score, "grade": s.Grade})
}

func (h *handlers) handleClassify(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	task, err := request.RequireString("task")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	tier := h.router.Classify(task)
	return jsonResult(map[string]any{"tier": tier, "budget": domain.BudgetFor(tier)})
}

func (h *handlers) handleRoute(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	task, err := request.RequireString("task")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	d := h.router.Route(ctx, domain.RouteRequest{
		Task:              task,
		Agent:             request.GetString("agent", ""),
		PreferredModel:    request.GetString("model", ""),
		PreferredProvider: request.GetString("provider", ""),
	})
	return jsonResult(d)
}

func (h *handlers) handleHistory(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	store, err := bootstrap.OpenHistory(h.projectPath, h.cfg)
	if err != nil {
		return errorResult(fmt.Sprintf("opening history: %v", err)), nil
	}
	defer store.Close()

	entries, err := store.List(ctx, request.GetInt("limit", 10))
	if err != nil {
		return errorResult(fmt.Sprintf("loading history: %v", err)), nil
	}
	if entries == nil {
		entries = []domain.RunEntry{}
	}
	return jsonResult(entries)
}

// jsonResult marshals v as indented JSON into a text content result.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// errorResult returns an error result with the given message.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
