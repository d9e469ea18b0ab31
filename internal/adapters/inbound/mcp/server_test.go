package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpadapter "github.com/openkraft/keeper/internal/adapters/inbound/mcp"
)

// newProject creates a tiny project whose deps probe needs no network.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".keeper.yaml"), []byte("scan:\n  deps_command: echo {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.ts"), []byte("console.log(1)\nexport const x: any = 1\n"), 0644))
	return dir
}

func newServer(t *testing.T) *server.MCPServer {
	t.Helper()
	s, err := mcpadapter.NewKeeperMCPServer(newProject(t), nil)
	require.NoError(t, err)
	return s
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.ListTools()[name]
	require.True(t, ok, "tool %q should be registered", name)
	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	return res
}

func textOf(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewKeeperMCPServer_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".keeper.yaml"), []byte("{{{"), 0644))
	_, err := mcpadapter.NewKeeperMCPServer(dir, nil)
	assert.Error(t, err)
}

func TestMCPServerHasTools(t *testing.T) {
	tools := newServer(t).ListTools()

	expectedTools := []string{
		"keeper_scan",
		"keeper_score",
		"keeper_classify",
		"keeper_route",
		"keeper_history",
	}
	for _, name := range expectedTools {
		_, exists := tools[name]
		assert.True(t, exists, "tool %q should be registered", name)
	}
	assert.Len(t, tools, len(expectedTools), "should have exactly %d tools", len(expectedTools))
}

func TestKeeperScan(t *testing.T) {
	res := callTool(t, newServer(t), "keeper_scan", nil)
	assert.False(t, res.IsError)

	var summary struct {
		Scan struct {
			ConsoleLogs  int `json:"console_logs"`
			AnyTypes     int `json:"any_types"`
			FilesScanned int `json:"files_scanned"`
		} `json:"scan"`
		Score int    `json:"score"`
		Grade string `json:"grade"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &summary))
	assert.Equal(t, 1, summary.Scan.ConsoleLogs)
	assert.Equal(t, 1, summary.Scan.AnyTypes)
	assert.Equal(t, 1, summary.Scan.FilesScanned)
	assert.NotEmpty(t, summary.Grade)
}

func TestKeeperScore(t *testing.T) {
	res := callTool(t, newServer(t), "keeper_score", nil)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Contains(t, out, "score")
	assert.Contains(t, out, "grade")
}

func TestKeeperClassify(t *testing.T) {
	s := newServer(t)

	res := callTool(t, s, "keeper_classify", map[string]any{"task": "find an exploit for login"})
	var out struct {
		Tier string `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, "complex", out.Tier)

	missing := callTool(t, s, "keeper_classify", map[string]any{})
	assert.True(t, missing.IsError)
}

func TestKeeperRoute_UserPreference(t *testing.T) {
	res := callTool(t, newServer(t), "keeper_route", map[string]any{
		"task":  "anything",
		"model": "gpt-4o",
	})
	var out struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
		Reason   string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, "openai", out.Provider)
	assert.Equal(t, "gpt-4o", out.Model)
	assert.Equal(t, "user_preference", out.Reason)
}

func TestKeeperHistory_Empty(t *testing.T) {
	res := callTool(t, newServer(t), "keeper_history", map[string]any{"limit": 5})
	assert.False(t, res.IsError)
	assert.JSONEq(t, "[]", textOf(t, res))
}
