package cli

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/openkraft/keeper/internal/adapters/inbound/mcp"
)

func newMCPCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the keeper MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(g))
	return cmd
}

func newMCPServeCmd(g *globals) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start keeper MCP server (stdio)",
		Long:  "Start the keeper MCP server using stdio transport. Coding agents can scan the project, classify tasks and ask for routing decisions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectPath([]string{path})
			if err != nil {
				return err
			}
			s, err := mcpadapter.NewKeeperMCPServer(root, g.logger)
			if err != nil {
				return fmt.Errorf("starting MCP server: %w", err)
			}
			return server.ServeStdio(s)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project path (defaults to current working directory)")

	return cmd
}
