package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the rewrite engine as an MCP server on stdio",
	Long: `MCP runs a Model Context Protocol server on stdin/stdout with the tools
rewrite_command and list_rules and the rtk://awareness resource.

Register it with an MCP client, for example:
  {"mcpServers": {"openrtklaw": {"command": "openrtklaw", "args": ["mcp"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	g := hookGate()
	defer closeGate(g)
	return mcpserver.New(g, version).ServeStdio()
}
