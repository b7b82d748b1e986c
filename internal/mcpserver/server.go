// Package mcpserver exposes the rewrite gate as Model Context Protocol tools,
// so agents without a hook mechanism can ask how to run a command.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aimagist/openrtklaw/internal/bootstrap"
	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/rewrite"
)

// AwarenessURI is the resource serving the RTK awareness document.
const AwarenessURI = "rtk://awareness"

// RewriteResult is the structured output of the rewrite_command tool.
type RewriteResult struct {
	Original  string `json:"original" jsonschema_description:"The command as submitted"`
	Rewritten bool   `json:"rewritten" jsonschema_description:"Whether the command should be run through rtk"`
	Command   string `json:"command" jsonschema_description:"The command to run"`
	Reason    string `json:"reason" jsonschema_description:"matched, no-match or skipped"`
	Rule      string `json:"rule,omitempty" jsonschema_description:"Name of the rule that matched"`
	Guard     string `json:"guard,omitempty" jsonschema_description:"Guard that exempted the command"`
}

type rewriteArgs struct {
	Command string `json:"command"`
}

// Server wraps a gate as an MCP server.
type Server struct {
	gate      *gate.Gate
	mcpServer *server.MCPServer
}

// New creates the MCP server and registers its tools and resources.
func New(g *gate.Gate, version string) *Server {
	s := &Server{
		gate:      g,
		mcpServer: server.NewMCPServer("openrtklaw", strings.TrimSpace(version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

func (s *Server) registerTools() {
	rewriteTool := mcp.NewTool("rewrite_command",
		mcp.WithDescription("Return the token-optimized rtk form of a shell command. "+
			"Run the returned command instead of the original; when rewritten is false run the original unchanged."),
		mcp.WithString("command", mcp.Required(), mcp.Description("The shell command to rewrite")),
		mcp.WithOutputSchema[RewriteResult](),
	)
	s.mcpServer.AddTool(rewriteTool, mcp.NewStructuredToolHandler(s.handleRewrite))

	s.mcpServer.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List the active rewrite rules in evaluation order (first match wins)."),
	), s.handleListRules)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(AwarenessURI, "RTK awareness",
		mcp.WithResourceDescription("How rtk rewriting works and which meta commands exist"),
		mcp.WithMIMEType("text/markdown"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      AwarenessURI,
				MIMEType: "text/markdown",
				Text:     bootstrap.Awareness(),
			},
		}, nil
	})
}

func (s *Server) handleRewrite(ctx context.Context, request mcp.CallToolRequest, args rewriteArgs) (RewriteResult, error) {
	if strings.TrimSpace(args.Command) == "" {
		return RewriteResult{}, fmt.Errorf("command is required")
	}
	out := s.gate.Rewrite(ctx, gate.SourceMCP, args.Command)
	return resultFromOutcome(args.Command, out), nil
}

func (s *Server) handleListRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type ruleInfo struct {
		Name    string `json:"name"`
		Family  string `json:"family"`
		Pattern string `json:"pattern"`
	}
	rules := s.gate.Rules()
	infos := make([]ruleInfo, len(rules))
	for i, r := range rules {
		infos[i] = ruleInfo{Name: r.Name, Family: r.Family, Pattern: r.Matcher.String()}
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding rules: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func resultFromOutcome(original string, out rewrite.Outcome) RewriteResult {
	cmd := original
	if out.Rewritten {
		cmd = out.Command
	}
	return RewriteResult{
		Original:  original,
		Rewritten: out.Rewritten,
		Command:   cmd,
		Reason:    string(out.Reason),
		Rule:      out.Rule,
		Guard:     out.Guard,
	}
}
