package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/hook"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Agent hook entry points (read an event on stdin, reply on stdout)",
	Long: `Hook provides the entry points agents call before running a tool.
Each reads one JSON event on stdin and writes the reply on stdout.

Claude Code (~/.claude/settings.json):
  "hooks": {"PreToolUse": [{"matcher": "Bash",
    "hooks": [{"type": "command", "command": "openrtklaw hook claude"}]}]}`,
}

var hookClaudeCmd = &cobra.Command{
	Use:   "claude",
	Short: "Claude Code PreToolUse hook",
	Long: `Claude rewrites the command of a Bash PreToolUse event. When the
command is left unchanged nothing is written, and Claude runs it as is.`,
	Args: cobra.NoArgs,
	RunE: runHookClaude,
}

var hookOpenClawCmd = &cobra.Command{
	Use:   "openclaw",
	Short: "OpenClaw before_tool_call hook",
	Long: `OpenClaw rewrites the command parameter of an exec tool call and
echoes the event back.`,
	Args: cobra.NoArgs,
	RunE: runHookOpenClaw,
}

func init() {
	hookCmd.AddCommand(hookClaudeCmd)
	hookCmd.AddCommand(hookOpenClawCmd)
	rootCmd.AddCommand(hookCmd)
}

// A hook failure must never block the agent: errors are logged and the
// command exits 0 with no reply, so the original command runs.

func runHookClaude(cmd *cobra.Command, args []string) error {
	g := hookGate()
	defer closeGate(g)
	if err := hook.RunClaude(cmd.Context(), g, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		slog.Warn("claude hook", "error", err)
	}
	return nil
}

func runHookOpenClaw(cmd *cobra.Command, args []string) error {
	g := hookGate()
	defer closeGate(g)
	if err := hook.RunOpenClaw(cmd.Context(), g, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		slog.Warn("openclaw hook", "error", err)
	}
	return nil
}

func closeGate(g interface{ Close() error }) {
	if err := g.Close(); err != nil {
		slog.Warn("closing rewrite gate", "error", err)
	}
}
