package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/rewrite"
)

const (
	// ClaudeEvent is the hook event this adapter answers.
	ClaudeEvent = "PreToolUse"
	// ClaudeTool is the only tool whose input is rewritten.
	ClaudeTool = "Bash"

	claudeReason = "RTK auto-rewrite"
)

// ClaudeInput is the JSON a Claude Code PreToolUse hook receives on stdin.
// ToolInput is kept as a map so fields other than command survive the
// round trip.
//
// See: https://docs.anthropic.com/en/docs/claude-code/hooks
type ClaudeInput struct {
	SessionID      string         `json:"session_id"`
	TranscriptPath string         `json:"transcript_path,omitempty"`
	Cwd            string         `json:"cwd,omitempty"`
	PermissionMode string         `json:"permission_mode,omitempty"`
	HookEventName  string         `json:"hook_event_name"`
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	ToolUseID      string         `json:"tool_use_id,omitempty"`
}

// ClaudeOutput is the hook reply written to stdout.
type ClaudeOutput struct {
	HookSpecificOutput ClaudeSpecificOutput `json:"hookSpecificOutput"`
}

// ClaudeSpecificOutput carries the permission decision and the updated tool input.
type ClaudeSpecificOutput struct {
	HookEventName            string         `json:"hookEventName"`
	PermissionDecision       string         `json:"permissionDecision"`
	PermissionDecisionReason string         `json:"permissionDecisionReason"`
	UpdatedInput             map[string]any `json:"updatedInput,omitempty"`
}

// ParseClaudeInput decodes a PreToolUse event.
func ParseClaudeInput(r io.Reader) (*ClaudeInput, error) {
	var in ClaudeInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decoding hook input: %w", err)
	}
	return &in, nil
}

// HandleClaude returns the reply for in, or nil when the command must run
// unchanged. applicable is false for events other than a Bash tool call
// carrying a command; the outcome is then the zero value.
func HandleClaude(ctx context.Context, rw Rewriter, in *ClaudeInput) (out *ClaudeOutput, outcome rewrite.Outcome, applicable bool) {
	if in == nil || in.ToolName != ClaudeTool {
		return nil, rewrite.Outcome{}, false
	}
	if in.HookEventName != "" && in.HookEventName != ClaudeEvent {
		return nil, rewrite.Outcome{}, false
	}
	cmd, ok := commandParam(in.ToolInput)
	if !ok {
		return nil, rewrite.Outcome{}, false
	}

	outcome = rw.Rewrite(ctx, gate.SourceClaude, cmd)
	if !outcome.Rewritten {
		return nil, outcome, true
	}
	return &ClaudeOutput{
		HookSpecificOutput: ClaudeSpecificOutput{
			HookEventName:            ClaudeEvent,
			PermissionDecision:       "allow",
			PermissionDecisionReason: claudeReason,
			UpdatedInput:             withCommand(in.ToolInput, outcome.Command),
		},
	}, outcome, true
}

// RunClaude reads one event from r and writes the reply to w. Nothing is
// written when the command is left unchanged, which Claude Code treats as
// "no opinion".
func RunClaude(ctx context.Context, rw Rewriter, r io.Reader, w io.Writer) error {
	in, err := ParseClaudeInput(r)
	if err != nil {
		return err
	}
	out, _, _ := HandleClaude(ctx, rw, in)
	if out == nil {
		return nil
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encoding hook output: %w", err)
	}
	return nil
}
