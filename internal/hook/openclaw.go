package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/rewrite"
)

// OpenClawTool is the only OpenClaw tool whose calls are rewritten.
const OpenClawTool = "exec"

// ToolCallEvent is an OpenClaw before_tool_call event.
type ToolCallEvent struct {
	ToolName string         `json:"toolName"`
	Params   map[string]any `json:"params,omitempty"`

	// Extra holds the other top-level fields (toolCallId, sessionKey, ...).
	// They are written back unchanged after toolName and params.
	Extra map[string]json.RawMessage `json:"-"`
}

func (ev *ToolCallEvent) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*ev = ToolCallEvent{}
	if err := takeField(fields, "toolName", &ev.ToolName); err != nil {
		return err
	}
	if err := takeField(fields, "params", &ev.Params); err != nil {
		return err
	}
	if len(fields) > 0 {
		ev.Extra = fields
	}
	return nil
}

func (ev ToolCallEvent) MarshalJSON() ([]byte, error) {
	type plain ToolCallEvent
	known, err := json.Marshal(plain(ev))
	if err != nil {
		return nil, err
	}
	return appendFields(known, ev.Extra)
}

// HandleOpenClaw returns ev with params.command rewritten. The input event
// is never modified. applicable is false for tools other than exec or when
// no command is present.
func HandleOpenClaw(ctx context.Context, rw Rewriter, ev ToolCallEvent) (out ToolCallEvent, outcome rewrite.Outcome, applicable bool) {
	if ev.ToolName != OpenClawTool {
		return ev, rewrite.Outcome{}, false
	}
	cmd, ok := commandParam(ev.Params)
	if !ok {
		return ev, rewrite.Outcome{}, false
	}

	outcome = rw.Rewrite(ctx, gate.SourceOpenClaw, cmd)
	if !outcome.Rewritten {
		return ev, outcome, true
	}
	return ToolCallEvent{
		ToolName: ev.ToolName,
		Params:   withCommand(ev.Params, outcome.Command),
		Extra:    ev.Extra,
	}, outcome, true
}

// RunOpenClaw reads one event from r and always writes the (possibly
// rewritten) event to w.
func RunOpenClaw(ctx context.Context, rw Rewriter, r io.Reader, w io.Writer) error {
	var ev ToolCallEvent
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return fmt.Errorf("decoding tool call event: %w", err)
	}
	out, _, _ := HandleOpenClaw(ctx, rw, ev)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encoding tool call event: %w", err)
	}
	return nil
}
