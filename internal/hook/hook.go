// Package hook adapts agent tool-call interception protocols to the rewrite
// gate. Adapters are pure: they decode an event, ask the Rewriter and build
// the reply without touching process state.
package hook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aimagist/openrtklaw/internal/rewrite"
)

// Rewriter decides how to rewrite a command. *gate.Gate implements it.
type Rewriter interface {
	Rewrite(ctx context.Context, source, command string) rewrite.Outcome
}

// commandParam extracts a non-empty string "command" field.
func commandParam(fields map[string]any) (string, bool) {
	cmd, ok := fields["command"].(string)
	if !ok || cmd == "" {
		return "", false
	}
	return cmd, true
}

// withCommand returns a shallow copy of fields with "command" replaced.
func withCommand(fields map[string]any, command string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["command"] = command
	return out
}

// takeField decodes fields[key] into dst and removes it from fields. A
// missing key leaves dst untouched.
func takeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	delete(fields, key)
	return nil
}

// appendFields adds extra, in key order, to the encoded JSON object obj.
func appendFields(obj []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	rest, err := json.Marshal(extra)
	if err != nil {
		return nil, err
	}
	if len(obj) <= 2 {
		return rest, nil
	}
	out := append(obj[:len(obj)-1:len(obj)-1], ',')
	return append(out, rest[1:]...), nil
}
