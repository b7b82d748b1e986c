// Package bootstrap injects the RTK awareness document into an agent's
// bootstrap context, so the agent knows about rtk meta commands and that its
// shell commands are being rewritten.
package bootstrap

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/glamour"
)

// FileName is the name under which the document is injected.
const FileName = "RTK.md"

//go:embed awareness.md
var awareness string

// Awareness returns the markdown document injected into bootstrap contexts.
func Awareness() string { return awareness }

// File is a bootstrap file entry.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Event is an agent lifecycle event. Context fields other than
// bootstrapFiles are carried through untouched, and so are top-level fields
// other than type, action and context (kept in Extra).
type Event struct {
	Type    string         `json:"type"`
	Action  string         `json:"action"`
	Context map[string]any `json:"context,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (ev *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*ev = Event{}
	for _, f := range []struct {
		key string
		dst any
	}{
		{"type", &ev.Type},
		{"action", &ev.Action},
		{"context", &ev.Context},
	} {
		raw, ok := fields[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return fmt.Errorf("field %q: %w", f.key, err)
		}
		delete(fields, f.key)
	}
	if len(fields) > 0 {
		ev.Extra = fields
	}
	return nil
}

// MarshalJSON writes the known fields first, then Extra in key order.
func (ev Event) MarshalJSON() ([]byte, error) {
	type plain Event
	known, err := json.Marshal(plain(ev))
	if err != nil || len(ev.Extra) == 0 {
		return known, err
	}
	rest, err := json.Marshal(ev.Extra)
	if err != nil {
		return nil, err
	}
	out := append(known[:len(known)-1:len(known)-1], ',')
	return append(out, rest[1:]...), nil
}

// IsBootstrap reports whether ev is an agent bootstrap event.
func (ev Event) IsBootstrap() bool {
	return ev.Type == "agent" && ev.Action == "bootstrap"
}

// Inject returns a copy of ev with the awareness file appended to
// context.bootstrapFiles. Events other than agent bootstrap, and events
// without a bootstrapFiles list, are returned as is; injected reports
// whether the file was added.
func Inject(ev Event) (out Event, injected bool) {
	if !ev.IsBootstrap() || ev.Context == nil {
		return ev, false
	}
	existing, ok := ev.Context["bootstrapFiles"].([]any)
	if !ok {
		return ev, false
	}

	files := make([]any, 0, len(existing)+1)
	files = append(files, existing...)
	files = append(files, File{Name: FileName, Content: awareness})

	ctx := make(map[string]any, len(ev.Context))
	for k, v := range ev.Context {
		ctx[k] = v
	}
	ctx["bootstrapFiles"] = files

	slog.Debug("injected RTK awareness into agent context")
	return Event{Type: ev.Type, Action: ev.Action, Context: ctx, Extra: ev.Extra}, true
}

// Run reads an event from r and writes the (possibly injected) event to w.
func Run(r io.Reader, w io.Writer) error {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return fmt.Errorf("decoding bootstrap event: %w", err)
	}
	out, _ := Inject(ev)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encoding bootstrap event: %w", err)
	}
	return nil
}

// Render formats markdown for the terminal.
func Render(markdown string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(markdown)
}
