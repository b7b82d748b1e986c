// Package rewrite turns shell commands issued by an agent into equivalent
// rtk proxy invocations.
//
// An Engine holds an ordered, read-only Table of rules and a list of skip
// guards. Attempt is a pure function of the command and the engine: it never
// fails, it either returns the rewritten command or reports why the command
// was left unchanged. Engines are safe for concurrent use.
package rewrite

import "fmt"

// Reason explains an Outcome.
type Reason string

const (
	ReasonMatched Reason = "matched"
	ReasonNoMatch Reason = "no-match"
	ReasonSkipped Reason = "skipped"
)

// Outcome is the result of a rewrite attempt. When Rewritten is false the
// caller must run the original command verbatim.
type Outcome struct {
	Rewritten bool   `json:"rewritten"`
	Command   string `json:"command,omitempty"` // the new command, set only when Rewritten
	Reason    Reason `json:"reason"`
	Rule      string `json:"rule,omitempty"`  // matched rule name
	Guard     string `json:"guard,omitempty"` // guard that skipped the command
}

// Unchanged reports whether the command must be run as is.
func (o Outcome) Unchanged() bool { return !o.Rewritten }

func (o Outcome) String() string {
	switch o.Reason {
	case ReasonMatched:
		return fmt.Sprintf("rewritten by %s: %s", o.Rule, o.Command)
	case ReasonSkipped:
		return fmt.Sprintf("unchanged (skipped: %s)", o.Guard)
	default:
		return "unchanged (no matching rule)"
	}
}

// Engine applies a rule table to commands.
type Engine struct {
	table  Table
	guards []Guard
}

// New creates an engine over table. Extra guards run after the built-in
// already-proxied and heredoc checks.
func New(table Table, guards ...Guard) *Engine {
	g := make([]Guard, 0, len(guards))
	for _, gd := range guards {
		if gd != nil {
			g = append(g, gd)
		}
	}
	return &Engine{table: table, guards: g}
}

// Table returns the engine's rule table.
func (e *Engine) Table() Table { return e.table }

// SkipReason returns the name of the first guard that exempts command from
// rewriting, or "" when no guard applies.
func (e *Engine) SkipReason(command string) string {
	if reason := builtinSkip(command); reason != "" {
		return reason
	}
	for _, g := range e.guards {
		if g.Skip(command) {
			return g.Name()
		}
	}
	return ""
}

// Attempt rewrites command with the first matching rule. Later rules are
// never consulted once one matches, and the result is not re-matched.
func (e *Engine) Attempt(command string) Outcome {
	if guard := e.SkipReason(command); guard != "" {
		return Outcome{Reason: ReasonSkipped, Guard: guard}
	}
	for _, r := range e.table.rules {
		if out, ok := r.Apply(command); ok {
			return Outcome{
				Rewritten: true,
				Command:   out,
				Reason:    ReasonMatched,
				Rule:      r.Name,
			}
		}
	}
	return Outcome{Reason: ReasonNoMatch}
}
