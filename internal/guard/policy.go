package guard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
)

const (
	// PolicyName is the skip reason reported by Policy guards.
	PolicyName = "policy"

	// PolicyQuery is the Rego rule consulted for every command. It must
	// evaluate to a boolean; undefined means "do not skip".
	PolicyQuery = "data.openrtklaw.skip"

	policyEvalTimeout = time.Second
)

// Policy skips commands for which a Rego policy sets openrtklaw.skip.
//
//	package openrtklaw
//
//	default skip := false
//	skip if startswith(input.command, "terraform ")
type Policy struct {
	query rego.PreparedEvalQuery
	name  string
}

// LoadPolicy reads a Rego module from path and prepares it for evaluation.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	return NewPolicy(filepath.Base(path), string(data))
}

// NewPolicy prepares a Rego module given as source text.
func NewPolicy(name, src string) (*Policy, error) {
	r := rego.New(
		rego.Query(PolicyQuery),
		rego.Module(name, src),
	)
	pq, err := r.PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing skip policy %s: %w", name, err)
	}
	slog.Debug("skip policy prepared", "module", name)
	return &Policy{query: pq, name: name}, nil
}

func (p *Policy) Name() string { return PolicyName }

// Skip evaluates the policy for command. Evaluation errors are logged and
// never cause a skip, so a broken policy degrades to the built-in guards.
func (p *Policy) Skip(command string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), policyEvalTimeout)
	defer cancel()

	skip, err := p.Evaluate(ctx, command)
	if err != nil {
		slog.Warn("skip policy evaluation failed", "module", p.name, "error", err)
		return false
	}
	return skip
}

// Evaluate runs the prepared query for command.
func (p *Policy) Evaluate(ctx context.Context, command string) (bool, error) {
	rs, err := p.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"command": command,
	}))
	if err != nil {
		return false, fmt.Errorf("evaluating %s: %w", PolicyQuery, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	skip, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean, got %T", PolicyQuery, rs[0].Expressions[0].Value)
	}
	return skip, nil
}
