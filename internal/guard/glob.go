// Package guard provides configurable skip guards for the rewrite engine.
package guard

import (
	"fmt"

	"github.com/gobwas/glob"
)

// GlobName is the skip reason reported by Glob guards.
const GlobName = "skip-pattern"

// Glob skips commands matching any of a list of glob patterns, e.g.
// "*terraform apply*" or "git push --force*".
type Glob struct {
	patterns []string
	globs    []glob.Glob
}

// NewGlob compiles patterns. An empty list yields a guard that never skips.
func NewGlob(patterns []string) (*Glob, error) {
	g := &Glob{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		compiled, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile skip pattern %q: %w", p, err)
		}
		g.globs = append(g.globs, compiled)
	}
	return g, nil
}

func (g *Glob) Name() string { return GlobName }

// Skip reports whether command matches one of the patterns.
func (g *Glob) Skip(command string) bool {
	for _, compiled := range g.globs {
		if compiled.Match(command) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (g *Glob) Patterns() []string {
	return append([]string(nil), g.patterns...)
}
