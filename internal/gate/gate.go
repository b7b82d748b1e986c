// Package gate wraps the rewrite engine with the runtime concerns shared by
// every entry point: the enabled toggle, verbose logging, metrics, the
// decision log and rewrite history.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aimagist/openrtklaw/internal/decisionlog"
	"github.com/aimagist/openrtklaw/internal/metrics"
	"github.com/aimagist/openrtklaw/internal/rewrite"
	"github.com/aimagist/openrtklaw/internal/tracking"
)

// Sources identify the entry point that asked for a rewrite.
const (
	SourceClaude   = "claude"
	SourceOpenClaw = "openclaw"
	SourceHTTP     = "http"
	SourceMCP      = "mcp"
	SourceCLI      = "cli"
)

// DisabledGuard is the skip reason reported while the gate is disabled.
const DisabledGuard = "disabled"

// Options configures a Gate. Every collaborator is optional.
type Options struct {
	Enabled   bool
	Verbose   bool // log every rewrite at info level
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Decisions *decisionlog.Logger
	Tracker   *tracking.Tracker
}

// Gate evaluates commands against the current engine. The engine can be
// swapped at runtime with Update.
type Gate struct {
	mu     sync.RWMutex
	engine *rewrite.Engine

	enabled   bool
	verbose   bool
	logger    *slog.Logger
	metrics   *metrics.Metrics
	decisions *decisionlog.Logger
	tracker   *tracking.Tracker
}

// New creates a gate over engine.
func New(engine *rewrite.Engine, opts Options) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		engine:    engine,
		enabled:   opts.Enabled,
		verbose:   opts.Verbose,
		logger:    logger,
		metrics:   opts.Metrics,
		decisions: opts.Decisions,
		tracker:   opts.Tracker,
	}
	g.metrics.SetRulesLoaded(engine.Table().Len())
	return g
}

// Enabled reports whether the gate rewrites at all.
func (g *Gate) Enabled() bool { return g.enabled }

// Engine returns the current engine.
func (g *Gate) Engine() *rewrite.Engine {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine
}

// Rules returns the rules of the current engine in evaluation order.
func (g *Gate) Rules() []rewrite.Rule {
	return g.Engine().Table().Rules()
}

// Update replaces the engine. In-flight attempts finish on the old one.
func (g *Gate) Update(engine *rewrite.Engine) {
	g.mu.Lock()
	g.engine = engine
	g.mu.Unlock()
	g.metrics.SetRulesLoaded(engine.Table().Len())
	g.logger.Info("rule table updated", "rules", engine.Table().Len())
}

// Rewrite decides what to run instead of command. It never fails: errors in
// logging or tracking are reported and the decision stands.
func (g *Gate) Rewrite(ctx context.Context, source, command string) rewrite.Outcome {
	start := time.Now()

	var out rewrite.Outcome
	if !g.enabled {
		out = rewrite.Outcome{Reason: rewrite.ReasonSkipped, Guard: DisabledGuard}
	} else {
		out = g.Engine().Attempt(command)
	}
	took := time.Since(start)

	outcome := decisionlog.OutcomeUnchanged
	if out.Rewritten {
		outcome = decisionlog.OutcomeRewritten
	}
	g.metrics.ObserveDecision(outcome, string(out.Reason), out.Rule, took)

	if out.Rewritten {
		msg := fmt.Sprintf("%s -> %s", command, out.Command)
		if g.verbose {
			g.logger.Info(msg, "source", source, "rule", out.Rule)
		} else {
			g.logger.Debug(msg, "source", source, "rule", out.Rule)
		}
	} else {
		g.logger.Debug("command left unchanged", "source", source, "reason", out.Reason, "guard", out.Guard)
	}

	if g.decisions != nil {
		if err := g.decisions.Log(decisionlog.EntryFromOutcome(source, command, out, took)); err != nil {
			g.logger.Warn("decision log write failed", "error", err)
		}
	}

	if out.Rewritten && g.tracker != nil {
		if err := g.tracker.Start().TrackPassthrough(ctx, command, out.Command); err != nil {
			g.logger.Warn("tracking write failed", "error", err)
		}
	}

	return out
}

// Close releases the decision log and tracker.
func (g *Gate) Close() error {
	var firstErr error
	if g.decisions != nil {
		if err := g.decisions.Close(); err != nil {
			firstErr = err
		}
	}
	if g.tracker != nil {
		if err := g.tracker.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
