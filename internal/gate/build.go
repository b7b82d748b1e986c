package gate

import (
	"fmt"
	"log/slog"

	"github.com/aimagist/openrtklaw/internal/config"
	"github.com/aimagist/openrtklaw/internal/decisionlog"
	"github.com/aimagist/openrtklaw/internal/guard"
	"github.com/aimagist/openrtklaw/internal/metrics"
	"github.com/aimagist/openrtklaw/internal/rewrite"
	"github.com/aimagist/openrtklaw/internal/tracking"
)

// BuildEngine assembles the effective rule table and guards from cfg:
// built-in rules composed with the custom rules file, minus disabled rules,
// guarded by the configured skip patterns and policy.
func BuildEngine(cfg *config.Config) (*rewrite.Engine, error) {
	mode, err := rewrite.ParseMode(cfg.Rules.Mode)
	if err != nil {
		return nil, err
	}

	var custom []rewrite.Rule
	if cfg.Rules.File != "" {
		f, err := rewrite.LoadRulesFile(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
		if custom, err = f.Compile(); err != nil {
			return nil, fmt.Errorf("compiling rules file %s: %w", cfg.Rules.File, err)
		}
	}

	table, err := rewrite.Compose(rewrite.DefaultRules(), custom, mode, cfg.Rules.Disable)
	if err != nil {
		return nil, err
	}

	var guards []rewrite.Guard
	if len(cfg.Guards.SkipPatterns) > 0 {
		g, err := guard.NewGlob(cfg.Guards.SkipPatterns)
		if err != nil {
			return nil, err
		}
		guards = append(guards, g)
	}
	if cfg.Guards.PolicyFile != "" {
		p, err := guard.LoadPolicy(cfg.Guards.PolicyFile)
		if err != nil {
			return nil, err
		}
		guards = append(guards, p)
	}

	slog.Debug("rewrite engine built",
		"rules", table.Len(),
		"mode", mode,
		"custom", len(custom),
		"disabled", len(cfg.Rules.Disable),
		"guards", len(guards),
	)
	return rewrite.New(table, guards...), nil
}

// FromConfig builds a gate with the collaborators cfg enables. m may be nil.
// The caller owns the returned gate and must Close it.
func FromConfig(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Gate, error) {
	engine, err := BuildEngine(cfg)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Enabled: cfg.Enabled,
		Verbose: cfg.Verbose,
		Logger:  logger,
		Metrics: m,
	}

	if cfg.DecisionLog.Enabled {
		dl, err := decisionlog.New(decisionlog.Config{
			Path:            cfg.DecisionLog.Path,
			MaxSizeMB:       cfg.DecisionLog.MaxSizeMB,
			SampleUnchanged: cfg.DecisionLog.SampleUnchanged,
		})
		if err != nil {
			return nil, err
		}
		opts.Decisions = dl
	}

	if cfg.Tracking.Enabled {
		tr, err := tracking.Open(cfg.Tracking.DBPath, cfg.Tracking.HistoryDays)
		if err != nil {
			// History is best effort; rewriting must keep working.
			slog.Warn("rewrite history disabled", "path", cfg.Tracking.DBPath, "error", err)
		} else {
			opts.Tracker = tr
		}
	}

	return New(engine, opts), nil
}
