package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for invalid values and returns a
// descriptive error if any field is incorrect.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Rules.Mode) {
	case "", "append", "prepend", "replace":
		// ok
	default:
		errs = append(errs, fmt.Sprintf("invalid rules.mode %q: must be append, prepend or replace", c.Rules.Mode))
	}
	if strings.EqualFold(c.Rules.Mode, "replace") && c.Rules.File == "" {
		errs = append(errs, "rules.mode \"replace\" requires rules.file")
	}

	for i, p := range c.Guards.SkipPatterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Sprintf("guards.skip_patterns[%d] must not be empty", i))
		}
	}

	if c.Tracking.Enabled {
		if c.Tracking.DBPath == "" {
			errs = append(errs, "tracking.db_path must be set when tracking is enabled")
		}
		if c.Tracking.HistoryDays < 1 {
			errs = append(errs, fmt.Sprintf("tracking.history_days must be >= 1, got %d", c.Tracking.HistoryDays))
		}
	}

	if c.DecisionLog.Enabled {
		if c.DecisionLog.Path == "" {
			errs = append(errs, "decision_log.path must be set when the decision log is enabled")
		}
		if c.DecisionLog.MaxSizeMB < 1 {
			errs = append(errs, fmt.Sprintf("decision_log.max_size_mb must be >= 1, got %d", c.DecisionLog.MaxSizeMB))
		}
	}
	if c.DecisionLog.SampleUnchanged < 0 {
		errs = append(errs, fmt.Sprintf("decision_log.sample_unchanged must be >= 0, got %d", c.DecisionLog.SampleUnchanged))
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		errs = append(errs, fmt.Sprintf("invalid server.addr %q: %v", c.Server.Addr, err))
	}

	switch c.Logging.Format {
	case "text", "json":
		// ok
	default:
		errs = append(errs, fmt.Sprintf("invalid logging.format %q: must be \"text\" or \"json\"", c.Logging.Format))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		// ok
	default:
		errs = append(errs, fmt.Sprintf("invalid logging.level %q: must be debug, info, warn, or error", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return nil
}
