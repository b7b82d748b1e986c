package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/config"
	"github.com/aimagist/openrtklaw/internal/logging"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Global flag values.
var (
	cfgFile   string
	verbose   bool
	logFormat string
)

// Cfg holds the loaded configuration, available to all subcommands.
var Cfg *config.Config

// SetVersionInfo is called from main to inject build-time version info.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	buildDate = d
	rootCmd.Version = v
	rootCmd.SetVersionTemplate(fmt.Sprintf("openrtklaw version {{.Version}} (commit: %s, built: %s)\n", commit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "openrtklaw",
	Short: "Rewrite agent shell commands into token-saving rtk invocations",
	Long: `openrtklaw intercepts shell commands issued by AI coding agents and
rewrites the ones rtk knows how to filter (git status -> rtk git status).
Commands without a matching rule, already-proxied commands and heredocs
run unchanged.

It plugs into Claude Code (PreToolUse hook), OpenClaw (before_tool_call),
MCP clients and plain HTTP.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr before the config is known.
		logging.Setup(logFormat, "info", verbose)

		var err error
		Cfg, err = config.Load(cfgFile)
		if err != nil {
			if !agentFacing(cmd) {
				return fmt.Errorf("loading config: %w", err)
			}
			slog.Warn("invalid configuration, using defaults", "error", err)
			Cfg = config.Default()
		}

		format := Cfg.Logging.Format
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}
		logging.Setup(format, Cfg.Logging.Level, verbose)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/openrtklaw/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text or json)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("openrtklaw version {{.Version}} (commit: %s, built: %s)\n", commit, buildDate))
}

// agentFacing reports whether cmd is called by an agent on every tool use.
// Those commands must not fail, even with a broken config file.
func agentFacing(cmd *cobra.Command) bool {
	if cmd == bootstrapCmd {
		return bootstrapEvent
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c == hookCmd {
			return true
		}
	}
	return false
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
