package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/metrics"
	"github.com/aimagist/openrtklaw/internal/rewrite"
	"github.com/aimagist/openrtklaw/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP rewrite service",
	Long: `Serve exposes the rewrite engine over HTTP for agents and tools that
cannot run a local hook:

  POST /v1/rewrite   {"command": "..."} -> outcome
  GET  /v1/rules     effective rule table
  GET  /healthz      liveness
  GET  /metrics      Prometheus metrics

With server.watch_rules enabled, edits to the custom rules file and the
skip policy are picked up without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("watch", false, "reload rules when the rules or policy file changes")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := Cfg.Validate(); err != nil {
		return err
	}

	addr := Cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr, _ = cmd.Flags().GetString("addr")
	}
	watch := Cfg.Server.WatchRules
	if cmd.Flags().Changed("watch") {
		watch, _ = cmd.Flags().GetBool("watch")
	}

	m := metrics.New()
	g, err := gate.FromConfig(Cfg, m, slog.Default())
	if err != nil {
		return err
	}
	defer closeGate(g)

	if watch {
		paths := []string{Cfg.Rules.File, Cfg.Guards.PolicyFile}
		if Cfg.Rules.File == "" && Cfg.Guards.PolicyFile == "" {
			slog.Warn("rule watching requested but no rules or policy file is configured")
		} else {
			w, err := server.NewRulesWatcher(server.WatcherConfig{
				Paths:   paths,
				Build:   func() (*rewrite.Engine, error) { return gate.BuildEngine(Cfg) },
				Gate:    g,
				Metrics: m,
				Logger:  slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("starting rules watcher: %w", err)
			}
			w.Start()
			defer w.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "openrtklaw %s listening on %s (%d rules)\n", version, addr, len(g.Rules()))
	return server.New(g, m, slog.Default()).ListenAndServe(ctx, addr)
}
