package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/rewrite"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <command...>",
	Short: "Print the rtk form of a command",
	Long: `Rewrite prints the command an agent would run instead of the given one.
Unchanged commands are printed as is; use --explain to see why.
Pass "-" to read the command from stdin.

Examples:
  openrtklaw rewrite git log --oneline -5
  openrtklaw rewrite --json "cargo test --release"
  echo 'pnpm vitest run' | openrtklaw rewrite -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRewrite,
}

var (
	rewriteJSON    bool
	rewriteExplain bool
	rewriteRecord  bool
)

func init() {
	rewriteCmd.Flags().BoolVar(&rewriteJSON, "json", false, "print the full outcome as JSON")
	rewriteCmd.Flags().BoolVar(&rewriteExplain, "explain", false, "explain the decision on stderr")
	rewriteCmd.Flags().BoolVar(&rewriteRecord, "record", false, "record the decision in the history and decision log")
	// Everything after the first argument belongs to the command being rewritten.
	rewriteCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(rewriteCmd)
}

func runRewrite(cmd *cobra.Command, args []string) error {
	command := strings.Join(args, " ")
	if command == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading command from stdin: %w", err)
		}
		command = strings.TrimRight(string(data), "\r\n")
	}

	g, err := openGate(rewriteRecord)
	if err != nil {
		return err
	}
	defer g.Close()

	out := g.Rewrite(cmd.Context(), gate.SourceCLI, command)
	if rewriteExplain {
		fmt.Fprintln(cmd.ErrOrStderr(), out.String())
	}
	return printOutcome(cmd.OutOrStdout(), command, out, rewriteJSON)
}

func printOutcome(w io.Writer, command string, out rewrite.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Original string `json:"original"`
			rewrite.Outcome
		}{command, out})
	}
	if out.Rewritten {
		_, err := fmt.Fprintln(w, out.Command)
		return err
	}
	_, err := fmt.Fprintln(w, command)
	return err
}

// openGate builds a gate from Cfg. When record is false the decision log and
// history are left out, so inspection commands do not skew statistics.
func openGate(record bool) (*gate.Gate, error) {
	if record {
		return gate.FromConfig(Cfg, nil, slog.Default())
	}
	engine, err := gate.BuildEngine(Cfg)
	if err != nil {
		return nil, err
	}
	return gate.New(engine, gate.Options{
		Enabled: Cfg.Enabled,
		Verbose: Cfg.Verbose,
		Logger:  slog.Default(),
	}), nil
}

// hookGate is the gate used by the agent-facing entry points. Hooks must not
// block the agent, so a broken configuration falls back to the built-in
// table with a warning.
func hookGate() *gate.Gate {
	g, err := gate.FromConfig(Cfg, nil, slog.Default())
	if err == nil {
		return g
	}
	slog.Warn("invalid rewrite configuration, using built-in rules", "error", err)
	return gate.New(rewrite.New(rewrite.DefaultRules()), gate.Options{
		Enabled: Cfg.Enabled,
		Verbose: Cfg.Verbose,
		Logger:  slog.Default(),
	})
}
