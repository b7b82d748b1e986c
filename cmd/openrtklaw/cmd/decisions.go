package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/decisionlog"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Query the rewrite decision log",
	Long: `Decisions reads the JSONL audit log written when decision_log.enabled
is set. Every rewrite is logged; unchanged commands are sampled.`,
}

var decisionsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search logged decisions",
	Long: `Search lists decisions matching all given filters, oldest first.

Examples:
  openrtklaw decisions search --since 24h --outcome rewritten
  openrtklaw decisions search --rule git-status --format json`,
	Args: cobra.NoArgs,
	RunE: runDecisionsSearch,
}

var decisionsShowCmd = &cobra.Command{
	Use:   "show <line>",
	Short: "Show a single decision by line number (1-based)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionsShow,
}

func init() {
	decisionsSearchCmd.Flags().String("since", "", "only entries after this time (RFC3339 or a duration such as 2h)")
	decisionsSearchCmd.Flags().String("source", "", "filter by source: claude, openclaw, http, mcp, cli")
	decisionsSearchCmd.Flags().String("outcome", "", "filter by outcome: rewritten or unchanged")
	decisionsSearchCmd.Flags().String("rule", "", "filter by rule name")
	decisionsSearchCmd.Flags().Int("limit", 50, "maximum number of entries (0 for all)")
	decisionsSearchCmd.Flags().String("format", "text", "output format: text or json")

	decisionsCmd.AddCommand(decisionsSearchCmd)
	decisionsCmd.AddCommand(decisionsShowCmd)
	rootCmd.AddCommand(decisionsCmd)
}

func runDecisionsSearch(cmd *cobra.Command, args []string) error {
	sinceStr, _ := cmd.Flags().GetString("since")
	source, _ := cmd.Flags().GetString("source")
	outcome, _ := cmd.Flags().GetString("outcome")
	rule, _ := cmd.Flags().GetString("rule")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	switch outcome {
	case "", decisionlog.OutcomeRewritten, decisionlog.OutcomeUnchanged:
	default:
		return fmt.Errorf("invalid --outcome %q: must be %s or %s", outcome, decisionlog.OutcomeRewritten, decisionlog.OutcomeUnchanged)
	}

	since, err := parseSince(sinceStr, time.Now())
	if err != nil {
		return err
	}

	entries, err := decisionlog.Search(Cfg.DecisionLog.Path, decisionlog.Filter{
		Since:   since,
		Source:  source,
		Outcome: outcome,
		Rule:    rule,
		Limit:   limit,
	})
	if err != nil {
		return err
	}

	if format == "json" {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return writeEntries(cmd.OutOrStdout(), entries)
}

func runDecisionsShow(cmd *cobra.Command, args []string) error {
	line, err := strconv.Atoi(args[0])
	if err != nil || line < 1 {
		return fmt.Errorf("invalid line number %q", args[0])
	}
	entry, err := decisionlog.ReadEntry(Cfg.DecisionLog.Path, line-1)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// parseSince accepts an RFC3339 timestamp or a duration relative to now.
// An empty string means no lower bound.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC3339 or a duration", s)
	}
	return t, nil
}

func writeEntries(w io.Writer, entries []decisionlog.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching decisions.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSOURCE\tOUTCOME\tRULE/GUARD\tCOMMAND")
	for _, e := range entries {
		detail := e.Rule
		if e.Guard != "" {
			detail = e.Guard
		}
		if detail == "" {
			detail = "-"
		}
		command := e.Original
		if e.Rewritten != "" {
			command = e.Original + " -> " + e.Rewritten
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Source, e.Outcome, detail, command)
	}
	return tw.Flush()
}
