package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/tracking"
)

var gainCmd = &cobra.Command{
	Use:   "gain",
	Short: "Show rewrite history and token savings",
	Long: `Gain reports what the rewrite history recorded: totals, the most
frequent commands and savings per day.

Examples:
  openrtklaw gain
  openrtklaw gain --history 20
  openrtklaw gain --weekly --json
  openrtklaw gain --graph`,
	Args: cobra.NoArgs,
	RunE: runGain,
}

var (
	gainHistory int
	gainDaily   bool
	gainWeekly  bool
	gainMonthly bool
	gainGraph   bool
	gainJSON    bool
)

const graphWidth = 40

func init() {
	gainCmd.Flags().IntVar(&gainHistory, "history", 0, "show the N most recent commands")
	gainCmd.Flags().BoolVar(&gainDaily, "daily", false, "break down by day")
	gainCmd.Flags().BoolVar(&gainWeekly, "weekly", false, "break down by week")
	gainCmd.Flags().BoolVar(&gainMonthly, "monthly", false, "break down by month")
	gainCmd.Flags().BoolVar(&gainGraph, "graph", false, "plot tokens saved over the last 30 days")
	gainCmd.Flags().BoolVar(&gainJSON, "json", false, "output as JSON")
	gainCmd.MarkFlagsMutuallyExclusive("history", "daily", "weekly", "monthly", "graph")

	rootCmd.AddCommand(gainCmd)
}

func runGain(cmd *cobra.Command, args []string) error {
	if !Cfg.Tracking.Enabled {
		return fmt.Errorf("tracking is disabled (set tracking.enabled: true)")
	}

	tr, err := tracking.Open(Cfg.Tracking.DBPath, Cfg.Tracking.HistoryDays)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var report any
	var render func(io.Writer) error

	switch {
	case gainHistory > 0:
		recent, err := tr.Recent(ctx, gainHistory)
		if err != nil {
			return err
		}
		report, render = recent, func(w io.Writer) error { return writeRecent(w, recent) }
	case gainDaily, gainWeekly, gainMonthly:
		var (
			periods []tracking.PeriodStats
			label   string
		)
		switch {
		case gainDaily:
			periods, err = tr.AllDays(ctx)
			label = "DAY"
		case gainWeekly:
			periods, err = tr.ByWeek(ctx)
			label = "WEEK"
		default:
			periods, err = tr.ByMonth(ctx)
			label = "MONTH"
		}
		if err != nil {
			return err
		}
		report, render = periods, func(w io.Writer) error { return writePeriods(w, label, periods) }
	default:
		summary, err := tr.Summary(ctx)
		if err != nil {
			return err
		}
		if gainGraph {
			report, render = summary.ByDay, func(w io.Writer) error { return writeGraph(w, summary.ByDay, graphWidth) }
		} else {
			report, render = summary, func(w io.Writer) error { return writeSummary(w, summary) }
		}
	}

	if gainJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	return render(out)
}

func writeSummary(w io.Writer, s *tracking.Summary) error {
	if s.TotalCommands == 0 {
		fmt.Fprintln(w, "No commands recorded yet.")
		return nil
	}

	fmt.Fprintf(w, "Commands:      %d\n", s.TotalCommands)
	fmt.Fprintf(w, "Input tokens:  %s\n", formatTokens(s.TotalInput))
	fmt.Fprintf(w, "Output tokens: %s\n", formatTokens(s.TotalOutput))
	fmt.Fprintf(w, "Tokens saved:  %s (%.1f%%)\n", formatTokens(s.TotalSaved), s.AvgSavingsPct)
	fmt.Fprintf(w, "Exec time:     %dms total, %dms avg\n", s.TotalTimeMS, s.AvgTimeMS)

	if len(s.ByCommand) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nTop commands:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  COMMAND\tCOUNT\tSAVED\tAVG %\tAVG TIME")
	for _, c := range s.ByCommand {
		fmt.Fprintf(tw, "  %s\t%d\t%s\t%.1f\t%dms\n", c.Command, c.Count, formatTokens(c.SavedTokens), c.AvgSavingsPct, c.AvgTimeMS)
	}
	return tw.Flush()
}

func writeRecent(w io.Writer, recent []tracking.CommandRecord) error {
	if len(recent) == 0 {
		fmt.Fprintln(w, "No commands recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCOMMAND\tSAVED\t%")
	for _, r := range recent {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\n", r.Timestamp.Local().Format("2006-01-02 15:04"), r.RtkCmd, formatTokens(r.SavedTokens), r.SavingsPct)
	}
	return tw.Flush()
}

func writePeriods(w io.Writer, label string, periods []tracking.PeriodStats) error {
	if len(periods) == 0 {
		fmt.Fprintln(w, "No commands recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCOMMANDS\tINPUT\tOUTPUT\tSAVED\t%%\n", label)
	for _, p := range periods {
		period := p.Period
		if p.End != "" {
			period += " .. " + p.End
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%.1f\n", period, p.Commands,
			formatTokens(p.InputTokens), formatTokens(p.OutputTokens), formatTokens(p.SavedTokens), p.SavingsPct)
	}
	return tw.Flush()
}

// writeGraph plots saved tokens per day as horizontal bars scaled to width.
func writeGraph(w io.Writer, days []tracking.DaySaved, width int) error {
	if len(days) == 0 {
		fmt.Fprintln(w, "No commands recorded yet.")
		return nil
	}
	peak := 0
	for _, d := range days {
		peak = max(peak, d.SavedTokens)
	}
	for _, d := range days {
		n := 0
		if peak > 0 {
			n = d.SavedTokens * width / peak
		}
		if n == 0 && d.SavedTokens > 0 {
			n = 1
		}
		fmt.Fprintf(w, "%s %-*s %s\n", d.Date, width, strings.Repeat("#", n), formatTokens(d.SavedTokens))
	}
	return nil
}

// formatTokens abbreviates large counts: 950, 12.3K, 4.5M.
func formatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
