package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/rewrite"
	"github.com/aimagist/openrtklaw/internal/server"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rewrite rules",
	Long: `Rules provides subcommands for listing the effective rule table and
validating custom rule files before they are deployed.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective rules in evaluation order",
	Long: `List prints the rule table after custom rules, mode and disabled
rules from the config have been applied. The first rule that matches a
command wins.`,
	RunE: runRulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a custom rules file",
	Long: `Validate checks a rules YAML file for schema errors, unanchored or
invalid patterns and templates referencing missing capture groups.

Examples:
  openrtklaw rules validate ~/.config/openrtklaw/rules.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesValidate,
}

func init() {
	rulesListCmd.Flags().String("format", "text", "output format: text or json")
	rulesListCmd.Flags().String("family", "", "only show rules of this family (e.g. git, cargo)")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	family, _ := cmd.Flags().GetString("family")

	engine, err := gate.BuildEngine(Cfg)
	if err != nil {
		return err
	}

	infos := server.DescribeRules(engine.Table().Rules())
	if family != "" {
		filtered := infos[:0]
		for _, info := range infos {
			if info.Family == family {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}

	if format == "json" {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	return writeRulesTable(cmd.OutOrStdout(), infos)
}

func writeRulesTable(w io.Writer, infos []server.RuleInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tFAMILY\tPATTERN")
	for i, info := range infos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, info.Name, info.Family, info.Pattern)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d rules\n", len(infos))
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	f, err := rewrite.LoadRulesFile(args[0])
	if err != nil {
		return err
	}

	if errs := rewrite.ValidateRuleFile(f); len(errs) > 0 {
		fmt.Fprintf(out, "%s: %d problem(s)\n", args[0], len(errs))
		for _, e := range errs {
			fmt.Fprintf(out, "  ERROR %s\n", e)
		}
		return fmt.Errorf("rules file %s is invalid", args[0])
	}

	rules, err := f.Compile()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d rule(s) OK\n", args[0], len(rules))
	return nil
}
