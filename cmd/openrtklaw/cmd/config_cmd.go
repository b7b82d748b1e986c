package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/aimagist/openrtklaw/internal/config"
	"github.com/aimagist/openrtklaw/internal/gate"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and initialize openrtklaw configuration",
	Long: `Config provides subcommands for the configuration file at
~/.config/openrtklaw/config.yaml. Every key can be overridden with an
OPENRTKLAW_ environment variable, e.g. OPENRTKLAW_RULES_MODE=prepend.

Examples:
  openrtklaw config init
  openrtklaw config show
  openrtklaw config validate`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the files it references",
	Long: `Validate checks configuration values, then builds the rule table so
that broken rule files, glob patterns and policies are reported too.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var initForce bool

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil {
		if !initForce {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing existing config: %w", err)
		}
	}

	written, err := config.WriteDefault(path)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", written)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(Cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if err := Cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "ERROR %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}

	engine, err := gate.BuildEngine(Cfg)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "ERROR %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%d rules).\n", engine.Table().Len())
	return nil
}
