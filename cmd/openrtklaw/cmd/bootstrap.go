package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aimagist/openrtklaw/internal/bootstrap"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Print or inject the RTK awareness document",
	Long: `Bootstrap prints the document that tells agents about rtk meta
commands (rtk gain, rtk discover, rtk proxy).

With --event it acts as the OpenClaw agent:bootstrap hook: an event is read
on stdin and written back with ` + bootstrap.FileName + ` appended to its bootstrap files.

Examples:
  openrtklaw bootstrap --render
  openrtklaw bootstrap --write .
  openrtklaw bootstrap --event < event.json`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

var (
	bootstrapEvent  bool
	bootstrapRender bool
	bootstrapWidth  int
	bootstrapWrite  string
)

func init() {
	bootstrapCmd.Flags().BoolVar(&bootstrapEvent, "event", false, "read an agent:bootstrap event on stdin and inject the document")
	bootstrapCmd.Flags().BoolVar(&bootstrapRender, "render", false, "render the markdown for the terminal")
	bootstrapCmd.Flags().IntVar(&bootstrapWidth, "width", 80, "word wrap width for --render")
	bootstrapCmd.Flags().StringVar(&bootstrapWrite, "write", "", "write "+bootstrap.FileName+" into this directory")

	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	if bootstrapEvent {
		return bootstrap.Run(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	doc := bootstrap.Awareness()

	if bootstrapWrite != "" {
		path := filepath.Join(bootstrapWrite, bootstrap.FileName)
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	}

	if bootstrapRender {
		rendered, err := bootstrap.Render(doc, bootstrapWidth)
		if err != nil {
			return err
		}
		doc = rendered
	}
	fmt.Fprint(cmd.OutOrStdout(), doc)
	return nil
}
