package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridpoint/tilecached/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Compile a configuration file and report errors",
	Long: `Compile a configuration file without starting the server.

The configuration is parsed, every source and cache is checked, and the
lock directory is probed. The command exits non-zero on the first error.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d tilesets)\n", args[0], len(cfg.Tilesets()))
	return nil
}
