package cli

import (
	"github.com/spf13/cobra"

	"tenant-backup/src/safety"
)

const defaultConfigPath = "/etc/tenant-backup/config.yaml"

// addGlobalFlags adds the persistent configuration, logging and safety flags.
func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", defaultConfigPath, "Path to the YAML configuration file")
	pf.String("log-level", "info", "Console log verbosity (debug, info, warn, error)")
	pf.Bool("dry-run", false, "Show planned actions without making changes")
	pf.BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	return safety.Options{DryRun: dry, Yes: yes}
}
