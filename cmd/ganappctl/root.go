package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds global flags shared by every subcommand.
type rootOptions struct {
	Addr string
	JSON bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ganappctl",
		Short: "Diagnostics for the GanApp sync core",
		Long: `ganappctl drives the sync core through the desktop bridge's localhost
API: connectivity state, the offline queue, manual drains and retries,
and unresolved conflict notices. The inspect command reads a device
database directly and works while the bridge is down.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // main prints the error once
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "http://127.0.0.1:8787", "desktop bridge address")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print raw JSON responses")

	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newQueueCommand(opts))
	cmd.AddCommand(newDrainCommand(opts))
	cmd.AddCommand(newRetryCommand(opts))
	cmd.AddCommand(newNoticesCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))

	return cmd
}
