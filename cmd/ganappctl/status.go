package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Barneycle/ganapp-core/internal/sync"
)

func newStatusCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := newBridgeClient(rootOpts.Addr).get("/api/sync/status")
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return printRaw(cmd, raw)
			}

			var status sync.Status
			if err := json.Unmarshal(raw, &status); err != nil {
				return fmt.Errorf("bad response from bridge: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "online:    %v\n", status.Online)
			fmt.Fprintf(out, "link:      %v\n", status.Network.Connected)
			fmt.Fprintf(out, "reachable: %v\n", status.Network.Reachable)
			fmt.Fprintf(out, "queued:    %d\n", status.QueueCount)
			fmt.Fprintf(out, "draining:  %v\n", status.Draining)
			return nil
		},
	}
}
