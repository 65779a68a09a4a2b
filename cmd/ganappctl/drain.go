package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

func newDrainCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run a drain pass now",
		Long: `Push queued mutations to the backend immediately instead of waiting
for the next automatic drain. Refused while the device is offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := newBridgeClient(rootOpts.Addr).post("/api/sync/drain", nil)
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return printRaw(cmd, raw)
			}

			var response struct {
				Status string             `json:"status"`
				Result *queue.DrainResult `json:"result"`
			}
			if err := json.Unmarshal(raw, &response); err != nil {
				return fmt.Errorf("bad response from bridge: %w", err)
			}

			out := cmd.OutOrStdout()
			if response.Status == "already_draining" {
				fmt.Fprintln(out, "a drain is already running, queued work will be picked up")
				return nil
			}
			result := response.Result
			if result == nil {
				result = &queue.DrainResult{}
			}
			fmt.Fprintf(out, "drain complete: %d applied, %d server wins, %d discarded, %d failed, %d released\n",
				result.Applied, result.ServerWins, result.Discarded, result.Failed, result.Released)
			return nil
		},
	}
}
