package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [entry-id]",
		Short: "Release failed entries for another attempt",
		Long: `Move failed queue entries back to pending and request a drain. With
an entry id only that entry is released; without one every failed entry
is.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newBridgeClient(rootOpts.Addr)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				raw, err := client.post("/api/sync/retry", map[string]string{"entry_id": args[0]})
				if err != nil {
					return err
				}
				if rootOpts.JSON {
					return printRaw(cmd, raw)
				}
				fmt.Fprintf(out, "entry %s released, drain requested\n", args[0])
				return nil
			}

			raw, err := client.post("/api/sync/retry", nil)
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return printRaw(cmd, raw)
			}
			var response struct {
				Released int64 `json:"released"`
			}
			if err := json.Unmarshal(raw, &response); err != nil {
				return fmt.Errorf("bad response from bridge: %w", err)
			}
			fmt.Fprintf(out, "%d failed entries released, drain requested\n", response.Released)
			return nil
		},
	}
}
