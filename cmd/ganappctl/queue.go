package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Barneycle/ganapp-core/internal/sync/queue"
)

func newQueueCommand(rootOpts *rootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List queued offline mutations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/queue"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			raw, err := newBridgeClient(rootOpts.Addr).get(path)
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return printRaw(cmd, raw)
			}

			var snap queue.Snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return fmt.Errorf("bad response from bridge: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d unapplied, draining: %v\n", snap.Count, snap.Draining)
			if len(snap.Entries) == 0 {
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tOP\tPRIORITY\tSTATUS\tATTEMPTS\tCREATED")
			for _, e := range snap.Entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
					e.ID, e.DataType, e.Operation, e.Priority, e.Status,
					e.Attempts, e.MaxAttempts, e.CreatedAtTime().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter entries by status (pending|in_flight|failed)")

	return cmd
}
