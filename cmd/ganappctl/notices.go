package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Barneycle/ganapp-core/internal/models"
)

func newNoticesCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notices",
		Short: "List unresolved conflict notices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := newBridgeClient(rootOpts.Addr).get("/api/notices")
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return printRaw(cmd, raw)
			}

			var notices []*models.SyncNotice
			if err := json.Unmarshal(raw, &notices); err != nil {
				return fmt.Errorf("bad response from bridge: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(notices) == 0 {
				fmt.Fprintln(out, "no conflict notices")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHEN\tTYPE\tRESOLUTION\tREASON")
			for _, n := range notices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					n.ID, time.Unix(n.CreatedAt, 0).Format(time.DateTime),
					n.DataType, n.Resolution, n.Reason)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(newNoticesDismissCommand(rootOpts))

	return cmd
}

func newNoticesDismissCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <notice-id>",
		Short: "Mark a conflict notice as seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := newBridgeClient(rootOpts.Addr).post("/api/notices/dismiss", map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return printRaw(cmd, raw)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notice %s dismissed\n", args[0])
			return nil
		},
	}
}
