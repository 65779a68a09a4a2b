package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Barneycle/ganapp-core/internal/models"
	"github.com/Barneycle/ganapp-core/internal/store"
)

func newInspectCommand(rootOpts *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read a device database directly",
		Long: `Summarize the offline queue and conflict notices straight from the
SQLite file, without going through the bridge. Useful when the bridge
is down or a device database was copied off for support.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, dbPath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "./data/ganapp.db", "path to the device database")

	return cmd
}

func runInspect(cmd *cobra.Command, dbPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database not found at %s", dbPath)
	}

	st, err := store.Open(dbPath, 5*time.Second)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	entries, err := st.ListQueue()
	if err != nil {
		return err
	}

	counts := map[models.QueueStatus]int{}
	var oldest int64
	for _, e := range entries {
		counts[e.Status]++
		if oldest == 0 || e.CreatedAt < oldest {
			oldest = e.CreatedAt
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "queue: %d unapplied (%d pending, %d in flight, %d failed)\n",
		len(entries), counts[models.QueueStatusPending],
		counts[models.QueueStatusInFlight], counts[models.QueueStatusFailed])
	if oldest > 0 {
		fmt.Fprintf(out, "oldest entry: %s\n", time.Unix(oldest, 0).Format(time.DateTime))
	}

	if counts[models.QueueStatusFailed] > 0 {
		fmt.Fprintln(out, "failed entries:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, e := range entries {
			if e.Status != models.QueueStatusFailed {
				continue
			}
			fmt.Fprintf(w, "  %s\t%s %s\tattempts %d/%d\tnext retry %s\t%s\n",
				e.ID, e.Operation, e.DataType, e.Attempts, e.MaxAttempts,
				time.Unix(e.NextRetryAt, 0).Format(time.DateTime), e.LastError)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	now := time.Now().Unix()
	upcoming, err := st.ListEvents(store.NewFilterBuilder().StartsBetween(now, now+7*24*3600), 50, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "cache: %d events starting within 7 days\n", len(upcoming))

	notices, err := st.ListUnseenNotices()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "notices: %d unresolved conflicts\n", len(notices))
	return nil
}
