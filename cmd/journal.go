package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"livesync/core/database"
	"livesync/core/journal"

	"github.com/spf13/cobra"
)

var journalLimit int

// journalCmd prints recent reconciliation anomalies.
var journalCmd = &cobra.Command{
	Use:   "journal [feed]",
	Short: "Show recent reconciliation anomalies",
	Long: `Reads the anomaly journal (duplicate creates, update misses, unknown kinds,
malformed notifications). Without a feed name every feed is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}

		feed := ""
		if len(args) == 1 {
			feed = args[0]
		}
		records, err := journal.Recent(context.Background(), db, feed, journalLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No anomalies recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tFEED\tTYPE\tKIND\tID\tDETAIL")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.OccurredAt.Format(time.RFC3339), r.Feed, r.Type, r.Kind, r.EntityID, r.Detail)
		}
		return w.Flush()
	},
}

func init() {
	journalCmd.Flags().IntVar(&journalLimit, "limit", 50, "Maximum records shown")
	RootCmd.AddCommand(journalCmd)
}
