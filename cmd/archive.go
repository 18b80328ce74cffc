package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// archiveCmd is the parent command for snapshot archives.
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect stored snapshot archives",
}

var archiveListCmd = &cobra.Command{
	Use:   "list <feed>",
	Short: "List a feed's archives, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, l, err := loadRuntime()
		if err != nil {
			return err
		}
		archiver, err := newArchiver(ctx, cfg, l)
		if err != nil {
			return err
		}

		entries, err := archiver.List(ctx, args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No archives found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tARCHIVED\tSIZE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\n", e.Key, e.ArchivedAt.Format(time.RFC3339), e.Size)
		}
		return w.Flush()
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print one archive as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, l, err := loadRuntime()
		if err != nil {
			return err
		}
		archiver, err := newArchiver(ctx, cfg, l)
		if err != nil {
			return err
		}

		loaded, err := archiver.Load(ctx, args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(loaded, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	RootCmd.AddCommand(archiveCmd)
}
