package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"livesync/core/config"
	"livesync/core/reconcile"
	"livesync/core/session"
	"livesync/feature/feeds"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var echoSnapshots bool

// watchCmd follows a single feed and logs every published snapshot.
var watchCmd = &cobra.Command{
	Use:   "watch <feed>",
	Short: "Follow one feed and log every snapshot",
	Long: `Runs a single sync session without the HTTP server and logs each new snapshot.

Examples:
  # Log versions and sizes
  livesync watch users

  # Also print every snapshot as JSON on stdout
  livesync watch news --echo`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&echoSnapshots, "echo", false, "Print every snapshot as JSON")
	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, l, err := loadRuntime()
	if err != nil {
		return err
	}
	defer l.Sync()

	feed, err := feedByName(cfg, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, closeChannels, err := feeds.Open(ctx, []config.NamedFeed{feed}, feeds.Deps{
		Credentials: cfg.Auth,
		StateHook: func(name string, state session.State) {
			l.Info("Session state", zap.String("feed", name), zap.String("state", string(state)))
		},
		OnPublish: func(name string, snap *reconcile.Snapshot) {
			l.Info("Snapshot published", zap.String("feed", name), zap.Uint64("version", snap.Version()), zap.Int("entities", snap.Len()))
			if echoSnapshots {
				data, err := json.Marshal(snap)
				if err != nil {
					l.Error("Failed to encode snapshot", zap.Error(err))
					return
				}
				fmt.Println(string(data))
			}
		},
		Logger: l,
	})
	if err != nil {
		return err
	}
	defer closeChannels()

	return feeds.NewService(l, nil, sessions...).Run(ctx)
}
