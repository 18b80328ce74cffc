package cmd

import (
	"fmt"
	"os"

	"livesync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// configDir is where LoadConfig looks for the .env file.
var configDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "livesync",
	Short: "Live collection sync service",
	Long: `livesync keeps local copies of server-side collections (users, news, transactions)
consistent by loading a full snapshot over REST and applying CREATE/UPDATE/DELETE/BATCH
notifications from a WebSocket push channel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Report through the application's logger rather than plain stderr.
		// Console format suits a CLI; "debug" selects the development config,
		// which prints ISO8601 timestamps instead of epoch seconds.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			// Console encoding keeps the structured fields readable
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Last resort when the logger itself cannot be built
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory containing the .env file")
}
