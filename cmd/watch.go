package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchOnce bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch folders for new mail and notify the chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.InConfig("imap") || !viper.InConfig("telegram") {
			return fmt.Errorf(`configuration missing or incomplete.

Create a config.yaml file by running:
  mailwarden init

The configuration file should be in your current directory and contain:
- IMAP server settings (to read the mailbox)
- Telegram bot settings (to deliver notifications)
- Folders to watch for new mail`)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if watchOnce {
			slog.Info("Running a single watch pass")
			a.poller().PollOnce(ctx, false)
			return nil
		}

		slog.Info("Starting watch mode", "folders", watchedFolders())
		return a.poller().Run(ctx)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run a single pass and exit")
}
