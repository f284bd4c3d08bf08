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
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher and the webhook endpoint together",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.InConfig("imap") || !viper.InConfig("telegram") {
			return fmt.Errorf(`configuration missing or incomplete.

Create a config.yaml file by running:
  mailwarden init`)
		}

		slog.Info("Starting serve mode (watcher + webhook)")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return a.poller().Run(ctx)
		})
		g.Go(func() error {
			return a.webhookServer().Start(ctx)
		})

		return g.Wait()
	},
}
