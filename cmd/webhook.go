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

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Serve the chat update endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.InConfig("imap") || !viper.InConfig("telegram") {
			return fmt.Errorf("config.yaml is missing or incomplete. Run `mailwarden init`")
		}

		slog.Info("Starting webhook endpoint",
			"bind", viper.GetString("webhook.bind"),
			"port", viper.GetString("webhook.port"))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.webhookServer().Start(ctx)
	},
}

func init() {
	webhookCmd.Flags().String("port", "8080", "Port to bind the webhook server to")
	webhookCmd.Flags().String("bind", "127.0.0.1", "Address to bind the webhook server to")

	if err := viper.BindPFlag("webhook.port", webhookCmd.Flags().Lookup("port")); err != nil {
		slog.Error("Failed to bind port flag", "error", err)
	}
	if err := viper.BindPFlag("webhook.bind", webhookCmd.Flags().Lookup("bind")); err != nil {
		slog.Error("Failed to bind bind flag", "error", err)
	}
}
