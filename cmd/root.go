package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mailwarden",
	Short: "Watch a mailbox and orchestrate actions from chat",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Setup logger after flag parsing
		setupLogger()
	},
}

func init() {
	// Add persistent flag to enable verbose logging
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose (info/debug) logging")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	cobra.OnInitialize(initConfig)

	// Register subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(webhookCmd)
	rootCmd.AddCommand(serveCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("No config.yaml found in current directory.",
				"hint", "Run `mailwarden init` to create one interactively.")
		} else {
			slog.Error("Failed to read config", "error", err)
		}
	} else {
		// Validate config after successful load
		validateConfig()
	}
}

func validateConfig() {
	if viper.GetString("telegram.token") == "" {
		slog.Warn("No telegram.token configured - notifications cannot be delivered")
	}
	if viper.GetString("telegram.chat_id") == "" {
		slog.Warn("No telegram.chat_id configured - the watcher has no chat to notify")
	}

	if len(viper.GetStringSlice("watch.folders")) == 0 {
		slog.Warn("No watch.folders configured - defaulting to INBOX and Spam")
	}

	if viper.GetString("classifier.url") == "" {
		slog.Warn("No classifier.url configured - notifications will carry the Unknown category")
	}
	if viper.GetString("assistant.api_key") == "" {
		slog.Warn("No assistant.api_key configured - AI replies will fail")
	}

	if viper.InConfig("webhook") && viper.GetString("webhook.secret_hash") == "" {
		slog.Warn("No webhook.secret_hash configured - the update endpoint accepts unauthenticated requests")
	}
}

func setupLogger() {
	var level slog.Level
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	} else {
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
