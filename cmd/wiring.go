package cmd

import (
	"time"

	"github.com/spf13/viper"

	"mailwarden/internal/classify"
	"mailwarden/internal/compose"
	"mailwarden/internal/dispatch"
	"mailwarden/internal/i18n"
	"mailwarden/internal/mailbox"
	"mailwarden/internal/notify"
	"mailwarden/internal/state"
	"mailwarden/internal/watcher"
	"mailwarden/internal/webhook"
)

// app bundles the wired collaborators a subcommand needs. Build it once per
// invocation and close the store when done.
type app struct {
	store      *state.SQLiteStore
	locks      *state.KeyedMutex
	source     *mailbox.IMAPSource
	notifier   *notify.Client
	classifier classify.Classifier
	dispatcher *dispatch.Dispatcher
}

func buildApp() (*app, error) {
	store, err := state.NewSQLiteStore(statePath())
	if err != nil {
		return nil, err
	}

	source := mailbox.NewIMAPSource(mailbox.Config{
		Server:   viper.GetString("imap.server"),
		Port:     viper.GetInt("imap.port"),
		Username: viper.GetString("imap.username"),
		Password: viper.GetString("imap.password"),
		Timeout:  viper.GetDuration("imap.timeout"),
	})

	notifier := notify.NewClient(
		viper.GetString("telegram.token"),
		viper.GetString("telegram.api_base"),
		viper.GetDuration("telegram.timeout"),
	)

	classifier := classify.NewHTTPClassifier(
		viper.GetString("classifier.url"),
		viper.GetDuration("classifier.timeout"),
	)

	completer := compose.NewOpenRouterClient(
		viper.GetString("assistant.url"),
		viper.GetString("assistant.api_key"),
		viper.GetString("assistant.model"),
		viper.GetDuration("assistant.timeout"),
	)
	composer := compose.NewComposer(completer, compose.Signature{
		Name:     viper.GetString("signature.name"),
		Position: viper.GetString("signature.position"),
		Phone:    viper.GetString("signature.phone"),
		Email:    viper.GetString("signature.email"),
	})

	sender := mailbox.NewSMTPSender(mailbox.SMTPConfig{
		Server:   viper.GetString("smtp.server"),
		Port:     viper.GetInt("smtp.port"),
		Security: viper.GetString("smtp.security"),
		Username: viper.GetString("smtp.username"),
		Password: viper.GetString("smtp.password"),
		From:     viper.GetString("smtp.from"),
	})

	locks := state.NewKeyedMutex()

	return &app{
		store:      store,
		locks:      locks,
		source:     source,
		notifier:   notifier,
		classifier: classifier,
		dispatcher: dispatch.NewDispatcher(store, source, notifier, composer, sender,
			i18n.NewTranslator(store), locks),
	}, nil
}

func (a *app) poller() *watcher.Poller {
	cfg := watcher.Config{
		Folders:  watchedFolders(),
		ChatKey:  viper.GetString("telegram.chat_id"),
		Interval: viper.GetDuration("watch.interval"),
	}
	if viper.GetBool("watch.idle") {
		cfg.Updates = a.source
	}
	return watcher.NewPoller(a.source, a.classifier, a.notifier, a.store, a.locks, cfg)
}

func (a *app) webhookServer() *webhook.Server {
	return webhook.NewServer(webhook.Config{
		Bind:       viper.GetString("webhook.bind"),
		Port:       viper.GetString("webhook.port"),
		SecretHash: viper.GetString("webhook.secret_hash"),
	}, a.dispatcher)
}

func (a *app) Close() error {
	return a.store.Close()
}

func statePath() string {
	if path := viper.GetString("state.path"); path != "" {
		return path
	}
	return "mailwarden.db"
}

func watchedFolders() []string {
	if folders := viper.GetStringSlice("watch.folders"); len(folders) > 0 {
		return folders
	}
	return []string{"INBOX", "Spam"}
}

func init() {
	viper.SetDefault("imap.port", 993)
	viper.SetDefault("imap.timeout", 30*time.Second)
	viper.SetDefault("smtp.port", 465)
	viper.SetDefault("smtp.security", "ssl")
	viper.SetDefault("telegram.timeout", 10*time.Second)
	viper.SetDefault("classifier.timeout", 10*time.Second)
	viper.SetDefault("assistant.timeout", 60*time.Second)
	viper.SetDefault("watch.interval", 30*time.Second)
	viper.SetDefault("watch.idle", true)
	viper.SetDefault("webhook.bind", "127.0.0.1")
	viper.SetDefault("webhook.port", "8080")
}
