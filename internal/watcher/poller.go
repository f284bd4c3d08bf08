// Package watcher detects new mail with a per-folder watermark ledger and
// turns each new message into an actionable chat notification.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mailwarden/internal/classify"
	"mailwarden/internal/mailbox"
	"mailwarden/internal/notify"
	"mailwarden/internal/state"
)

// Source is the slice of the mailbox collaborator the poller needs.
type Source interface {
	ListUIDs(ctx context.Context, folder string) ([]uint32, error)
	Fetch(ctx context.Context, folder string, uid uint32) (*mailbox.Message, error)
}

// Notifier delivers a notification to the operator's chat.
type Notifier interface {
	Send(ctx context.Context, chatKey, text string, keyboard *notify.InlineKeyboardMarkup) error
}

// Store is the slice of persisted state the poller touches.
type Store interface {
	Watermark(ctx context.Context, folder string) (uint32, error)
	AdvanceWatermark(ctx context.Context, folder string, uid uint32) error
	PutSession(ctx context.Context, s state.Session) error
}

// UpdateWatcher nudges the poller when the server reports mailbox activity,
// so new mail is picked up ahead of the next tick.
type UpdateWatcher interface {
	WatchUpdates(ctx context.Context, folder string, nudge func()) error
}

// Config wires a Poller.
type Config struct {
	Folders  []string
	ChatKey  string
	Interval time.Duration
	// Updates is optional; nil disables the push accelerator.
	Updates UpdateWatcher
}

// Poller periodically diffs each watched folder against its watermark and
// notifies the operator about every new message, oldest first.
type Poller struct {
	src        Source
	classifier classify.Classifier
	notifier   Notifier
	store      Store
	locks      *state.KeyedMutex
	cfg        Config
	nudge      chan struct{}
}

// NewPoller assembles a Poller from its collaborators.
func NewPoller(src Source, classifier classify.Classifier, notifier Notifier, store Store, locks *state.KeyedMutex, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Poller{
		src:        src,
		classifier: classifier,
		notifier:   notifier,
		store:      store,
		locks:      locks,
		cfg:        cfg,
		nudge:      make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled. The startup pass only reports the single
// newest message per folder so a fresh watermark does not flood the chat.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("Poller starting", "folders", p.cfg.Folders, "interval", p.cfg.Interval)

	if p.cfg.Updates != nil {
		for _, folder := range p.cfg.Folders {
			go p.watchFolder(ctx, folder)
		}
	}

	p.PollOnce(ctx, true)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped")
			return nil
		case <-ticker.C:
			p.PollOnce(ctx, false)
		case <-p.nudge:
			p.PollOnce(ctx, false)
		}
	}
}

// PollOnce runs a single pass over all watched folders. A failure in one
// folder is logged and does not stop the others.
func (p *Poller) PollOnce(ctx context.Context, latestOnly bool) {
	for _, folder := range p.cfg.Folders {
		if err := p.pollFolder(ctx, folder, latestOnly); err != nil {
			slog.Error("Poll cycle failed", "folder", folder, "error", err)
		}
	}
}

func (p *Poller) pollFolder(ctx context.Context, folder string, latestOnly bool) error {
	unlock := p.locks.Lock("folder:" + folder)
	defer unlock()

	watermark, err := p.store.Watermark(ctx, folder)
	if err != nil {
		return fmt.Errorf("reading watermark: %w", err)
	}

	uids, err := p.src.ListUIDs(ctx, folder)
	if err != nil {
		return fmt.Errorf("listing folder: %w", err)
	}

	var newUIDs []uint32
	for _, uid := range uids {
		if uid > watermark {
			newUIDs = append(newUIDs, uid)
		}
	}
	if len(newUIDs) == 0 {
		return nil
	}
	if latestOnly {
		newUIDs = newUIDs[len(newUIDs)-1:]
	}

	slog.Info("New messages detected", "folder", folder, "count", len(newUIDs))

	for _, uid := range newUIDs {
		msg, err := p.src.Fetch(ctx, folder, uid)
		if err != nil {
			// One malformed or vanished message must not block the batch.
			slog.Error("Fetch failed, skipping message", "folder", folder, "uid", uid, "error", err)
			continue
		}

		label := p.classifyMessage(ctx, msg)

		if err := p.notifier.Send(ctx, p.cfg.ChatKey, renderNotification(msg, label), notify.ActionKeyboard(uid)); err != nil {
			// Not marked seen: the whole remainder retries next cycle, which
			// also keeps notifications in arrival order. Duplicate delivery
			// after a crash between notify and advance is accepted.
			return fmt.Errorf("notifying uid %d: %w", uid, err)
		}

		if err := p.writeSession(ctx, uid, folder); err != nil {
			return fmt.Errorf("recording session for uid %d: %w", uid, err)
		}

		if err := p.store.AdvanceWatermark(ctx, folder, uid); err != nil {
			return fmt.Errorf("advancing watermark to %d: %w", uid, err)
		}
	}

	return nil
}

func (p *Poller) classifyMessage(ctx context.Context, msg *mailbox.Message) classify.Label {
	text := Clean(msg.Subject + " " + msg.TextBody)

	label, err := p.classifier.Classify(ctx, text)
	if err != nil {
		slog.Warn("Classification failed", "uid", msg.UID, "error", err)
		return classify.Unknown
	}
	return label
}

func (p *Poller) writeSession(ctx context.Context, uid uint32, folder string) error {
	unlock := p.locks.Lock("chat:" + p.cfg.ChatKey)
	defer unlock()

	return p.store.PutSession(ctx, state.Session{
		ChatKey: p.cfg.ChatKey,
		UID:     uid,
		Folder:  folder,
	})
}

// watchFolder keeps one push-accelerator subscription alive for folder,
// reconnecting with a capped backoff.
func (p *Poller) watchFolder(ctx context.Context, folder string) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.cfg.Updates.WatchUpdates(ctx, folder, func() {
			select {
			case p.nudge <- struct{}{}:
			default: // a poll is already queued
			}
		})
		if ctx.Err() != nil {
			return
		}

		attempt++
		delay := time.Duration(min(attempt, 6)) * 10 * time.Second
		slog.Error("Mailbox update watch failed, reconnecting", "folder", folder, "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// renderNotification builds the MarkdownV2 notification body.
func renderNotification(msg *mailbox.Message, label classify.Label) string {
	subject := notify.Escape(Clean(msg.Subject))
	labelName := notify.Escape(label.Name)
	confidence := notify.Escape(label.ConfidenceString())
	summary := notify.Escape(Summarize(Clean(msg.TextBody), summaryBudget))

	return fmt.Sprintf(
		"📬 *New Email Received\\!*\n\n"+
			"*Subject:* _%s_\n"+
			"*Label:* *%s*\n"+
			"*Model Confidence:* `%s`\n"+
			"*Summary:* %s\n\n"+
			"✨ *Choose an action below\\:*",
		subject, labelName, confidence, summary,
	)
}
