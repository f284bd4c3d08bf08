// Package dispatch interprets inbound operator events against the per-chat
// conversation stage and runs the resulting mailbox mutations. Every event
// receives exactly one acknowledgement; silence is treated as a bug.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mailwarden/internal/i18n"
	"mailwarden/internal/mailbox"
	"mailwarden/internal/notify"
	"mailwarden/internal/state"
)

// Mutator is the slice of the mailbox collaborator the dispatcher needs.
type Mutator interface {
	Fetch(ctx context.Context, folder string, uid uint32) (*mailbox.Message, error)
	Delete(ctx context.Context, folder string, uid uint32) error
	Move(ctx context.Context, folder string, uid uint32, label string) error
}

// Notifier delivers acknowledgements and prompts back to the operator.
type Notifier interface {
	Send(ctx context.Context, chatKey, text string, keyboard *notify.InlineKeyboardMarkup) error
}

// Composer drafts an assisted reply for a message body.
type Composer interface {
	Draft(ctx context.Context, body string) (string, error)
}

// MailSender delivers a confirmed reply through the outbound mail
// collaborator.
type MailSender interface {
	SendReply(r mailbox.Reply) error
}

// Store is the slice of persisted state the dispatcher touches.
type Store interface {
	Session(ctx context.Context, chatKey string) (*state.Session, error)
	PutSession(ctx context.Context, s state.Session) error
	ClearSession(ctx context.Context, chatKey string) error
	Stage(ctx context.Context, chatKey string) (*state.Stage, error)
	PutStage(ctx context.Context, s state.Stage) error
	ClearStage(ctx context.Context, chatKey string) error
	PutLanguage(ctx context.Context, chatKey, code string) error
	RecordSnooze(ctx context.Context, s state.Snooze) error
}

// Dispatcher is the webhook-side half of the orchestrator.
type Dispatcher struct {
	store      Store
	mutator    Mutator
	notifier   Notifier
	composer   Composer
	mailSender MailSender
	translator *i18n.Translator
	locks      *state.KeyedMutex
}

// NewDispatcher assembles a Dispatcher from its collaborators.
func NewDispatcher(store Store, mutator Mutator, notifier Notifier, composer Composer, mailSender MailSender, translator *i18n.Translator, locks *state.KeyedMutex) *Dispatcher {
	return &Dispatcher{
		store:      store,
		mutator:    mutator,
		notifier:   notifier,
		composer:   composer,
		mailSender: mailSender,
		translator: translator,
		locks:      locks,
	}
}

// Handle processes one inbound operator event. Failures are acknowledged to
// the operator and reported back for logging; they never panic and never
// leave the event unanswered.
func (d *Dispatcher) Handle(ctx context.Context, chatKey, input string) error {
	unlock := d.locks.Lock("chat:" + chatKey)
	defer unlock()

	switch ev := ParseEvent(input).(type) {
	case LanguageMenu:
		d.send(ctx, chatKey, d.t(ctx, chatKey, "ask_language"), notify.LanguageKeyboard())
		return nil

	case SetLanguage:
		return d.handleSetLanguage(ctx, chatKey, ev.Code)

	case CancelAI:
		if err := d.store.ClearStage(ctx, chatKey); err != nil {
			return d.fail(ctx, chatKey, "cancel_reply", err)
		}
		d.send(ctx, chatKey, d.t(ctx, chatKey, "cancel_reply"), nil)
		return nil

	case SendAI:
		return d.handleSendAI(ctx, chatKey, ev.UID)

	case Delete:
		return d.handleDelete(ctx, chatKey, ev.UID)

	case Archive:
		return d.handlePrompt(ctx, chatKey, ev.UID, state.StageAwaitingCustomLabel, "choose_label")

	case Snooze:
		return d.handlePrompt(ctx, chatKey, ev.UID, state.StageAwaitingSnoozeDuration, "snooze_prompt")

	case Reply:
		return d.handleReply(ctx, chatKey, ev.UID)

	case Text:
		return d.handleText(ctx, chatKey, ev.Body)

	case Malformed:
		// Any pending stage survives; the operator can still answer it.
		slog.Warn("Malformed action token", "chat", chatKey, "token", ev.Token)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "unknown_command"), nil)
		return nil

	default:
		d.send(ctx, chatKey, d.t(ctx, chatKey, "unknown_command"), nil)
		return nil
	}
}

func (d *Dispatcher) handleSetLanguage(ctx context.Context, chatKey, code string) error {
	if !i18n.Supported(code) {
		d.send(ctx, chatKey, d.t(ctx, chatKey, "unknown_command"), nil)
		return nil
	}
	if err := d.store.PutLanguage(ctx, chatKey, code); err != nil {
		return d.fail(ctx, chatKey, "unknown_command", err)
	}
	d.send(ctx, chatKey, d.t(ctx, chatKey, "language_changed", code), nil)
	return nil
}

func (d *Dispatcher) handleDelete(ctx context.Context, chatKey string, uid uint32) error {
	sess, ok := d.requireSession(ctx, chatKey)
	if !ok {
		return nil
	}

	if err := d.mutator.Delete(ctx, sess.Folder, uid); err != nil {
		slog.Error("Delete failed", "chat", chatKey, "uid", uid, "error", err)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "delete_failed"), nil)
		return nil
	}

	if err := d.store.ClearSession(ctx, chatKey); err != nil {
		return d.fail(ctx, chatKey, "email_deleted", err)
	}
	d.send(ctx, chatKey, d.t(ctx, chatKey, "email_deleted"), nil)
	return nil
}

// handlePrompt enters a follow-up stage (label or snooze duration) for uid.
func (d *Dispatcher) handlePrompt(ctx context.Context, chatKey string, uid uint32, kind state.StageKind, promptKey string) error {
	sess, ok := d.requireSession(ctx, chatKey)
	if !ok {
		return nil
	}

	if err := d.store.PutStage(ctx, state.Stage{
		ChatKey: chatKey,
		Kind:    kind,
		UID:     uid,
		Folder:  sess.Folder,
	}); err != nil {
		return d.fail(ctx, chatKey, "unknown_command", err)
	}

	d.send(ctx, chatKey, d.t(ctx, chatKey, promptKey), nil)
	return nil
}

func (d *Dispatcher) handleReply(ctx context.Context, chatKey string, uid uint32) error {
	sess, ok := d.requireSession(ctx, chatKey)
	if !ok {
		return nil
	}

	msg, err := d.mutator.Fetch(ctx, sess.Folder, uid)
	if errors.Is(err, mailbox.ErrNotFound) {
		d.clearBoth(ctx, chatKey)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "message_unavailable"), nil)
		return nil
	}
	if err != nil {
		slog.Error("Fetch for reply failed", "chat", chatKey, "uid", uid, "error", err)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "ai_error"), nil)
		return nil
	}

	draft, err := d.composer.Draft(ctx, msg.TextBody)
	if err != nil {
		slog.Error("Draft composition failed", "chat", chatKey, "uid", uid, "error", err)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "ai_error"), nil)
		return nil
	}

	if err := d.store.PutStage(ctx, state.Stage{
		ChatKey: chatKey,
		Kind:    state.StageConfirmAIReply,
		UID:     uid,
		Folder:  sess.Folder,
		Draft:   draft,
	}); err != nil {
		return d.fail(ctx, chatKey, "ai_error", err)
	}

	text := fmt.Sprintf("🤖 *AI reply:*\n\n%s\n\n%s",
		notify.Escape(draft),
		d.t(ctx, chatKey, "send_ai_confirm"))
	d.send(ctx, chatKey, text, notify.ConfirmKeyboard(uid))
	return nil
}

func (d *Dispatcher) handleSendAI(ctx context.Context, chatKey string, uid uint32) error {
	stage, err := d.store.Stage(ctx, chatKey)
	if errors.Is(err, state.ErrNoStage) || (err == nil && (stage.Kind != state.StageConfirmAIReply || stage.UID != uid)) {
		// The draft this confirmation refers to is gone.
		d.send(ctx, chatKey, d.t(ctx, chatKey, "message_unavailable"), nil)
		return nil
	}
	if err != nil {
		return d.fail(ctx, chatKey, "ai_error", err)
	}

	msg, err := d.mutator.Fetch(ctx, stage.Folder, stage.UID)
	if errors.Is(err, mailbox.ErrNotFound) {
		d.clearBoth(ctx, chatKey)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "message_unavailable"), nil)
		return nil
	}
	if err != nil {
		slog.Error("Fetch for send failed", "chat", chatKey, "uid", uid, "error", err)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "ai_send_failed"), nil)
		return nil
	}

	to := msg.ReplyTo
	if to == "" {
		to = msg.From
	}

	sendErr := d.mailSender.SendReply(mailbox.Reply{
		To:         to,
		Subject:    msg.Subject,
		Body:       stage.Draft,
		InReplyTo:  msg.MessageID,
		References: msg.MessageID,
	})

	// The stage is finished either way; the operator can tap AI Reply again.
	if err := d.store.ClearStage(ctx, chatKey); err != nil {
		slog.Error("Failed to clear stage", "chat", chatKey, "error", err)
	}

	if sendErr != nil {
		slog.Error("Reply send failed", "chat", chatKey, "uid", uid, "error", sendErr)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "ai_send_failed"), nil)
		return nil
	}

	d.send(ctx, chatKey, d.t(ctx, chatKey, "ai_sent"), nil)
	return nil
}

func (d *Dispatcher) handleText(ctx context.Context, chatKey, body string) error {
	stage, err := d.store.Stage(ctx, chatKey)
	if errors.Is(err, state.ErrNoStage) {
		d.send(ctx, chatKey, d.t(ctx, chatKey, "unknown_command"), nil)
		return nil
	}
	if err != nil {
		return d.fail(ctx, chatKey, "unknown_command", err)
	}

	switch stage.Kind {
	case state.StageAwaitingCustomLabel:
		return d.handleLabelText(ctx, chatKey, stage, body)
	case state.StageAwaitingSnoozeDuration:
		return d.handleSnoozeText(ctx, chatKey, stage, body)
	case state.StageConfirmAIReply:
		// Free text is not a confirmation; the draft stays pending.
		d.send(ctx, chatKey, d.t(ctx, chatKey, "send_ai_confirm"), notify.ConfirmKeyboard(stage.UID))
		return nil
	default:
		slog.Error("Unknown stage kind", "chat", chatKey, "stage", stage.Kind)
		if err := d.store.ClearStage(ctx, chatKey); err != nil {
			slog.Error("Failed to clear stage", "chat", chatKey, "error", err)
		}
		d.send(ctx, chatKey, d.t(ctx, chatKey, "unknown_command"), nil)
		return nil
	}
}

func (d *Dispatcher) handleLabelText(ctx context.Context, chatKey string, stage *state.Stage, body string) error {
	label := strings.TrimSpace(body)
	if label == "" {
		// Re-prompt; the stage stays pending.
		d.send(ctx, chatKey, d.t(ctx, chatKey, "choose_label"), nil)
		return nil
	}

	err := d.mutator.Move(ctx, stage.Folder, stage.UID, label)
	switch {
	case errors.Is(err, mailbox.ErrNotFound):
		d.clearBoth(ctx, chatKey)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "message_unavailable"), nil)
		return nil
	case err != nil:
		slog.Error("Move failed", "chat", chatKey, "uid", stage.UID, "label", label, "error", err)
		if err := d.store.ClearStage(ctx, chatKey); err != nil {
			slog.Error("Failed to clear stage", "chat", chatKey, "error", err)
		}
		d.send(ctx, chatKey, d.t(ctx, chatKey, "move_failed"), nil)
		return nil
	}

	// The actionable message now lives under the new label.
	if err := d.store.PutSession(ctx, state.Session{
		ChatKey: chatKey,
		UID:     stage.UID,
		Folder:  label,
	}); err != nil {
		return d.fail(ctx, chatKey, "move_failed", err)
	}
	if err := d.store.ClearStage(ctx, chatKey); err != nil {
		return d.fail(ctx, chatKey, "move_failed", err)
	}

	d.send(ctx, chatKey, d.t(ctx, chatKey, "email_moved", notify.Escape(label)), nil)
	return nil
}

func (d *Dispatcher) handleSnoozeText(ctx context.Context, chatKey string, stage *state.Stage, body string) error {
	duration, ok := parseSnoozeDuration(body)
	if !ok {
		// Re-prompt; the stage stays pending.
		d.send(ctx, chatKey, d.t(ctx, chatKey, "invalid_duration"), nil)
		return nil
	}

	if err := d.store.RecordSnooze(ctx, state.Snooze{
		ChatKey:  chatKey,
		UID:      stage.UID,
		Folder:   stage.Folder,
		Duration: duration,
	}); err != nil {
		return d.fail(ctx, chatKey, "invalid_duration", err)
	}
	if err := d.store.ClearStage(ctx, chatKey); err != nil {
		return d.fail(ctx, chatKey, "invalid_duration", err)
	}

	d.send(ctx, chatKey, d.t(ctx, chatKey, "snooze_recorded", notify.Escape(duration)), nil)
	return nil
}

// requireSession loads the chat's session, acknowledging with the standard
// notice when there is none.
func (d *Dispatcher) requireSession(ctx context.Context, chatKey string) (*state.Session, bool) {
	sess, err := d.store.Session(ctx, chatKey)
	if errors.Is(err, state.ErrNoSession) {
		d.send(ctx, chatKey, d.t(ctx, chatKey, "no_email_found"), nil)
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to read session", "chat", chatKey, "error", err)
		d.send(ctx, chatKey, d.t(ctx, chatKey, "no_email_found"), nil)
		return nil, false
	}
	return sess, true
}

func (d *Dispatcher) clearBoth(ctx context.Context, chatKey string) {
	if err := d.store.ClearStage(ctx, chatKey); err != nil {
		slog.Error("Failed to clear stage", "chat", chatKey, "error", err)
	}
	if err := d.store.ClearSession(ctx, chatKey); err != nil {
		slog.Error("Failed to clear session", "chat", chatKey, "error", err)
	}
}

// fail acknowledges the operator with noticeKey and returns the underlying
// storage error for logging upstream.
func (d *Dispatcher) fail(ctx context.Context, chatKey, noticeKey string, err error) error {
	d.send(ctx, chatKey, d.t(ctx, chatKey, noticeKey), nil)
	return fmt.Errorf("chat %s: %w", chatKey, err)
}

func (d *Dispatcher) send(ctx context.Context, chatKey, text string, kb *notify.InlineKeyboardMarkup) {
	if err := d.notifier.Send(ctx, chatKey, text, kb); err != nil {
		slog.Error("Failed to notify operator", "chat", chatKey, "error", err)
	}
}

func (d *Dispatcher) t(ctx context.Context, chatKey, key string, args ...any) string {
	return d.translator.T(ctx, chatKey, key, args...)
}

var snoozeWords = regexp.MustCompile(`^(\d+)\s*(m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days)$`)

// parseSnoozeDuration accepts Go duration syntax ("90m", "2h30m") and plain
// "<n> <unit>" phrasings. It returns a normalized representation.
func parseSnoozeDuration(input string) (string, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return "", false
	}

	if dur, err := time.ParseDuration(input); err == nil && dur > 0 {
		return dur.String(), true
	}

	m := snoozeWords.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return "", false
	}

	var unit time.Duration
	switch m[2][0] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	}

	return (time.Duration(n) * unit).String(), true
}
