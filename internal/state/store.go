package state

import (
	"context"
	"errors"
	"time"
)

// StageKind identifies which follow-up input a chat is currently waiting for.
type StageKind string

const (
	StageAwaitingCustomLabel    StageKind = "awaiting_custom_label"
	StageAwaitingSnoozeDuration StageKind = "awaiting_snooze_duration"
	StageConfirmAIReply         StageKind = "confirm_ai_reply"
)

// Session is the single actionable message currently associated with a chat.
type Session struct {
	ChatKey   string    `db:"chat_key"`
	UID       uint32    `db:"uid"`
	Folder    string    `db:"folder"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Stage is a pending multi-step interaction for a chat. The payload fields
// are only meaningful for the stage kind that wrote them.
type Stage struct {
	ChatKey string
	Kind    StageKind
	UID     uint32
	Folder  string
	Draft   string
}

// Snooze captures an operator's deferred-notification request. When and how a
// snoozed message resurfaces is deliberately left unspecified; only the
// request itself is recorded.
type Snooze struct {
	ChatKey     string    `db:"chat_key"`
	UID         uint32    `db:"uid"`
	Folder      string    `db:"folder"`
	Duration    string    `db:"duration"`
	RequestedAt time.Time `db:"requested_at"`
}

var (
	// ErrNoSession is returned when a chat has no actionable message.
	ErrNoSession = errors.New("state: no session for chat")
	// ErrNoStage is returned when a chat has no pending stage.
	ErrNoStage = errors.New("state: no stage for chat")
)

// Store is the persistence interface for the four keyed records shared by the
// poller and the dispatcher. Implementations must allow records with
// different keys to be read and written independently.
type Store interface {
	// Watermark returns the highest notified UID for folder, 0 if the folder
	// has never been polled.
	Watermark(ctx context.Context, folder string) (uint32, error)
	// AdvanceWatermark raises the watermark for folder to uid. Calls with
	// uid at or below the current value are no-ops.
	AdvanceWatermark(ctx context.Context, folder string, uid uint32) error

	Session(ctx context.Context, chatKey string) (*Session, error)
	PutSession(ctx context.Context, s Session) error
	ClearSession(ctx context.Context, chatKey string) error

	Stage(ctx context.Context, chatKey string) (*Stage, error)
	PutStage(ctx context.Context, s Stage) error
	ClearStage(ctx context.Context, chatKey string) error

	// Language returns the stored language code for chatKey, or "" if the
	// chat never picked one.
	Language(ctx context.Context, chatKey string) (string, error)
	PutLanguage(ctx context.Context, chatKey, code string) error

	RecordSnooze(ctx context.Context, s Snooze) error

	Close() error
}
