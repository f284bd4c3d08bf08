package mailbox

import (
	"context"
	"errors"
)

// Message is a decoded mail message, reduced to what notification and reply
// handling need.
type Message struct {
	UID       uint32
	Folder    string
	Subject   string
	From      string
	ReplyTo   string
	MessageID string
	TextBody  string
}

// ErrNotFound is returned when a referenced UID no longer exists in its
// folder, typically because the message was already deleted or moved.
var ErrNotFound = errors.New("mailbox: message not found")

// Source is the remote mailbox collaborator. Each call acquires and releases
// its own connection; implementations are safe for concurrent use.
type Source interface {
	// ListUIDs returns all message UIDs in folder in ascending order.
	ListUIDs(ctx context.Context, folder string) ([]uint32, error)
	// Fetch retrieves and decodes a single message. HTML-only bodies are
	// converted to plain text.
	Fetch(ctx context.Context, folder string, uid uint32) (*Message, error)
	// Delete marks the message deleted and expunges it.
	Delete(ctx context.Context, folder string, uid uint32) error
	// Move copies the message into label (creating it if absent), then
	// deletes the original. The copy happens first, so a failed move never
	// loses the message.
	Move(ctx context.Context, folder string, uid uint32, label string) error
}
