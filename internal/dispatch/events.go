package dispatch

import (
	"strconv"
	"strings"
)

// Event is an operator action parsed from an inbound update. Callback tokens
// and free text are interpreted exactly once, here; everything downstream
// works on the typed event.
type Event interface{ isEvent() }

// LanguageMenu asks for the locale picker.
type LanguageMenu struct{}

// SetLanguage selects a locale.
type SetLanguage struct{ Code string }

// Delete requests deletion of a notified message.
type Delete struct{ UID uint32 }

// Archive starts the move-to-label flow for a message.
type Archive struct{ UID uint32 }

// Snooze starts the snooze flow for a message.
type Snooze struct{ UID uint32 }

// Reply asks for an assisted reply draft.
type Reply struct{ UID uint32 }

// SendAI confirms sending the drafted reply.
type SendAI struct{ UID uint32 }

// CancelAI discards the drafted reply.
type CancelAI struct{}

// Text is free text, interpreted against the pending stage if any.
type Text struct{ Body string }

// Malformed is a token with a known action prefix but an unparsable uid. It
// is rejected outright and never interpreted as stage input.
type Malformed struct{ Token string }

func (LanguageMenu) isEvent() {}
func (SetLanguage) isEvent()  {}
func (Delete) isEvent()       {}
func (Archive) isEvent()      {}
func (Snooze) isEvent()       {}
func (Reply) isEvent()        {}
func (SendAI) isEvent()       {}
func (CancelAI) isEvent()     {}
func (Text) isEvent()         {}
func (Malformed) isEvent()    {}

// ParseEvent classifies raw operator input. Anything that is not a known
// command or callback token comes back as Text.
func ParseEvent(input string) Event {
	input = strings.TrimSpace(input)

	switch {
	case input == "/language":
		return LanguageMenu{}
	case input == "cancelai":
		return CancelAI{}
	}

	if code, ok := strings.CutPrefix(input, "lang_"); ok {
		return SetLanguage{Code: code}
	}

	for prefix, build := range uidEvents {
		if rest, ok := strings.CutPrefix(input, prefix); ok {
			if uid, err := strconv.ParseUint(rest, 10, 32); err == nil {
				return build(uint32(uid))
			}
			// A broken uid must not fall through to stage input, where it
			// could be mistaken for a label or duration.
			return Malformed{Token: input}
		}
	}

	return Text{Body: input}
}

var uidEvents = map[string]func(uint32) Event{
	"delete_":  func(uid uint32) Event { return Delete{UID: uid} },
	"archive_": func(uid uint32) Event { return Archive{UID: uid} },
	"snooze_":  func(uid uint32) Event { return Snooze{UID: uid} },
	"reply_":   func(uid uint32) Event { return Reply{UID: uid} },
	"sendai_":  func(uid uint32) Event { return SendAI{UID: uid} },
}
