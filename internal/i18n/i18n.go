// Package i18n selects the translation table for outward messages based on
// each chat's stored language preference.
package i18n

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultLanguage is used when a chat never picked a locale.
const DefaultLanguage = "en"

// LanguageStore reads a chat's stored language code ("" when unset).
type LanguageStore interface {
	Language(ctx context.Context, chatKey string) (string, error)
}

// Translator resolves message keys against the preference of a chat.
type Translator struct {
	store LanguageStore
}

// NewTranslator returns a Translator backed by store.
func NewTranslator(store LanguageStore) *Translator {
	return &Translator{store: store}
}

// T renders the message key for chatKey, formatting args into the message
// when present. Unknown languages fall back to English; unknown keys fall
// back to the key itself so a missing translation is visible, not silent.
func (t *Translator) T(ctx context.Context, chatKey, key string, args ...any) string {
	code, err := t.store.Language(ctx, chatKey)
	if err != nil {
		slog.Warn("Failed to read language preference", "chat", chatKey, "error", err)
		code = DefaultLanguage
	}
	if code == "" {
		code = DefaultLanguage
	}
	return Lookup(code, key, args...)
}

// Lookup renders key in the given language without consulting a store.
func Lookup(code, key string, args ...any) string {
	table, ok := tables[code]
	if !ok {
		table = tables[DefaultLanguage]
	}

	msg, ok := table[key]
	if !ok {
		if msg, ok = tables[DefaultLanguage][key]; !ok {
			return key
		}
	}

	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// Supported reports whether code has a translation table.
func Supported(code string) bool {
	_, ok := tables[code]
	return ok
}
