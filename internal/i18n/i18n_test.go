package i18n

import (
	"context"
	"errors"
	"testing"
)

type fakeLangStore struct {
	codes map[string]string
	err   error
}

func (f *fakeLangStore) Language(_ context.Context, chatKey string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.codes[chatKey], nil
}

func TestT_UsesStoredPreference(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(&fakeLangStore{codes: map[string]string{"1001": "hi"}})

	got := tr.T(context.Background(), "1001", "email_deleted")
	if got != tables["hi"]["email_deleted"] {
		t.Errorf("got %q, want hindi notice", got)
	}
}

func TestT_DefaultsToEnglish(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(&fakeLangStore{codes: map[string]string{}})

	got := tr.T(context.Background(), "1001", "unknown_command")
	if got != tables["en"]["unknown_command"] {
		t.Errorf("got %q, want english notice", got)
	}
}

func TestT_StoreFailureFallsBack(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(&fakeLangStore{err: errors.New("disk on fire")})

	got := tr.T(context.Background(), "1001", "unknown_command")
	if got != tables["en"]["unknown_command"] {
		t.Errorf("got %q, want english notice despite store error", got)
	}
}

func TestLookup_FallbackChain(t *testing.T) {
	t.Parallel()

	// Unknown language falls back to English.
	if got := Lookup("fr", "email_deleted"); got != tables["en"]["email_deleted"] {
		t.Errorf("unknown language: got %q", got)
	}

	// Unknown key falls back to the key itself.
	if got := Lookup("en", "no_such_key"); got != "no_such_key" {
		t.Errorf("unknown key: got %q", got)
	}
}

func TestLookup_FormatsArgs(t *testing.T) {
	t.Parallel()

	got := Lookup("en", "email_moved", "Finance")
	if got != "📁 Email moved to Finance" {
		t.Errorf("got %q", got)
	}
}

func TestSupported(t *testing.T) {
	t.Parallel()

	if !Supported("en") || !Supported("hi") {
		t.Error("en and hi must be supported")
	}
	if Supported("fr") {
		t.Error("fr should not be supported")
	}
}
