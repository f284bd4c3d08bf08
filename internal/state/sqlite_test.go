package state

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// newTestStore creates an in-memory store with all migrations applied and
// closes it when the test completes.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

func TestWatermark_DefaultsToZero(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	uid, err := s.Watermark(ctx, "INBOX")
	if err != nil {
		t.Fatalf("reading watermark: %v", err)
	}
	if uid != 0 {
		t.Errorf("expected 0 for unseen folder, got %d", uid)
	}
}

func TestAdvanceWatermark_Monotonic(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	steps := []struct {
		advance uint32
		want    uint32
	}{
		{advance: 5, want: 5},
		{advance: 9, want: 9},
		{advance: 7, want: 9}, // lower uid must not regress the ledger
		{advance: 9, want: 9}, // equal uid is a no-op
		{advance: 12, want: 12},
	}

	for _, step := range steps {
		if err := s.AdvanceWatermark(ctx, "INBOX", step.advance); err != nil {
			t.Fatalf("advancing to %d: %v", step.advance, err)
		}
		got, err := s.Watermark(ctx, "INBOX")
		if err != nil {
			t.Fatalf("reading watermark: %v", err)
		}
		if got != step.want {
			t.Errorf("after advance(%d): got %d, want %d", step.advance, got, step.want)
		}
	}
}

func TestWatermark_IndependentPerFolder(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AdvanceWatermark(ctx, "INBOX", 42); err != nil {
		t.Fatalf("advancing INBOX: %v", err)
	}

	uid, err := s.Watermark(ctx, "Spam")
	if err != nil {
		t.Fatalf("reading Spam watermark: %v", err)
	}
	if uid != 0 {
		t.Errorf("Spam watermark affected by INBOX advance: got %d", uid)
	}
}

func TestSession_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Session(ctx, "1001"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	if err := s.PutSession(ctx, Session{ChatKey: "1001", UID: 42, Folder: "INBOX"}); err != nil {
		t.Fatalf("putting session: %v", err)
	}

	sess, err := s.Session(ctx, "1001")
	if err != nil {
		t.Fatalf("reading session: %v", err)
	}
	if sess.UID != 42 || sess.Folder != "INBOX" {
		t.Errorf("unexpected session: %+v", sess)
	}

	// Overwrite replaces, one session per chat key.
	if err := s.PutSession(ctx, Session{ChatKey: "1001", UID: 43, Folder: "Finance"}); err != nil {
		t.Fatalf("overwriting session: %v", err)
	}
	sess, err = s.Session(ctx, "1001")
	if err != nil {
		t.Fatalf("re-reading session: %v", err)
	}
	if sess.UID != 43 || sess.Folder != "Finance" {
		t.Errorf("overwrite not applied: %+v", sess)
	}

	if err := s.ClearSession(ctx, "1001"); err != nil {
		t.Fatalf("clearing session: %v", err)
	}
	if _, err := s.Session(ctx, "1001"); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after clear, got %v", err)
	}

	// Clearing an absent session is not an error.
	if err := s.ClearSession(ctx, "1001"); err != nil {
		t.Errorf("clearing absent session: %v", err)
	}
}

func TestStage_RoundTripAndSingle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Stage(ctx, "1001"); !errors.Is(err, ErrNoStage) {
		t.Fatalf("expected ErrNoStage, got %v", err)
	}

	if err := s.PutStage(ctx, Stage{
		ChatKey: "1001",
		Kind:    StageAwaitingCustomLabel,
		UID:     42,
		Folder:  "INBOX",
	}); err != nil {
		t.Fatalf("putting stage: %v", err)
	}

	st, err := s.Stage(ctx, "1001")
	if err != nil {
		t.Fatalf("reading stage: %v", err)
	}
	if st.Kind != StageAwaitingCustomLabel || st.UID != 42 || st.Folder != "INBOX" {
		t.Errorf("unexpected stage: %+v", st)
	}

	// A second put replaces the pending stage, never stacks a new one.
	if err := s.PutStage(ctx, Stage{
		ChatKey: "1001",
		Kind:    StageConfirmAIReply,
		UID:     42,
		Folder:  "INBOX",
		Draft:   "Dear sender,",
	}); err != nil {
		t.Fatalf("replacing stage: %v", err)
	}

	st, err = s.Stage(ctx, "1001")
	if err != nil {
		t.Fatalf("re-reading stage: %v", err)
	}
	if st.Kind != StageConfirmAIReply || st.Draft != "Dear sender," {
		t.Errorf("replacement not applied: %+v", st)
	}

	if err := s.ClearStage(ctx, "1001"); err != nil {
		t.Fatalf("clearing stage: %v", err)
	}
	if _, err := s.Stage(ctx, "1001"); !errors.Is(err, ErrNoStage) {
		t.Errorf("expected ErrNoStage after clear, got %v", err)
	}
}

func TestLanguage_DefaultEmpty(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	code, err := s.Language(ctx, "1001")
	if err != nil {
		t.Fatalf("reading language: %v", err)
	}
	if code != "" {
		t.Errorf("expected empty code for fresh chat, got %q", code)
	}

	if err := s.PutLanguage(ctx, "1001", "hi"); err != nil {
		t.Fatalf("putting language: %v", err)
	}
	code, err = s.Language(ctx, "1001")
	if err != nil {
		t.Fatalf("re-reading language: %v", err)
	}
	if code != "hi" {
		t.Errorf("got %q, want hi", code)
	}
}

func TestRecordSnooze_Upserts(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordSnooze(ctx, Snooze{ChatKey: "1001", UID: 42, Folder: "INBOX", Duration: "2h"}); err != nil {
		t.Fatalf("recording snooze: %v", err)
	}
	// Re-recording the same message updates rather than failing.
	if err := s.RecordSnooze(ctx, Snooze{ChatKey: "1001", UID: 42, Folder: "INBOX", Duration: "4h"}); err != nil {
		t.Fatalf("re-recording snooze: %v", err)
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("chat-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("lost updates under same-key lock: got %d", counter)
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()

	unlockA := km.Lock("chat-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("chat-b")
		unlockB()
		close(done)
	}()

	<-done // would deadlock if keys shared a mutex
}
