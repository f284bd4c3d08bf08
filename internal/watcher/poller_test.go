package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"mailwarden/internal/classify"
	"mailwarden/internal/mailbox"
	"mailwarden/internal/notify"
	"mailwarden/internal/state"
)

type fakeSource struct {
	uids     map[string][]uint32
	listErr  error
	fetchErr map[uint32]error
}

func (f *fakeSource) ListUIDs(_ context.Context, folder string) ([]uint32, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.uids[folder], nil
}

func (f *fakeSource) Fetch(_ context.Context, folder string, uid uint32) (*mailbox.Message, error) {
	if err := f.fetchErr[uid]; err != nil {
		return nil, err
	}
	return &mailbox.Message{
		UID:      uid,
		Folder:   folder,
		Subject:  fmt.Sprintf("Subject %d", uid),
		TextBody: fmt.Sprintf("Body of message %d", uid),
	}, nil
}

type fakeClassifier struct {
	label classify.Label
	err   error
}

func (f *fakeClassifier) Classify(context.Context, string) (classify.Label, error) {
	if f.err != nil {
		return classify.Unknown, f.err
	}
	return f.label, nil
}

type sentNote struct {
	chatKey string
	text    string
	uid     uint32
}

type fakeNotifier struct {
	sent    []sentNote
	failUID uint32 // notifications whose keyboard targets this uid fail
}

func (f *fakeNotifier) Send(_ context.Context, chatKey, text string, kb *notify.InlineKeyboardMarkup) error {
	var uid uint32
	if kb != nil {
		fmt.Sscanf(kb.InlineKeyboard[0][0].CallbackData, "delete_%d", &uid)
	}
	if f.failUID != 0 && uid == f.failUID {
		return errors.New("telegram unreachable")
	}
	f.sent = append(f.sent, sentNote{chatKey: chatKey, text: text, uid: uid})
	return nil
}

type fakeStore struct {
	watermarks map[string]uint32
	sessions   map[string]state.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		watermarks: make(map[string]uint32),
		sessions:   make(map[string]state.Session),
	}
}

func (f *fakeStore) Watermark(_ context.Context, folder string) (uint32, error) {
	return f.watermarks[folder], nil
}

func (f *fakeStore) AdvanceWatermark(_ context.Context, folder string, uid uint32) error {
	if uid > f.watermarks[folder] {
		f.watermarks[folder] = uid
	}
	return nil
}

func (f *fakeStore) PutSession(_ context.Context, s state.Session) error {
	f.sessions[s.ChatKey] = s
	return nil
}

func newTestPoller(src *fakeSource, cls *fakeClassifier, n *fakeNotifier, st *fakeStore, folders ...string) *Poller {
	return NewPoller(src, cls, n, st, state.NewKeyedMutex(), Config{
		Folders: folders,
		ChatKey: "1001",
	})
}

func TestPollOnce_NotifiesInArrivalOrder(t *testing.T) {
	t.Parallel()

	src := &fakeSource{uids: map[string][]uint32{"INBOX": {5, 7, 9}}}
	cls := &fakeClassifier{label: classify.Label{Name: "Newsletter", Confidence: 0.92}}
	n := &fakeNotifier{}
	st := newFakeStore()
	st.watermarks["INBOX"] = 5

	p := newTestPoller(src, cls, n, st, "INBOX")
	p.PollOnce(context.Background(), false)

	if len(n.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(n.sent))
	}
	if n.sent[0].uid != 7 || n.sent[1].uid != 9 {
		t.Errorf("order was %d then %d, want 7 then 9", n.sent[0].uid, n.sent[1].uid)
	}
	if st.watermarks["INBOX"] != 9 {
		t.Errorf("watermark = %d, want 9", st.watermarks["INBOX"])
	}
	if sess := st.sessions["1001"]; sess.UID != 9 || sess.Folder != "INBOX" {
		t.Errorf("session = %+v, want uid 9 in INBOX", sess)
	}
}

func TestPollOnce_StartupReportsOnlyNewest(t *testing.T) {
	t.Parallel()

	src := &fakeSource{uids: map[string][]uint32{"INBOX": {1, 2, 3, 4, 5}}}
	cls := &fakeClassifier{label: classify.Label{Name: "Promotions", Confidence: 0.5}}
	n := &fakeNotifier{}
	st := newFakeStore()

	p := newTestPoller(src, cls, n, st, "INBOX")
	p.PollOnce(context.Background(), true)

	if len(n.sent) != 1 {
		t.Fatalf("sent %d notifications on startup, want 1", len(n.sent))
	}
	if n.sent[0].uid != 5 {
		t.Errorf("startup notified uid %d, want 5", n.sent[0].uid)
	}
	if st.watermarks["INBOX"] != 5 {
		t.Errorf("watermark = %d, want 5", st.watermarks["INBOX"])
	}
}

func TestPollOnce_TransportFailureRetriesNextCycle(t *testing.T) {
	t.Parallel()

	src := &fakeSource{uids: map[string][]uint32{"INBOX": {7, 9}}}
	cls := &fakeClassifier{label: classify.Label{Name: "Banking", Confidence: 0.9}}
	n := &fakeNotifier{failUID: 7}
	st := newFakeStore()

	p := newTestPoller(src, cls, n, st, "INBOX")
	p.PollOnce(context.Background(), false)

	if st.watermarks["INBOX"] != 0 {
		t.Errorf("watermark advanced to %d past an unnotified message", st.watermarks["INBOX"])
	}
	if len(n.sent) != 0 {
		t.Errorf("later messages notified out of order: %+v", n.sent)
	}

	// Transport recovers: the same messages go out on the next cycle.
	n.failUID = 0
	p.PollOnce(context.Background(), false)

	if len(n.sent) != 2 || n.sent[0].uid != 7 || n.sent[1].uid != 9 {
		t.Fatalf("retry cycle sent %+v, want 7 then 9", n.sent)
	}
	if st.watermarks["INBOX"] != 9 {
		t.Errorf("watermark = %d after retry, want 9", st.watermarks["INBOX"])
	}
}

func TestPollOnce_FetchFailureSkipsOnlyThatMessage(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		uids:     map[string][]uint32{"INBOX": {7, 9}},
		fetchErr: map[uint32]error{7: errors.New("malformed MIME")},
	}
	cls := &fakeClassifier{label: classify.Label{Name: "Banking", Confidence: 0.9}}
	n := &fakeNotifier{}
	st := newFakeStore()

	p := newTestPoller(src, cls, n, st, "INBOX")
	p.PollOnce(context.Background(), false)

	if len(n.sent) != 1 || n.sent[0].uid != 9 {
		t.Fatalf("sent %+v, want only uid 9", n.sent)
	}
	if st.watermarks["INBOX"] != 9 {
		t.Errorf("watermark = %d, want 9", st.watermarks["INBOX"])
	}
}

func TestPollOnce_ClassifierFailureStillNotifies(t *testing.T) {
	t.Parallel()

	src := &fakeSource{uids: map[string][]uint32{"INBOX": {7}}}
	cls := &fakeClassifier{err: errors.New("model timeout")}
	n := &fakeNotifier{}
	st := newFakeStore()

	p := newTestPoller(src, cls, n, st, "INBOX")
	p.PollOnce(context.Background(), false)

	if len(n.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(n.sent))
	}
	if !strings.Contains(n.sent[0].text, "Unknown") {
		t.Errorf("notification should carry the Unknown label: %q", n.sent[0].text)
	}
	if !strings.Contains(n.sent[0].text, "0%") {
		t.Errorf("notification should carry 0%% confidence: %q", n.sent[0].text)
	}
}

func TestPollOnce_ListFailureIsolatedPerFolder(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		uids: map[string][]uint32{"INBOX": {7}, "Spam": {3}},
	}
	cls := &fakeClassifier{label: classify.Label{Name: "Spam", Confidence: 0.99}}
	n := &fakeNotifier{}
	st := newFakeStore()

	// First folder errors, second still polls.
	calls := 0
	srcWrapped := &flakySource{inner: src, failFirst: &calls}

	p := NewPoller(srcWrapped, cls, n, st, state.NewKeyedMutex(), Config{
		Folders: []string{"INBOX", "Spam"},
		ChatKey: "1001",
	})
	p.PollOnce(context.Background(), false)

	if len(n.sent) != 1 || n.sent[0].uid != 3 {
		t.Fatalf("sent %+v, want only Spam uid 3", n.sent)
	}
}

// flakySource fails the first ListUIDs call and delegates afterwards.
type flakySource struct {
	inner     *fakeSource
	failFirst *int
}

func (f *flakySource) ListUIDs(ctx context.Context, folder string) ([]uint32, error) {
	*f.failFirst++
	if *f.failFirst == 1 {
		return nil, errors.New("connection reset")
	}
	return f.inner.ListUIDs(ctx, folder)
}

func (f *flakySource) Fetch(ctx context.Context, folder string, uid uint32) (*mailbox.Message, error) {
	return f.inner.Fetch(ctx, folder, uid)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	if got := Summarize("short", 500); got != "short" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("x", 600)
	got := Summarize(long, 500)
	if len(got) != 503 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncated summary wrong: len=%d suffix=%q", len(got), got[len(got)-3:])
	}
}

func TestSummarize_BudgetsRunesNotBytes(t *testing.T) {
	t.Parallel()

	// 200 Devanagari characters are 600 bytes but fit a 500-character budget.
	body := strings.Repeat("क", 200)
	if got := Summarize(body, 500); got != body {
		t.Errorf("multi-byte body within budget was cut: %d bytes returned", len(got))
	}

	got := Summarize(strings.Repeat("क", 600), 500)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a character: trailing bytes %x", got[len(got)-6:])
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != 500 {
		t.Errorf("kept %d characters, want 500", n)
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	if got := Clean("  hello\r\nworld\t again  "); got != "hello world again" {
		t.Errorf("got %q", got)
	}
}

func TestRenderNotification_EscapesDynamicParts(t *testing.T) {
	t.Parallel()

	msg := &mailbox.Message{
		Subject:  "Re: 50% off!",
		TextBody: "Click [here](http://x) now.",
	}
	text := renderNotification(msg, classify.Label{Name: "Promotions", Confidence: 0.75})

	if !strings.Contains(text, `Re: 50% off\!`) {
		t.Errorf("subject not escaped: %q", text)
	}
	if !strings.Contains(text, `\[here\]\(http://x\)`) {
		t.Errorf("summary not escaped: %q", text)
	}
	if !strings.Contains(text, `75\.00%`) {
		t.Errorf("confidence missing: %q", text)
	}
}
