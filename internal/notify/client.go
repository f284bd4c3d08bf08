// Package notify is the chat transport collaborator: it pushes notifications
// and prompts to the operator through the Telegram Bot API and defines the
// wire types for inbound updates.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client sends messages through the Bot API.
type Client struct {
	token   string
	apiBase string
	client  *http.Client
}

// NewClient returns a transport client for the given bot token. apiBase is
// overridable for tests; empty means the hosted API.
func NewClient(token, apiBase string, timeout time.Duration) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		token:   token,
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send delivers text to chatKey, optionally with an inline keyboard. The text
// must already be MarkdownV2-escaped where needed (see Escape).
func (c *Client) Send(ctx context.Context, chatKey, text string, keyboard *InlineKeyboardMarkup) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:      chatKey,
		Text:        text,
		ParseMode:   "MarkdownV2",
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return fmt.Errorf("encoding sendMessage: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling sendMessage: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var result sendMessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decoding sendMessage response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("sendMessage failed (status %d): %s", resp.StatusCode, result.Description)
	}

	return nil
}

// escapeSet are the characters MarkdownV2 requires escaping for.
const escapeSet = `\_*[]()~` + "`" + `>#+-=|{}.!`

// Escape backslash-escapes text for the MarkdownV2 parse mode.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(escapeSet, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ActionKeyboard is the per-notification keyboard keyed by message uid.
func ActionKeyboard(uid uint32) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "🗑️ Delete", CallbackData: fmt.Sprintf("delete_%d", uid)},
				{Text: "📁 Archive", CallbackData: fmt.Sprintf("archive_%d", uid)},
			},
			{
				{Text: "⏰ Snooze", CallbackData: fmt.Sprintf("snooze_%d", uid)},
				{Text: "🤖 AI Reply", CallbackData: fmt.Sprintf("reply_%d", uid)},
			},
		},
	}
}

// ConfirmKeyboard asks the operator to confirm or discard a composed reply.
func ConfirmKeyboard(uid uint32) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "✅ Yes", CallbackData: fmt.Sprintf("sendai_%d", uid)},
				{Text: "❌ No", CallbackData: "cancelai"},
			},
		},
	}
}

// LanguageKeyboard is the locale picker.
func LanguageKeyboard() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "🇬🇧 English", CallbackData: "lang_en"},
				{Text: "🇮🇳 हिन्दी", CallbackData: "lang_hi"},
			},
		},
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
