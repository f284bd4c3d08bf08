package notify

// Wire types for the Bot API subset the orchestrator uses. Inbound updates
// carry either free text or a callback token from an inline keyboard.

// Update is a single inbound event from the chat transport.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// CallbackQuery is a button tap on an inline keyboard.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// User identifies the operator who sent an update.
type User struct {
	ID int64 `json:"id"`
}

// Chat identifies the conversation an update belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// InlineKeyboardMarkup is a grid of action buttons attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a single tappable action.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// ChatKey extracts the chat key and the operator's input (free text or
// callback token) from an update. ok is false when the update carries
// neither.
func (u *Update) ChatKey() (chatKey, input string, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		return formatID(u.CallbackQuery.From.ID), u.CallbackQuery.Data, true
	case u.Message != nil:
		return formatID(u.Message.Chat.ID), u.Message.Text, true
	default:
		return "", "", false
	}
}
