package i18n

// Keys mirror the operator-facing notices. Messages are sent with the
// MarkdownV2 parse mode, so literal text here must stay free of unescaped
// special characters (escaping happens at the send boundary for dynamic
// parts; static notices avoid the reserved set).

var tables = map[string]map[string]string{
	"en": {
		"ask_language":        "🌐 Choose your language:",
		"language_changed":    "✅ Language switched to %s",
		"no_email_found":      "⚠️ No actionable email found for this chat",
		"email_deleted":       "🗑️ Email deleted",
		"delete_failed":       "❌ Could not delete the email",
		"choose_label":        "📁 Send the label name to file this email under",
		"email_moved":         "📁 Email moved to %s",
		"move_failed":         "❌ Could not move the email",
		"snooze_prompt":       "⏰ For how long should I snooze it? Send a duration like 2h or 30m",
		"snooze_recorded":     "⏰ Snoozed for %s",
		"invalid_duration":    "⚠️ That does not look like a duration, try something like 2h or 30m",
		"ai_error":            "🤖 The assistant is unavailable right now",
		"send_ai_confirm":     "Send this reply?",
		"ai_sent":             "✅ Reply sent",
		"ai_send_failed":      "❌ Could not send the reply",
		"cancel_reply":        "🚫 Reply discarded",
		"unknown_command":     "❓ Unknown command",
		"message_unavailable": "⚠️ That message is no longer available",
	},
	"hi": {
		"ask_language":        "🌐 अपनी भाषा चुनें:",
		"language_changed":    "✅ भाषा बदलकर %s कर दी गई",
		"no_email_found":      "⚠️ इस चैट के लिए कोई ईमेल नहीं मिला",
		"email_deleted":       "🗑️ ईमेल हटा दिया गया",
		"delete_failed":       "❌ ईमेल हटाया नहीं जा सका",
		"choose_label":        "📁 इस ईमेल के लिए लेबल का नाम भेजें",
		"email_moved":         "📁 ईमेल %s में ले जाया गया",
		"move_failed":         "❌ ईमेल ले जाया नहीं जा सका",
		"snooze_prompt":       "⏰ कितनी देर के लिए स्नूज़ करूँ? 2h या 30m जैसी अवधि भेजें",
		"snooze_recorded":     "⏰ %s के लिए स्नूज़ किया गया",
		"invalid_duration":    "⚠️ यह अवधि नहीं लगती, 2h या 30m जैसा कुछ भेजें",
		"ai_error":            "🤖 सहायक अभी उपलब्ध नहीं है",
		"send_ai_confirm":     "क्या यह जवाब भेजें?",
		"ai_sent":             "✅ जवाब भेज दिया गया",
		"ai_send_failed":      "❌ जवाब भेजा नहीं जा सका",
		"cancel_reply":        "🚫 जवाब रद्द कर दिया गया",
		"unknown_command":     "❓ अज्ञात कमांड",
		"message_unavailable": "⚠️ वह संदेश अब उपलब्ध नहीं है",
	},
}
