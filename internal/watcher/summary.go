package watcher

import (
	"strings"
	"unicode/utf8"
)

// summaryBudget is the character budget for the notification summary line.
const summaryBudget = 500

// Clean collapses a body or subject into a single whitespace-normalized line.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Summarize truncates text to limit characters, appending an ellipsis marker
// when anything was cut. The budget counts runes, so multi-byte scripts get
// the full allowance and the cut never splits a character.
func Summarize(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}
