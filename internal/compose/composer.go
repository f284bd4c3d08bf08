// Package compose builds assisted reply drafts through an external
// text-generation collaborator.
package compose

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// bodyBudget bounds how much of the original message goes into the prompt.
const bodyBudget = 2000

// Signature is the fixed block appended to every draft.
type Signature struct {
	Name     string
	Position string
	Phone    string
	Email    string
}

func (s Signature) render() string {
	lines := []string{"", "", "Best Regards,", ""}
	for _, field := range []string{s.Name, s.Position, s.Phone, s.Email} {
		if field != "" {
			lines = append(lines, field)
		}
	}
	return strings.Join(lines, "\n")
}

// Completer is the text-generation collaborator.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Composer turns an original message body into a confirmed-later draft reply.
type Composer struct {
	completer Completer
	signature Signature
}

// NewComposer returns a Composer using completer and appending signature to
// every draft.
func NewComposer(completer Completer, signature Signature) *Composer {
	return &Composer{completer: completer, signature: signature}
}

// Draft generates a reply draft for the given message body. The caller holds
// the draft in the confirm stage until the operator approves or discards it.
func (c *Composer) Draft(ctx context.Context, body string) (string, error) {
	prompt := "Generate a professional reply to the following email:\n\n" + truncate(cleanBody(body), bodyBudget)

	reply, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating draft: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("generating draft: empty completion")
	}

	return reply + c.signature.render(), nil
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n+`)
	runsOfWS   = regexp.MustCompile(`[ \t]+`)
)

// cleanBody collapses noisy whitespace while keeping paragraph breaks.
func cleanBody(body string) string {
	body = blankLines.ReplaceAllString(body, "\n\n")
	body = runsOfWS.ReplaceAllString(body, " ")
	return strings.TrimSpace(body)
}

// truncate bounds s to limit runes so the cut never splits a character.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
