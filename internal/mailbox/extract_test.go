package mailbox

import (
	"strings"
	"testing"

	"github.com/emersion/go-message"
)

func TestExtractBodies_TextAndHtml(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: multipart/alternative; boundary="xyz"

--xyz
Content-Type: text/plain

This is the plain text version.

--xyz
Content-Type: text/html

<b>This is the HTML version.</b>

--xyz--`

	entity, err := message.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	text, html := extractBodies(entity)

	if text != "This is the plain text version.\n" {
		t.Errorf("unexpected text body: %q", text)
	}

	if html != "<b>This is the HTML version.</b>\n" {
		t.Errorf("unexpected HTML body: %q", html)
	}
}

func TestExtractBodies_SinglePartPlain(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: text/plain

Just a body.`

	entity, err := message.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	text, html := extractBodies(entity)
	if text != "Just a body." {
		t.Errorf("unexpected text body: %q", text)
	}
	if html != "" {
		t.Errorf("unexpected HTML body: %q", html)
	}
}

func TestExtractBodies_SkipsAttachments(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: multipart/mixed; boundary="abc"

--abc
Content-Type: text/plain

Covering note.

--abc
Content-Type: application/pdf
Content-Disposition: attachment; filename="invoice.pdf"

%PDF-1.4 fake content

--abc--`

	entity, err := message.Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}

	text, _ := extractBodies(entity)
	if text != "Covering note.\n" {
		t.Errorf("unexpected text body: %q", text)
	}
	if strings.Contains(text, "PDF") {
		t.Errorf("attachment leaked into body: %q", text)
	}
}
