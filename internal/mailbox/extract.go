package mailbox

import (
	"io"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
)

// decodeMessage turns a fetched IMAP message into a Message with a usable
// plain-text body.
func decodeMessage(raw *imap.Message, section *imap.BodySectionName) (*Message, error) {
	msg := &Message{}

	if env := raw.Envelope; env != nil {
		msg.Subject = env.Subject
		msg.MessageID = env.MessageId
		if len(env.From) > 0 && env.From[0] != nil {
			msg.From = env.From[0].Address()
		}
		if len(env.ReplyTo) > 0 && env.ReplyTo[0] != nil {
			msg.ReplyTo = env.ReplyTo[0].Address()
		}
	}

	body := raw.GetBody(section)
	if body == nil {
		// Envelope-only result; a missing body is not fatal for notification.
		return msg, nil
	}

	entity, err := message.Read(body)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}

	text, html := extractBodies(entity)
	msg.TextBody = text
	if msg.TextBody == "" && html != "" {
		converted, err := htmltomarkdown.ConvertString(html)
		if err != nil {
			slog.Warn("HTML body conversion failed", "error", err)
			converted = html
		}
		msg.TextBody = converted
	}

	return msg, nil
}

// extractBodies walks a MIME entity and pulls out the first text/plain and
// text/html parts. Attachments and other parts are ignored.
func extractBodies(entity *message.Entity) (text, html string) {
	mediaType, _, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				break // skip faulty parts
			}

			partMediaType, _, _ := part.Header.ContentType()
			disposition, _, _ := part.Header.ContentDisposition()
			if disposition == "attachment" {
				continue
			}

			if strings.HasPrefix(partMediaType, "multipart/") {
				// Nested alternatives (e.g. mixed > alternative).
				nestedText, nestedHTML := extractBodies(part)
				if text == "" {
					text = nestedText
				}
				if html == "" {
					html = nestedHTML
				}
				continue
			}

			body, err := io.ReadAll(part.Body)
			if err != nil {
				slog.Warn("Failed to read part body", "error", err)
				continue
			}

			switch partMediaType {
			case "text/plain":
				if text == "" {
					text = string(body)
				}
			case "text/html":
				if html == "" {
					html = string(body)
				}
			}
		}

		return text, html
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		slog.Error("Failed to read body", "error", err)
		return "", ""
	}

	switch mediaType {
	case "text/html":
		html = string(body)
	default:
		text = string(body)
	}

	return text, html
}
