package mailbox

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// SMTPConfig holds the outbound mail parameters.
type SMTPConfig struct {
	Server   string
	Port     int
	Security string // "ssl" or "starttls"
	Username string
	Password string
	From     string
}

// Reply is an outbound reply to an existing message.
type Reply struct {
	To         string
	Subject    string
	Body       string
	InReplyTo  string
	References string
}

// SMTPSender sends composed replies through the configured SMTP server.
type SMTPSender struct {
	smtp SMTPConfig
	send func(*gomail.Dialer, *gomail.Message) error
}

// NewSMTPSender returns a sender for the given SMTP account.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		smtp: cfg,
		send: func(d *gomail.Dialer, m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// SendReply sends r, threading it onto the original conversation when the
// original Message-ID is known.
func (s *SMTPSender) SendReply(r Reply) error {
	from := s.smtp.From
	if from == "" {
		from = s.smtp.Username
	}

	subject := r.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", r.To)
	msg.SetHeader("Subject", subject)
	if r.InReplyTo != "" {
		msg.SetHeader("In-Reply-To", r.InReplyTo)
	}
	if r.References != "" {
		msg.SetHeader("References", r.References)
	}
	msg.SetBody("text/plain", r.Body)

	dialer := gomail.NewDialer(s.smtp.Server, s.smtp.Port, s.smtp.Username, s.smtp.Password)
	if s.smtp.Security == "ssl" {
		dialer.SSL = true
	} else {
		dialer.TLSConfig = &tls.Config{ServerName: s.smtp.Server}
	}

	if err := s.send(dialer, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	slog.Info("Sent reply", "to", r.To, "subject", subject)
	return nil
}
