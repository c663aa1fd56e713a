// Package smtp delivers identity emails over plain SMTP with an HTML body.
package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/goliatone/go-errors"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender shown to recipients, e.g. "CourseKit <no-reply@coursekit.dev>".
	From string
}

// Mailer implements identity.Mailer over net/smtp.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
}

func New(conf Config) *Mailer {
	var auth smtp.Auth
	if conf.Username != "" {
		auth = smtp.PlainAuth("", conf.Username, conf.Password, conf.Host)
	}

	return &Mailer{
		addr: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		auth: auth,
		from: conf.From,
	}
}

// Send delivers a single HTML message. The context is honored up front;
// net/smtp itself does not support cancellation mid-dial.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "mail send canceled")
	}

	msg := buildMessage(m.from, to, subject, htmlBody)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to send email").
			WithMetadata(map[string]any{"to": to})
	}

	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
