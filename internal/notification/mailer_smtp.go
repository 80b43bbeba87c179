package notification

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPMailer sends plain-text mail through an SMTP relay with optional PLAIN auth.
type SMTPMailer struct {
	addr     string
	host     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host string, port int, user, password string) (*SMTPMailer, error) {
	if host == "" {
		return nil, errors.New("smtp mailer: empty host")
	}
	m := &SMTPMailer{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		host:     host,
		sendMail: smtp.SendMail,
	}
	if user != "" {
		m.auth = smtp.PlainAuth("", user, password, host)
	}
	return m, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return fmt.Errorf("smtp mailer: invalid sender %q: %w", msg.From, err)
	}

	raw := buildMIME(msg, time.Now())

	// net/smtp has no context support; run it aside and stop waiting when ctx ends.
	done := make(chan error, 1)
	go func() {
		done <- m.sendMail(m.addr, m.auth, from.Address, msg.To, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp mailer: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(msg Message, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
