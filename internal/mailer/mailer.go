// Package mailer sends transactional email.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sync"

	"gopkg.in/gomail.v2"
)

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, username, link string) error
}

var passwordResetTmpl = template.Must(template.New("password_reset").Parse(`<p>Hi {{.Username}},</p>
<p>Someone asked to reset the password of your SocialConnect account.
Use the link below within {{.ValidFor}} to choose a new one:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If this wasn't you, ignore this email. Your password is unchanged.</p>
`))

type resetData struct {
	Username string
	Link     string
	ValidFor string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	validFor string
}

// NewSMTPMailer creates a mailer for host:port. validFor is quoted in the
// reset email, e.g. "30 minutes".
func NewSMTPMailer(host string, port int, username, password, from, validFor string) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(host, port, username, password),
		from:     from,
		validFor: validFor,
	}
}

// SendPasswordReset emails the reset link to the account owner.
func (s *SMTPMailer) SendPasswordReset(ctx context.Context, to, username, link string) error {
	body, err := renderPasswordReset(username, link, s.validFor)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Reset your SocialConnect password")
	m.SetBody("text/html", body)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	return nil
}

func renderPasswordReset(username, link, validFor string) (string, error) {
	var buf bytes.Buffer
	if err := passwordResetTmpl.Execute(&buf, resetData{Username: username, Link: link, ValidFor: validFor}); err != nil {
		return "", fmt.Errorf("render password reset email: %w", err)
	}
	return buf.String(), nil
}

// LogMailer logs messages instead of sending them. It is used when SMTP is
// not configured and in tests.
type LogMailer struct {
	mu     sync.Mutex
	logger *slog.Logger
	sent   []Message
}

// Message is a mail recorded by LogMailer.
type Message struct {
	To       string
	Username string
	Link     string
}

// NewLogMailer returns a LogMailer writing to logger, or slog.Default when nil.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendPasswordReset records the message. The link is not logged.
func (l *LogMailer) SendPasswordReset(ctx context.Context, to, username, link string) error {
	l.mu.Lock()
	l.sent = append(l.sent, Message{To: to, Username: username, Link: link})
	l.mu.Unlock()
	l.logger.InfoContext(ctx, "password reset email (SMTP not configured)", slog.String("to", to))
	return nil
}

// Sent returns a copy of the recorded messages.
func (l *LogMailer) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}
