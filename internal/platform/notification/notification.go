// Package notification provides outbound email delivery for OTP dispatch,
// with an SMTP implementation, a development logger, and a test double.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// OTPMessage composes the subject and body for a session OTP email.
func OTPMessage(otp int) (subject, body string) {
	return "Your OTP for PharmaLink", fmt.Sprintf("Your OTP for PharmaLink is: %d", otp)
}

// ---------------------------------------------------------------------------
// SMTP sender
// ---------------------------------------------------------------------------

// SMTPSender delivers mail through a plain-auth SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SendEmail sends a single message. The context is honored only up to the
// dial; net/smtp does not support mid-session cancellation.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.From, to, subject, body))

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	if err := smtp.SendMail(addr, auth, s.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Log sender (development)
// ---------------------------------------------------------------------------

// LogSender writes mail to the log instead of delivering it. Used in
// development when no SMTP host is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (l *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	l.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email (not sent, development mode)")
	return nil
}

// ---------------------------------------------------------------------------
// Mock sender (test double)
// ---------------------------------------------------------------------------

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
