// Package mailer sends password-reset mail. The transport is an opaque
// collaborator behind the Mailer interface so handlers and tests never
// need a live SMTP server.
package mailer

import (
	"fmt"
	"log/slog"

	gomail "gopkg.in/gomail.v2"
)

type Mailer interface {
	SendPasswordReset(to, name, resetLink string) error
}

// SMTP delivers through a configured SMTP relay.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(host string, port int, user, pass, from string) *SMTP {
	return &SMTP{dialer: gomail.NewDialer(host, port, user, pass), from: from}
}

func (s *SMTP) SendPasswordReset(to, name, resetLink string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Password Reset Request")
	m.SetBody("text/html", fmt.Sprintf(
		"<h2>Password Reset</h2>"+
			"<p>Hi %s,</p>"+
			"<p>You requested a password reset. Click the link below to reset your password:</p>"+
			`<a href="%s">Reset Password</a>`+
			"<p>The link expires in one hour. If you did not request this, ignore this email.</p>",
		name, resetLink))
	return s.dialer.DialAndSend(m)
}

// Log is the dev-mode mailer: it logs the reset link instead of sending.
type Log struct {
	Logger *slog.Logger
}

func (l Log) SendPasswordReset(to, _ string, resetLink string) error {
	l.Logger.Info("password reset link (smtp not configured)", "to", to, "link", resetLink)
	return nil
}
