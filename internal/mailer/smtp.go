// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

// Package mailer delivers identity lifecycle messages over SMTP.
package mailer

import (
	"bytes"
	"context"
	"net"
	"net/smtp"
	"text/template"

	"github.com/samber/oops"

	"github.com/memoteca/identity/internal/identity"
)

// Config configures the SMTP dispatcher. BaseURL is the public address users
// follow from the mails (verification and reset links are built on it).
type Config struct {
	Addr     string // host:port of the SMTP server
	From     string
	Username string
	Password string
	BaseURL  string
}

var verificationTmpl = template.Must(template.New("verification").Parse(
	"To: {{.To}}\r\n" +
		"From: {{.From}}\r\n" +
		"Subject: Confirme seu e-mail\r\n" +
		"\r\n" +
		"Olá {{.Fullname}},\r\n" +
		"\r\n" +
		"Confirme seu e-mail acessando {{.BaseURL}}/users/verification/{{.Code}}\r\n" +
		"ou informando o código: {{.Code}}\r\n"))

var resetTmpl = template.Must(template.New("reset").Parse(
	"To: {{.To}}\r\n" +
		"From: {{.From}}\r\n" +
		"Subject: Redefinição de senha\r\n" +
		"\r\n" +
		"Olá {{.Fullname}},\r\n" +
		"\r\n" +
		"Use o código {{.Code}} em {{.BaseURL}}/password/reset para redefinir\r\n" +
		"sua senha. O código expira em uma hora.\r\n"))

type mailData struct {
	To       string
	From     string
	Fullname string
	Code     string
	BaseURL  string
}

// sendMailFunc matches smtp.SendMail; swapped in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPDispatcher implements identity.NotificationDispatcher over SMTP.
type SMTPDispatcher struct {
	cfg  Config
	send sendMailFunc
}

// NewSMTPDispatcher creates an SMTPDispatcher.
func NewSMTPDispatcher(cfg Config) (*SMTPDispatcher, error) {
	if cfg.Addr == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("smtp address is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAILER_CONFIG_INVALID").Errorf("from address is required")
	}
	return &SMTPDispatcher{cfg: cfg, send: smtp.SendMail}, nil
}

// SendVerification sends the email-ownership verification message.
func (d *SMTPDispatcher) SendVerification(ctx context.Context, user *identity.User) error {
	if user.VerificationCode == nil {
		return oops.Code("MAILER_NO_CODE").Errorf("user has no verification code")
	}
	return d.deliver(ctx, verificationTmpl, user, *user.VerificationCode)
}

// SendResetInstructions sends the password-reset instructions.
func (d *SMTPDispatcher) SendResetInstructions(ctx context.Context, user *identity.User) error {
	if user.ResetCode == nil {
		return oops.Code("MAILER_NO_CODE").Errorf("user has no reset code")
	}
	return d.deliver(ctx, resetTmpl, user, *user.ResetCode)
}

func (d *SMTPDispatcher) deliver(ctx context.Context, tmpl *template.Template, user *identity.User, code string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAILER_SEND_FAILED").Wrap(err)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, mailData{
		To:       user.Email,
		From:     d.cfg.From,
		Fullname: user.Fullname,
		Code:     code,
		BaseURL:  d.cfg.BaseURL,
	})
	if err != nil {
		return oops.Code("MAILER_TEMPLATE_FAILED").Wrap(err)
	}

	var auth smtp.Auth
	if d.cfg.Username != "" {
		host, _, splitErr := net.SplitHostPort(d.cfg.Addr)
		if splitErr != nil {
			host = d.cfg.Addr
		}
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, host)
	}

	if err := d.send(d.cfg.Addr, auth, d.cfg.From, []string{user.Email}, buf.Bytes()); err != nil {
		return oops.Code("MAILER_SEND_FAILED").
			With("template", tmpl.Name()).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ identity.NotificationDispatcher = (*SMTPDispatcher)(nil)
