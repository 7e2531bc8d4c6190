// Package mail renders and delivers transactional email.
package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/config"
)

var ErrEmptyRecipient = errors.New("recipient email address is empty")

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const verificationSubject = "Подтверждение email адреса - T-Finance-Web"

// Mailer renders templates and hands the result to a Sender.
type Mailer struct {
	sender   Sender
	ttlHours int
	now      func() time.Time
}

// NewMailer returns a Mailer; ttlHours is the link validity quoted in the email.
func NewMailer(sender Sender, ttlHours int) *Mailer {
	return &Mailer{sender: sender, ttlHours: ttlHours, now: time.Now}
}

type verificationData struct {
	Username string
	Link     string
	TTLHours int
	Year     int
}

// SendEmailVerification mails the confirmation link to a new user.
func (m *Mailer) SendEmailVerification(ctx context.Context, to, link, username string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}

	var body bytes.Buffer
	err := templates.ExecuteTemplate(&body, "verification.html", verificationData{
		Username: username,
		Link:     link,
		TTLHours: m.ttlHours,
		Year:     m.now().Year(),
	})
	if err != nil {
		return fmt.Errorf("rendering verification email: %w", err)
	}

	return m.sender.Send(ctx, Message{To: to, Subject: verificationSubject, HTML: body.String()})
}

// NewSender builds the Sender selected by mail.provider.
func NewSender(cfg *config.Config, logger zerolog.Logger) (Sender, error) {
	switch cfg.Mail.Provider {
	case "smtp":
		return NewSMTPSender(cfg.SMTP), nil
	case "resend":
		return NewResendSender(cfg.Mail.ResendAPIKey, cfg.SMTP.FromName, cfg.SMTP.From()), nil
	case "log":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}
}
