package mail

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, fromName, fromEmail string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   (&mail.Address{Name: fromName, Address: fromEmail}).String(),
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrEmptyRecipient
	}

	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
