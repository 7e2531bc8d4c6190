package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender only logs the recipient and subject. Used in development.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrEmptyRecipient
	}
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("bytes", len(msg.HTML)).
		Msg("email not delivered (log provider)")
	return nil
}
