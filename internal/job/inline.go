package job

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/metrics"
)

// InlineDispatcher sends each email on its own goroutine with a context
// detached from the request.
type InlineDispatcher struct {
	sender EmailSender
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewInlineDispatcher(sender EmailSender, log zerolog.Logger) *InlineDispatcher {
	return &InlineDispatcher{sender: sender, logger: log}
}

func (d *InlineDispatcher) EnqueueVerificationEmail(ctx context.Context, p VerificationEmail) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()

		if err := d.sender.SendEmailVerification(sendCtx, p.To, p.Link, p.Username); err != nil {
			metrics.Emails.WithLabelValues("failed").Inc()
			d.logger.Error().Err(err).Str("to", p.To).Msg("failed to send verification email")
			return
		}
		metrics.Emails.WithLabelValues("sent").Inc()
		d.logger.Info().Str("to", p.To).Msg("verification email sent")
	}()
	return nil
}

// Wait blocks until every dispatched send has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for in-flight sends.
func (d *InlineDispatcher) Close() error {
	d.Wait()
	return nil
}
