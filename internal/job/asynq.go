package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tfinance/tfinance-api/internal/config"
	"github.com/tfinance/tfinance-api/internal/metrics"
)

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// AsynqDispatcher enqueues verification emails into Redis.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(cfg config.RedisConfig) *AsynqDispatcher {
	return &AsynqDispatcher{client: asynq.NewClient(redisOpt(cfg))}
}

func (d *AsynqDispatcher) EnqueueVerificationEmail(ctx context.Context, p VerificationEmail) error {
	task, err := NewVerificationEmailTask(p)
	if err != nil {
		return fmt.Errorf("building verification task: %w", err)
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueueing verification task: %w", err)
	}
	return nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// Worker processes queued tasks in the same process as the API.
type Worker struct {
	server *asynq.Server
	sender EmailSender
	logger zerolog.Logger
}

func NewWorker(cfg config.RedisConfig, sender EmailSender, log zerolog.Logger) *Worker {
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			queueCritical: 6,
			"default":     3,
		},
	})
	return &Worker{server: server, sender: sender, logger: log}
}

// Start registers the handlers and starts processing in the background.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskVerificationEmail, w.HandleVerificationEmail)

	w.logger.Info().Msg("starting background job server")
	return w.server.Start(mux)
}

// Stop waits for in-flight tasks and stops the server.
func (w *Worker) Stop() {
	w.logger.Info().Msg("stopping background job server")
	w.server.Shutdown()
}

// HandleVerificationEmail decodes the payload and sends the email. A
// returned error makes asynq retry the task.
func (w *Worker) HandleVerificationEmail(ctx context.Context, t *asynq.Task) error {
	var p VerificationEmail
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decoding verification payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := w.sender.SendEmailVerification(ctx, p.To, p.Link, p.Username); err != nil {
		metrics.Emails.WithLabelValues("failed").Inc()
		w.logger.Error().Err(err).Str("to", p.To).Msg("failed to send verification email")
		return err
	}

	metrics.Emails.WithLabelValues("sent").Inc()
	w.logger.Info().Str("to", p.To).Msg("verification email sent")
	return nil
}
