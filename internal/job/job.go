// Package job delivers verification emails outside the request that
// triggered them, through asynq when Redis is available and on a
// goroutine otherwise.
package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskVerificationEmail is the asynq task type for verification emails.
	TaskVerificationEmail = "email:verification"

	queueCritical = "critical"
	sendTimeout   = 30 * time.Second
)

// VerificationEmail is the task payload.
type VerificationEmail struct {
	To       string `json:"to"`
	Link     string `json:"link"`
	Username string `json:"username"`
}

// EmailSender renders and sends the verification email.
type EmailSender interface {
	SendEmailVerification(ctx context.Context, to, link, username string) error
}

// Dispatcher hands verification emails off for delivery. Enqueue errors are
// for the caller to log; they never reflect delivery failures.
type Dispatcher interface {
	EnqueueVerificationEmail(ctx context.Context, p VerificationEmail) error
	Close() error
}

// NewVerificationEmailTask builds the asynq task for p.
func NewVerificationEmailTask(p VerificationEmail) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskVerificationEmail,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(queueCritical),
		asynq.Timeout(sendTimeout),
	), nil
}
