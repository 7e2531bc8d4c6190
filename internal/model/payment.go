package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses as reported by the gateway.
const (
	PaymentPending           = "pending"
	PaymentWaitingForCapture = "waiting_for_capture"
	PaymentSucceeded         = "succeeded"
	PaymentCanceled          = "canceled"
)

// Payment is a premium purchase attempt.
type Payment struct {
	ID                int64
	UserID            int64
	ProviderPaymentID string
	Status            string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	CreatedAt         time.Time
	PaidAt            *time.Time
}

// CreatePaymentResponse is returned after a payment was opened at the gateway.
type CreatePaymentResponse struct {
	PaymentID       string `json:"paymentId"`
	ConfirmationURL string `json:"confirmationUrl"`
	Status          string `json:"status"`
}

// PaymentStatusResponse describes a stored payment.
type PaymentStatusResponse struct {
	PaymentID string          `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"createdAt"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
}

// WebhookNotification is the gateway callback body.
type WebhookNotification struct {
	Type   string          `json:"type"`
	Event  string          `json:"event"`
	Object *WebhookPayment `json:"object"`
}

// WebhookPayment is the payment object embedded in a notification.
type WebhookPayment struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	PaidAt   *time.Time        `json:"paid_at,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
