// Package yookassa is a minimal client for the YooKassa payments API.
package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tfinance/tfinance-api/internal/config"
)

const maxResponseBody = 1 << 20

var ErrDecode = errors.New("yookassa: undecodable response")

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yookassa api error: %d %s", e.StatusCode, e.Body)
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// Payment is the subset of the gateway payment object the service uses.
type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       *Amount           `json:"amount,omitempty"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	CreatedAt    *time.Time        `json:"created_at,omitempty"`
	PaidAt       *time.Time        `json:"paid_at,omitempty"`
	CapturedAt   *time.Time        `json:"captured_at,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// PaidTime returns paid_at, falling back to captured_at.
func (p *Payment) PaidTime() *time.Time {
	if p.PaidAt != nil {
		return p.PaidAt
	}
	return p.CapturedAt
}

// ConfirmationURL returns the redirect URL for the buyer, if any.
func (p *Payment) ConfirmationURL() string {
	if p.Confirmation == nil {
		return ""
	}
	return p.Confirmation.ConfirmationURL
}

type createPaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

// Client talks to the YooKassa API with basic auth.
type Client struct {
	http      *http.Client
	baseURL   string
	shopID    string
	secretKey string
	returnURL string
}

func NewClient(cfg config.YooKassaConfig) *Client {
	return &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		baseURL:   strings.TrimRight(cfg.APIURL, "/"),
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		returnURL: cfg.ReturnURL,
	}
}

// CreatePayment opens a redirect-confirmed, auto-captured payment.
func (c *Client) CreatePayment(ctx context.Context, amount decimal.Decimal, currency, description string, userID int64) (*Payment, error) {
	body, err := json.Marshal(createPaymentRequest{
		Amount:       Amount{Value: amount.StringFixed(2), Currency: currency},
		Confirmation: Confirmation{Type: "redirect", ReturnURL: c.returnURL},
		Capture:      true,
		Description:  description,
		Metadata:     map[string]string{"user_id": strconv.FormatInt(userID, 10)},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	return c.do(req)
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Payment, error) {
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("yookassa read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var p Payment
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		return nil, ErrDecode
	}
	return &p, nil
}
