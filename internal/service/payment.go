package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tfinance/tfinance-api/internal/metrics"
	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/repository"
	"github.com/tfinance/tfinance-api/internal/yookassa"
)

var (
	ErrAlreadyPremium     = errors.New("premium subscription is already active")
	ErrInvalidWebhook     = errors.New("invalid webhook notification")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrForbidden          = errors.New("access denied")
	ErrGatewayUnavailable = errors.New("payment gateway is unavailable")
)

// PaymentConfig is the premium offer.
type PaymentConfig struct {
	Price        decimal.Decimal
	Currency     string
	DurationDays int
}

// PaymentService sells premium through the payment gateway.
type PaymentService struct {
	users    UserStore
	payments PaymentStore
	gateway  PaymentGateway
	cfg      PaymentConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(users UserStore, payments PaymentStore, gateway PaymentGateway, cfg PaymentConfig, log zerolog.Logger) *PaymentService {
	if cfg.DurationDays <= 0 {
		cfg.DurationDays = 30
	}
	return &PaymentService{
		users:    users,
		payments: payments,
		gateway:  gateway,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePremiumPayment opens a gateway payment for the premium offer.
func (s *PaymentService) CreatePremiumPayment(ctx context.Context, userID int64) (model.CreatePaymentResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.CreatePaymentResponse{}, ErrUserNotFound
		}
		return model.CreatePaymentResponse{}, err
	}
	if user.PremiumActive(s.now()) {
		return model.CreatePaymentResponse{}, ErrAlreadyPremium
	}

	description := fmt.Sprintf("Premium subscription for user %s", user.Login)
	remote, err := s.gateway.CreatePayment(ctx, s.cfg.Price, s.cfg.Currency, description, user.ID)
	if err != nil {
		metrics.Payments.WithLabelValues("gateway_error").Inc()
		return model.CreatePaymentResponse{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	p := &model.Payment{
		UserID:            user.ID,
		ProviderPaymentID: remote.ID,
		Status:            remote.Status,
		Amount:            s.cfg.Price,
		Currency:          s.cfg.Currency,
		Description:       description,
		CreatedAt:         s.now(),
	}
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	if remote.CreatedAt != nil {
		p.CreatedAt = remote.CreatedAt.UTC()
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return model.CreatePaymentResponse{}, fmt.Errorf("store payment %s: %w", remote.ID, err)
	}

	metrics.Payments.WithLabelValues("created").Inc()
	s.log.Info().Int64("user_id", user.ID).Str("payment_id", p.ProviderPaymentID).Msg("premium payment created")

	return model.CreatePaymentResponse{
		PaymentID:       p.ProviderPaymentID,
		ConfirmationURL: remote.ConfirmationURL(),
		Status:          p.Status,
	}, nil
}

// HandleWebhook applies a gateway notification. The notification body is
// only used to find the payment: its state is fetched from the gateway.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte) error {
	var n model.WebhookNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if n.Event == "" || n.Object == nil || n.Object.ID == "" {
		return ErrInvalidWebhook
	}

	stored, err := s.payments.GetByProviderID(ctx, n.Object.ID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			s.log.Warn().Str("payment_id", n.Object.ID).Str("event", n.Event).Msg("webhook for unknown payment")
			return ErrPaymentNotFound
		}
		return err
	}

	remote, err := s.gateway.GetPayment(ctx, stored.ProviderPaymentID)
	if err != nil {
		metrics.Payments.WithLabelValues("gateway_error").Inc()
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.log.Info().Str("payment_id", stored.ProviderPaymentID).Str("event", n.Event).Str("status", remote.Status).Msg("webhook received")
	return s.apply(ctx, stored, remote, n.Object.PaidAt)
}

// GetStatus returns a payment owned by userID, refreshing it from the
// gateway while it is pending.
func (s *PaymentService) GetStatus(ctx context.Context, userID int64, providerID string) (model.PaymentStatusResponse, error) {
	p, err := s.payments.GetByProviderID(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return model.PaymentStatusResponse{}, ErrPaymentNotFound
		}
		return model.PaymentStatusResponse{}, err
	}
	if p.UserID != userID {
		return model.PaymentStatusResponse{}, ErrForbidden
	}

	if p.Status == model.PaymentPending {
		remote, err := s.gateway.GetPayment(ctx, p.ProviderPaymentID)
		if err != nil {
			s.log.Warn().Err(err).Str("payment_id", p.ProviderPaymentID).Msg("payment refresh failed")
		} else if err := s.apply(ctx, p, remote, nil); err != nil {
			s.log.Error().Err(err).Str("payment_id", p.ProviderPaymentID).Msg("failed to store refreshed payment")
		}
	}

	return model.PaymentStatusResponse{
		PaymentID: p.ProviderPaymentID,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		CreatedAt: p.CreatedAt,
		PaidAt:    p.PaidAt,
	}, nil
}

// apply stores the gateway's view of p and grants premium on success.
// p is updated in place.
func (s *PaymentService) apply(ctx context.Context, p *model.Payment, remote *yookassa.Payment, notifiedPaidAt *time.Time) error {
	if remote.Status == "" {
		return nil
	}
	if remote.Status == p.Status && (remote.Status != model.PaymentSucceeded || p.PaidAt != nil) {
		return nil
	}

	if remote.Status != model.PaymentSucceeded {
		if err := s.payments.UpdateStatus(ctx, p.ID, remote.Status, nil); err != nil {
			return err
		}
		p.Status = remote.Status
		metrics.Payments.WithLabelValues(remote.Status).Inc()
		return nil
	}

	paidAt := remote.PaidTime()
	if paidAt == nil {
		paidAt = notifiedPaidAt
	}
	if paidAt == nil {
		now := s.now()
		paidAt = &now
	}
	from := paidAt.UTC()

	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("load buyer %d: %w", p.UserID, err)
	}
	grant := !user.PremiumActive(s.now())

	done := *p
	done.Status = model.PaymentSucceeded
	done.PaidAt = &from
	until := from.AddDate(0, 0, s.cfg.DurationDays)
	if err := s.payments.Complete(ctx, &done, grant, from, until); err != nil {
		return err
	}
	*p = done

	metrics.Payments.WithLabelValues(model.PaymentSucceeded).Inc()
	if grant {
		metrics.Payments.WithLabelValues("premium_granted").Inc()
		s.log.Info().Int64("user_id", p.UserID).Time("until", until).Msg("premium granted")
	}
	return nil
}
