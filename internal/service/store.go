package service

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tfinance/tfinance-api/internal/model"
	"github.com/tfinance/tfinance-api/internal/storage"
	"github.com/tfinance/tfinance-api/internal/yookassa"
)

// UserStore is the subset of the user repository the services need.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByLoginOrEmail(ctx context.Context, value string) (*model.User, error)
	ExistsByEmailOrLogin(ctx context.Context, email, login string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// SessionStore persists login sessions. Backed by SQL or Redis.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// VerificationStore persists email verification tokens.
type VerificationStore interface {
	Create(ctx context.Context, t *model.EmailVerificationToken) error
	GetActiveByToken(ctx context.Context, token string) (*model.EmailVerificationToken, error)
	Confirm(ctx context.Context, t *model.EmailVerificationToken) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PaymentStore persists premium payments.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByProviderID(ctx context.Context, providerID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, id int64, status string, paidAt *time.Time) error
	Complete(ctx context.Context, p *model.Payment, grant bool, premiumFrom, premiumUntil time.Time) error
}

// BankAccountStore persists bank accounts.
type BankAccountStore interface {
	Create(ctx context.Context, a *model.BankAccount) error
	ListByUser(ctx context.Context, userID int64) ([]model.BankAccount, error)
	Delete(ctx context.Context, userID, id int64) error
}

// PaymentGateway opens and looks up payments at the provider.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, amount decimal.Decimal, currency, description string, userID int64) (*yookassa.Payment, error)
	GetPayment(ctx context.Context, id string) (*yookassa.Payment, error)
}

// FileStore opens downloadable objects.
type FileStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, storage.Object, error)
}
