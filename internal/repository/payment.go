package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tfinance/tfinance-api/internal/model"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicatePayment = errors.New("payment already recorded")
)

// PaymentRepository stores premium payments.
type PaymentRepository struct {
	db *sql.DB
	q  DBTX
}

// NewPaymentRepository needs the pool itself because Complete opens a transaction.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db, q: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO payments (user_id, provider_payment_id, status, amount, currency, description, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.ProviderPaymentID, p.Status, p.Amount.StringFixed(2), p.Currency, p.Description,
		p.CreatedAt.UTC(), nullTime(p.PaidAt))
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicatePayment
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *PaymentRepository) GetByProviderID(ctx context.Context, providerID string) (*model.Payment, error) {
	var (
		p      model.Payment
		amount decimal.Decimal
		paidAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, provider_payment_id, status, amount, currency, description, created_at, paid_at
		FROM payments WHERE provider_payment_id = ?`, providerID).
		Scan(&p.ID, &p.UserID, &p.ProviderPaymentID, &p.Status, &amount, &p.Currency, &p.Description, &p.CreatedAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	p.Amount = amount
	p.PaidAt = nullTimePtr(paidAt)
	return &p, nil
}

// UpdateStatus stores a new status and, when paidAt is set, the payment time.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id int64, status string, paidAt *time.Time) error {
	return updatePaymentStatus(ctx, r.q, id, status, paidAt)
}

// Complete records a succeeded payment and, when grant is true, the buyer's
// premium window, in one transaction.
func (r *PaymentRepository) Complete(ctx context.Context, p *model.Payment, grant bool, premiumFrom, premiumUntil time.Time) error {
	return WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if err := updatePaymentStatus(ctx, tx, p.ID, p.Status, p.PaidAt); err != nil {
			return err
		}
		if !grant {
			return nil
		}
		return NewUserRepository(tx).GrantPremium(ctx, p.UserID, premiumFrom, premiumUntil)
	})
}

func updatePaymentStatus(ctx context.Context, q DBTX, id int64, status string, paidAt *time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE payments SET status = ?, paid_at = COALESCE(?, paid_at) WHERE id = ?`,
		status, nullTime(paidAt), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
