package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tfinance/tfinance-api/internal/model"
)

var ErrTokenNotFound = errors.New("verification token not found")

// VerificationRepository stores email verification tokens.
type VerificationRepository struct {
	db *sql.DB
	q  DBTX
}

// NewVerificationRepository needs the pool itself because Confirm opens a transaction.
func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db, q: db}
}

func (r *VerificationRepository) Create(ctx context.Context, t *model.EmailVerificationToken) error {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO email_verification_tokens (user_id, token, created_at, expires_at, is_used) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.Token, t.CreatedAt.UTC(), t.ExpiresAt.UTC(), false)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// GetActiveByToken returns the unused token with the given value.
func (r *VerificationRepository) GetActiveByToken(ctx context.Context, token string) (*model.EmailVerificationToken, error) {
	var t model.EmailVerificationToken
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, token, created_at, expires_at, is_used FROM email_verification_tokens
		WHERE token = ? AND is_used = ?`, token, false).
		Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.IsUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *VerificationRepository) MarkUsed(ctx context.Context, id int64) error {
	return markTokenUsed(ctx, r.q, id)
}

// Confirm marks the token used and the owner's email confirmed in one transaction.
func (r *VerificationRepository) Confirm(ctx context.Context, t *model.EmailVerificationToken) error {
	return WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		if err := NewUserRepository(tx).ConfirmEmail(ctx, t.UserID); err != nil {
			return err
		}
		return markTokenUsed(ctx, tx, t.ID)
	})
}

// DeleteExpired removes tokens that expired before now, used or not.
func (r *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM email_verification_tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func markTokenUsed(ctx context.Context, q DBTX, id int64) error {
	result, err := q.ExecContext(ctx, `UPDATE email_verification_tokens SET is_used = ? WHERE id = ?`, true, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenNotFound
	}
	return nil
}
