package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tfinance/tfinance-api/internal/model"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user with this email or login already exists")
)

const userColumns = `id, email, login, password_hash, is_premium, premium_created_at, premium_expires_at,
	is_email_confirmed, created_at, updated_at`

// UserRepository handles user persistence operations.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository on a pool or a transaction.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and sets the generated ID on the user struct.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	query := `INSERT INTO users (email, login, password_hash, is_premium, is_email_confirmed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		user.Email, user.Login, user.PasswordHash, user.IsPremium, user.IsEmailConfirmed, now, now)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateUser
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByLogin retrieves a user by their login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE login = ?`, login)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByLoginOrEmail retrieves the user whose login or email equals value.
// A login match wins over an email match.
func (r *UserRepository) GetByLoginOrEmail(ctx context.Context, value string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE login = ? OR email = ?
		ORDER BY CASE WHEN login = ? THEN 0 ELSE 1 END LIMIT 1`, value, value, value)
}

// ExistsByEmailOrLogin reports whether any user already uses the email or the login.
func (r *UserRepository) ExistsByEmailOrLogin(ctx context.Context, email, login string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? OR login = ?`, email, login).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id)
}

// ConfirmEmail marks the user's email address as confirmed.
func (r *UserRepository) ConfirmEmail(ctx context.Context, id int64) error {
	return r.execOne(ctx, `UPDATE users SET is_email_confirmed = ?, updated_at = ? WHERE id = ?`,
		true, time.Now().UTC(), id)
}

// GrantPremium sets the premium flag and its validity window.
func (r *UserRepository) GrantPremium(ctx context.Context, id int64, from, until time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET is_premium = ?, premium_created_at = ?, premium_expires_at = ?, updated_at = ? WHERE id = ?`,
		true, from.UTC(), until.UTC(), time.Now().UTC(), id)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var (
		user                       model.User
		premiumFrom, premiumExpiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.Login, &user.PasswordHash, &user.IsPremium,
		&premiumFrom, &premiumExpiry, &user.IsEmailConfirmed, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.PremiumCreatedAt = nullTimePtr(premiumFrom)
	user.PremiumExpiresAt = nullTimePtr(premiumExpiry)
	return &user, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
